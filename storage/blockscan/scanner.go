package blockscan

import (
	"go.uber.org/zap"

	"github.com/wzqhbustb/schedio/storage/column"
	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

// Scanner selects a signature set by discriminator and splits buffers into
// blocks. It holds no per-call state and is safe for concurrent use.
type Scanner struct {
	charset string
	logger  *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithCharset sets the charset dynamic block names are decoded from.
func WithCharset(name string) Option {
	return func(s *Scanner) {
		s.charset = name
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScanner returns a Scanner. The charset is checked here so Scan never
// fails on it.
func NewScanner(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		charset: column.DefaultCharset,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := column.NewDecoder(column.WithCharset(s.charset)); err != nil {
		return nil, err
	}
	return s, nil
}

var defaultScanner = &Scanner{charset: column.DefaultCharset, logger: zap.NewNop()}

// Scan splits buf using the default Scanner.
func Scan(buf []byte) ([]Block, error) {
	return defaultScanner.Scan(buf)
}

// Scan selects the signature set from buf[0] and splits buf into blocks.
// An unknown discriminator is an error: the version cannot be segmented.
func (s *Scanner) Scan(buf []byte) ([]Block, error) {
	if len(buf) == 0 {
		return nil, lerrors.New(lerrors.ErrTruncatedInput).
			Op("block_scan").
			Context("reason", "empty buffer").
			Build()
	}

	set, ok := SetFor(buf[0])
	if !ok {
		return nil, lerrors.BadDiscriminator("block_scan", buf[0], knownVersions())
	}

	blocks := s.ScanWith(set, buf)
	s.logger.Debug("block scan complete",
		zap.Uint8("version", set.Version()),
		zap.Int("bytes", len(buf)),
		zap.Int("blocks", len(blocks)))
	return blocks, nil
}

// ScanWith splits buf with an explicit signature set, ignoring any
// discriminator.
func (s *Scanner) ScanWith(set *SignatureSet, buf []byte) []Block {
	dec, err := column.NewDecoder(column.WithCharset(s.charset))
	if err != nil {
		// Unreachable for Scanners built by NewScanner.
		dec, _ = column.NewDecoder()
	}
	return scan(set, buf, dec)
}

// Scan splits buf with this set and the default charset.
func (set *SignatureSet) Scan(buf []byte) []Block {
	return defaultScanner.ScanWith(set, buf)
}

type boundary struct {
	offset int
	sig    *Signature
}

func scan(set *SignatureSet, buf []byte, dec *column.Decoder) []Block {
	// Every offset is tested; the cursor advances one byte even after a
	// match because a signature may start one byte after another ends.
	var bounds []boundary
	for off := 0; off <= len(buf)-set.guard; off++ {
		if sig := set.match(buf, off); sig != nil {
			bounds = append(bounds, boundary{offset: off, sig: sig})
		}
	}

	blocks := make([]Block, 0, len(bounds)+1)
	first := len(buf)
	if len(bounds) > 0 {
		first = bounds[0].offset
	}
	if first > 0 {
		blocks = append(blocks, Block{
			Name:   FirstBlockName,
			Kind:   KindHeader,
			Offset: 0,
			Length: first,
			Data:   buf[:first],
		})
	}

	for i, b := range bounds {
		end := len(buf)
		if i+1 < len(bounds) {
			end = bounds[i+1].offset
		}
		if end == b.offset {
			continue
		}
		name := blockName(buf, b, dec)
		blocks = append(blocks, Block{
			Name:      name,
			Kind:      KindOf(name),
			Offset:    b.offset,
			Length:    end - b.offset,
			Signature: b.sig.clone(),
			Data:      buf[b.offset:end],
		})
	}
	return blocks
}

func blockName(buf []byte, b boundary, dec *column.Decoder) string {
	if !b.sig.Dynamic() {
		return b.sig.Label
	}
	v, _ := dec.Decode(buf, b.offset+b.sig.NameOffset, column.Schema{Type: column.TypeString})
	if v.IsNull() || v.Str == "" {
		return UnknownBlockName
	}
	return v.Str
}
