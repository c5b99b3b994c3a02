// Package sniff classifies an unknown byte stream. It peeks a bounded
// prefix, walks the fingerprint table in its fixed priority order and, for
// generic containers (zip archives, compressed streams, byte order marks,
// embedded databases), unwraps the container and sniffs what is inside.
package sniff

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wzqhbustb/schedio/storage/encoding"
	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	"github.com/wzqhbustb/schedio/storage/format"
	sio "github.com/wzqhbustb/schedio/storage/io"
)

const (
	DefaultPeekSize     = 4096
	DefaultMaxDepth     = 4
	DefaultMaxEntrySize = 256 << 20
)

// Config controls a Sniffer.
type Config struct {
	// PeekSize is how many bytes are inspected. It is raised to
	// format.MinPrefix if smaller.
	PeekSize int

	// MaxDepth bounds how many containers may be nested.
	MaxDepth int

	// MaxEntrySize bounds archive materialisation and database spooling.
	MaxEntrySize int64

	// ScanAllEntries tries archive entries in order until one is
	// recognized instead of only the first.
	ScanAllEntries bool

	// TempDir is where databases are spooled; empty means os.TempDir.
	TempDir string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PeekSize:     DefaultPeekSize,
		MaxDepth:     DefaultMaxDepth,
		MaxEntrySize: DefaultMaxEntrySize,
	}
}

// Option configures a Sniffer.
type Option func(*Sniffer)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Sniffer) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sniffer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTableLister sets the lister used to probe databases of the given
// container family. A nil lister removes it.
func WithTableLister(f format.Format, l TableLister) Option {
	return func(s *Sniffer) {
		if l == nil {
			delete(s.listers, f)
			return
		}
		s.listers[f] = l
	}
}

// Sniffer classifies streams. Its state is fixed after New, so one Sniffer
// may serve concurrent Sniff calls.
type Sniffer struct {
	cfg     Config
	logger  *zap.Logger
	listers map[format.Format]TableLister
}

// New returns a Sniffer. SQLite databases are probed by default; Jet
// databases only when a lister is configured for format.FormatJetDatabase.
func New(opts ...Option) (*Sniffer, error) {
	s := &Sniffer{
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
		listers: map[format.Format]TableLister{
			format.FormatSQLiteDatabase: SQLiteLister(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.PeekSize < format.MinPrefix {
		s.cfg.PeekSize = format.MinPrefix
	}
	if s.cfg.MaxDepth < 0 {
		return nil, lerrors.InvalidArg("new_sniffer", "max depth must not be negative")
	}
	if s.cfg.MaxEntrySize <= 0 {
		return nil, lerrors.InvalidArg("new_sniffer", "max entry size must be positive")
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Sniffer) Config() Config {
	return s.cfg
}

// Sniff classifies r. The returned Result must be closed. An input that
// matches nothing yields a Result with format.FormatUnknown and a nil error.
// Only r itself must carry format.MinPrefix bytes; content unwrapped from a
// container that is shorter is unrecognized, not truncated.
func (s *Sniffer) Sniff(ctx context.Context, r io.Reader) (*Result, error) {
	id := uuid.NewString()
	log := s.logger.With(zap.String("decode_id", id))

	res, err := s.sniff(ctx, r, 0, log)
	if err != nil {
		log.Debug("sniff failed", zap.Error(err))
		return nil, err
	}
	res.DecodeID = id

	log.Debug("sniff complete",
		zap.Stringer("format", res.Format),
		zap.Int("depth", res.Depth()),
		zap.String("reason", res.Reason))
	return res, nil
}

func (s *Sniffer) sniff(ctx context.Context, r io.Reader, depth int, log *zap.Logger) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth > s.cfg.MaxDepth {
		return nil, lerrors.NestingTooDeep("", depth, s.cfg.MaxDepth)
	}

	p := sio.NewPeeker(r, s.cfg.PeekSize)
	prefix, err := p.Prefix()
	if err != nil {
		return nil, lerrors.IO("peek", "", err)
	}

	if len(prefix) < format.MinPrefix {
		if depth == 0 {
			return nil, lerrors.TruncatedInput("", format.MinPrefix, len(prefix))
		}
		// 外层已经够长，内层（解压、去 BOM、转码后）变短不算截断
		log.Debug("unwrapped content too short",
			zap.Int("bytes", len(prefix)),
			zap.Int("depth", depth))
		return &Result{
			Reader: p,
			Reason: fmt.Sprintf("unwrapped content has %d bytes, %d needed to classify", len(prefix), format.MinPrefix),
		}, nil
	}
	fp := format.Match(prefix)
	if fp == nil {
		return &Result{Reader: p, Reason: "no fingerprint matched"}, nil
	}

	log.Debug("fingerprint matched",
		zap.String("fingerprint", fp.Name),
		zap.Stringer("action", fp.Action),
		zap.Int("depth", depth))

	switch fp.Action {
	case format.ActionDelegate:
		return &Result{Format: fp.Format, Fingerprint: fp, Reader: p}, nil

	case format.ActionUnwrapArchive:
		return s.unwrapArchive(ctx, p, fp, depth, log)

	case format.ActionDecompress:
		return s.decompress(ctx, p, fp, depth, log)

	case format.ActionProbeDatabase:
		return s.probeDatabase(ctx, p, fp, log)

	case format.ActionStripBOM:
		return s.stripBOM(ctx, p, fp, depth, log)

	case format.ActionTranscodeUTF16:
		return s.transcodeUTF16(ctx, p, fp, depth, log)

	default:
		return &Result{Reader: p, Fingerprint: fp, Reason: "no action for " + fp.Name}, nil
	}
}

// wrap records the container layer in front of the child's chain.
func wrap(child *Result, layer Layer) *Result {
	child.Chain = append([]Layer{layer}, child.Chain...)
	return child
}

func (s *Sniffer) decompress(ctx context.Context, p *sio.Peeker, fp *format.Fingerprint, depth int, log *zap.Logger) (*Result, error) {
	rc, err := encoding.OpenStream(fp.Format, p)
	if err != nil {
		return nil, err
	}
	child, err := s.sniff(ctx, rc, depth+1, log)
	if err != nil {
		rc.Close()
		return nil, err
	}
	child.addOuterCloser(rc)
	return wrap(child, Layer{Format: fp.Format}), nil
}
