// Package tablestore reads containers that carry a table of contents
// followed by individually deflated tables. Only the tables a caller asks
// for are decompressed; the rest are skipped unread.
package tablestore

import (
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/wzqhbustb/schedio/storage/column"
	"github.com/wzqhbustb/schedio/storage/encoding"
	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	sio "github.com/wzqhbustb/schedio/storage/io"
)

// DefaultRequired is the table set most consumers start with.
var DefaultRequired = []string{"Tasks", "Calendars", "Companies"}

type config struct {
	size           int64
	maxDescriptors int
	charset        string
	decompressor   encoding.Decompressor
	logger         *zap.Logger
	decoder        *column.Decoder
}

// Option configures Read and ReadTOC.
type Option func(*config)

// WithStreamSize declares the total stream size so the last table gets a
// concrete length when the reader cannot seek.
func WithStreamSize(n int64) Option {
	return func(c *config) {
		c.size = n
	}
}

// WithMaxDescriptors bounds the table of contents.
func WithMaxDescriptors(n int) Option {
	return func(c *config) {
		c.maxDescriptors = n
	}
}

// WithCharset sets the charset table and version names are decoded from.
func WithCharset(name string) Option {
	return func(c *config) {
		c.charset = name
	}
}

// WithDecompressor replaces the pooled zlib/deflate inflater.
func WithDecompressor(d encoding.Decompressor) Option {
	return func(c *config) {
		c.decompressor = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) (*config, error) {
	c := &config{
		size:           -1,
		maxDescriptors: DefaultMaxDescriptors,
		charset:        column.DefaultCharset,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxDescriptors <= 0 {
		return nil, lerrors.InvalidArg("tablestore", "max descriptors must be positive")
	}
	if c.decompressor == nil {
		c.decompressor = encoding.DecompressorFunc(encoding.Inflate)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	dec, err := column.NewDecoder(column.WithCharset(c.charset))
	if err != nil {
		return nil, err
	}
	c.decoder = dec
	return c, nil
}

// Store holds the tables extracted by one Read.
type Store struct {
	Version     string
	Descriptors []Descriptor
	Tables      map[string][]byte

	// Errors holds per-table extraction failures. A failed table does not
	// stop the others.
	Errors map[string]error

	// Missing lists required tables the container does not declare.
	Missing []string

	// Skipped counts declared tables that were not required.
	Skipped int
}

// Table returns the decompressed bytes of name.
func (s *Store) Table(name string) ([]byte, bool) {
	b, ok := s.Tables[name]
	return b, ok
}

// Err returns the extraction error for name, if any.
func (s *Store) Err(name string) error {
	return s.Errors[name]
}

// Names returns the extracted table names, sorted.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Read parses the table of contents in r and extracts the required tables.
// A malformed table of contents fails the whole read; a table that cannot
// be decompressed is recorded in Store.Errors.
func Read(r io.Reader, required []string, opts ...Option) (*Store, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	size := cfg.size
	if size < 0 {
		if n, ok := sio.Remaining(r); ok {
			size = n
		}
	}

	o := sio.NewOffsetReader(r)
	toc, err := readTOC(o, cfg, size)
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(required))
	for _, name := range required {
		want[name] = true
	}

	store := &Store{
		Version:     toc.Version,
		Descriptors: toc.Descriptors,
		Tables:      make(map[string][]byte),
		Errors:      make(map[string]error),
	}

	var streamErr error
	for _, d := range toc.Descriptors {
		if !want[d.Name] {
			store.Skipped++
			cfg.logger.Debug("skipping table", zap.String("table", d.Name), zap.Int64("offset", d.Offset))
			continue
		}
		delete(want, d.Name)

		// Once the stream itself has failed no later table is reachable.
		if streamErr != nil {
			store.Errors[d.Name] = streamErr
			continue
		}

		data, err := extract(o, d, cfg)
		if err != nil {
			store.Errors[d.Name] = err
			if lerrors.IsIO(err) && !lerrors.Is(err, lerrors.ErrDecompressFailed) {
				streamErr = err
			}
			cfg.logger.Warn("table extraction failed", zap.String("table", d.Name), zap.Error(err))
			continue
		}
		store.Tables[d.Name] = data
	}

	for _, name := range required {
		if want[name] {
			store.Missing = append(store.Missing, name)
			delete(want, name)
		}
	}

	cfg.logger.Debug("table store read",
		zap.String("version", store.Version),
		zap.Int("declared", len(store.Descriptors)),
		zap.Int("extracted", len(store.Tables)),
		zap.Int("failed", len(store.Errors)),
		zap.Int("skipped", store.Skipped))
	return store, nil
}

// extract reads one table: its own u16 length-prefixed name, then the
// compressed payload filling the rest of its declared range.
func extract(o *sio.OffsetReader, d Descriptor, cfg *config) ([]byte, error) {
	if err := o.SkipTo("skip_to_table", d.Offset); err != nil {
		return nil, err
	}

	var lenBuf [2]byte
	if err := o.ReadFull("read_table_name", lenBuf[:]); err != nil {
		return nil, err
	}
	nameLen := int64(lenBuf[0]) | int64(lenBuf[1])<<8
	nameBuf := make([]byte, 2+nameLen)
	copy(nameBuf, lenBuf[:])
	if err := o.ReadFull("read_table_name", nameBuf[2:]); err != nil {
		return nil, err
	}
	if own, _ := cfg.decoder.Decode(nameBuf, 0, column.Schema{Type: column.TypeString}); own.Str != d.Name {
		cfg.logger.Warn("table name differs from descriptor",
			zap.String("descriptor", d.Name),
			zap.String("table", own.Str))
	}

	remaining := ToEnd
	if !d.ToEnd() {
		remaining = d.Length - 2 - nameLen
		if remaining < 0 {
			return nil, lerrors.New(lerrors.ErrCorruptedFile).
				Op("extract_table").
				Offset(d.Offset).
				Context("table", d.Name).
				Context("declared_length", d.Length).
				Context("reason", "table name longer than table").
				Build()
		}
	}

	data, err := cfg.decompressor.Decompress(o.Section(remaining))
	if err != nil {
		return nil, lerrors.New(lerrors.ErrDecompressFailed).
			Op("extract_table").
			Offset(d.Offset).
			Context("table", d.Name).
			Wrap(err).
			Build()
	}
	return data, nil
}
