package schedio

import (
	"go.uber.org/zap"

	"github.com/wzqhbustb/schedio/internal/metrics"
	"github.com/wzqhbustb/schedio/storage/column"
	"github.com/wzqhbustb/schedio/storage/format"
	"github.com/wzqhbustb/schedio/storage/sniff"
	"github.com/wzqhbustb/schedio/storage/tablestore"
)

// Recorder receives detection, table and block events.
type Recorder = metrics.Recorder

// Config holds reader configuration
type Config struct {
	// Sniffing
	PeekSize       int   // bytes inspected per layer
	MaxDepth       int   // nested containers allowed
	MaxEntrySize   int64 // archive entry / spooled database limit
	ScanAllEntries bool  // try every archive entry, not just the first
	TempDir        string

	// Table containers
	Required       []string // tables extracted by ReadTables
	MaxDescriptors int

	// Charset decodes legacy strings in tables and blocks
	Charset string

	// TableListers probe embedded databases, keyed by container family.
	// SQLite is always available.
	TableListers map[format.Format]sniff.TableLister

	Logger   *zap.Logger
	Recorder Recorder
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		PeekSize:       sniff.DefaultPeekSize,
		MaxDepth:       sniff.DefaultMaxDepth,
		MaxEntrySize:   sniff.DefaultMaxEntrySize,
		Required:       append([]string(nil), tablestore.DefaultRequired...),
		MaxDescriptors: tablestore.DefaultMaxDescriptors,
		Charset:        column.DefaultCharset,
		TableListers:   map[format.Format]sniff.TableLister{},
		Logger:         zap.NewNop(),
		Recorder:       metrics.Nop(),
	}
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	switch {
	case c.PeekSize < 0:
		return invalidConfig("peek size must not be negative")
	case c.MaxDepth < 0:
		return invalidConfig("max depth must not be negative")
	case c.MaxEntrySize <= 0:
		return invalidConfig("max entry size must be positive")
	case c.MaxDescriptors <= 0:
		return invalidConfig("max descriptors must be positive")
	case c.Charset == "":
		return invalidConfig("charset must not be empty")
	}
	return nil
}

// Option is a functional option for configuration
type Option func(*Config)

// WithPeekSize sets how many bytes are inspected per container layer
func WithPeekSize(n int) Option {
	return func(c *Config) {
		c.PeekSize = n
	}
}

// WithMaxDepth bounds container nesting
func WithMaxDepth(n int) Option {
	return func(c *Config) {
		c.MaxDepth = n
	}
}

// WithMaxEntrySize bounds archive entries and spooled databases
func WithMaxEntrySize(n int64) Option {
	return func(c *Config) {
		c.MaxEntrySize = n
	}
}

// WithScanAllEntries makes archive unwrapping try every entry
func WithScanAllEntries(enabled bool) Option {
	return func(c *Config) {
		c.ScanAllEntries = enabled
	}
}

// WithTempDir sets where databases are spooled
func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithRequired sets the tables ReadTables extracts
func WithRequired(tables ...string) Option {
	return func(c *Config) {
		c.Required = append([]string(nil), tables...)
	}
}

// WithMaxDescriptors bounds the container table of contents
func WithMaxDescriptors(n int) Option {
	return func(c *Config) {
		c.MaxDescriptors = n
	}
}

// WithCharset sets the legacy string charset (WHATWG label)
func WithCharset(name string) Option {
	return func(c *Config) {
		c.Charset = name
	}
}

// WithTableLister registers a lister for a database container family
func WithTableLister(f format.Format, l sniff.TableLister) Option {
	return func(c *Config) {
		if c.TableListers == nil {
			c.TableListers = map[format.Format]sniff.TableLister{}
		}
		c.TableListers[f] = l
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Config) {
		if r != nil {
			c.Recorder = r
		}
	}
}
