// Package config loads command line settings from defaults, an optional
// YAML file, SCHEDIO_* environment variables and flags, in increasing
// precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wzqhbustb/schedio/internal/logger"
	"github.com/wzqhbustb/schedio/schedio"
	"github.com/wzqhbustb/schedio/storage/column"
	"github.com/wzqhbustb/schedio/storage/format"
	"github.com/wzqhbustb/schedio/storage/sniff"
	"github.com/wzqhbustb/schedio/storage/tablestore"
)

// EnvPrefix prefixes every environment variable, e.g. SCHEDIO_LOG_LEVEL.
const EnvPrefix = "SCHEDIO"

// PathPlaceholder is replaced by the spooled database path in JetDSN.
const PathPlaceholder = "{path}"

type LogSettings struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

type SniffSettings struct {
	PeekSize       int    `mapstructure:"peek_size"`
	MaxDepth       int    `mapstructure:"max_depth"`
	MaxEntrySize   int64  `mapstructure:"max_entry_size"`
	ScanAllEntries bool   `mapstructure:"scan_all_entries"`
	TempDir        string `mapstructure:"temp_dir"`

	// Jet/ACE probing needs a database/sql driver linked into the binary.
	JetDriver string `mapstructure:"jet_driver"`
	JetDSN    string `mapstructure:"jet_dsn"`
}

type TableSettings struct {
	Required       []string `mapstructure:"required"`
	MaxDescriptors int      `mapstructure:"max_descriptors"`
	Charset        string   `mapstructure:"charset"`
}

// Settings is everything the command line tool can be configured with.
type Settings struct {
	Log     LogSettings   `mapstructure:"log"`
	Sniff   SniffSettings `mapstructure:"sniff"`
	Tables  TableSettings `mapstructure:"tables"`
	Output  string        `mapstructure:"output"`
	Jobs    int           `mapstructure:"jobs"`
	Metrics bool          `mapstructure:"metrics"`
}

// flagKeys binds command line flags to setting keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"output":    "output",
	"jobs":      "jobs",
	"metrics":   "metrics",
	"require":   "tables.required",
	"charset":   "tables.charset",
	"scan-all":  "sniff.scan_all_entries",
	"max-depth": "sniff.max_depth",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("sniff.peek_size", sniff.DefaultPeekSize)
	v.SetDefault("sniff.max_depth", sniff.DefaultMaxDepth)
	v.SetDefault("sniff.max_entry_size", int64(sniff.DefaultMaxEntrySize))
	v.SetDefault("sniff.scan_all_entries", false)
	v.SetDefault("sniff.temp_dir", "")
	v.SetDefault("sniff.jet_driver", "")
	v.SetDefault("sniff.jet_dsn", "")

	v.SetDefault("tables.required", tablestore.DefaultRequired)
	v.SetDefault("tables.max_descriptors", tablestore.DefaultMaxDescriptors)
	v.SetDefault("tables.charset", column.DefaultCharset)

	v.SetDefault("output", "text")
	v.SetDefault("jobs", 4)
	v.SetDefault("metrics", false)
}

// Load reads settings. path may be empty; flags may be nil. Only flags that
// were set on the command line override file and environment values.
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks settings the reader does not validate itself.
func (s *Settings) Validate() error {
	switch s.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output %q: want text, json or yaml", s.Output)
	}
	if s.Jobs <= 0 {
		return fmt.Errorf("jobs must be positive, got %d", s.Jobs)
	}
	if (s.Sniff.JetDriver == "") != (s.Sniff.JetDSN == "") {
		return fmt.Errorf("jet_driver and jet_dsn must be set together")
	}
	return nil
}

// Logger returns the logger configuration.
func (s *Settings) Logger() logger.Config {
	return logger.Config{
		Level:       s.Log.Level,
		Encoding:    s.Log.Encoding,
		Development: s.Log.Development,
		OutputPaths: []string{"stderr"},
	}
}

// ReaderOptions maps the settings onto reader options.
func (s *Settings) ReaderOptions() []schedio.Option {
	opts := []schedio.Option{
		schedio.WithPeekSize(s.Sniff.PeekSize),
		schedio.WithMaxDepth(s.Sniff.MaxDepth),
		schedio.WithMaxEntrySize(s.Sniff.MaxEntrySize),
		schedio.WithScanAllEntries(s.Sniff.ScanAllEntries),
		schedio.WithTempDir(s.Sniff.TempDir),
		schedio.WithRequired(s.Tables.Required...),
		schedio.WithMaxDescriptors(s.Tables.MaxDescriptors),
		schedio.WithCharset(s.Tables.Charset),
	}
	if s.Sniff.JetDriver != "" {
		dsn := s.Sniff.JetDSN
		opts = append(opts, schedio.WithTableLister(format.FormatJetDatabase,
			sniff.JetLister(s.Sniff.JetDriver, func(path string) string {
				return strings.ReplaceAll(dsn, PathPlaceholder, path)
			})))
	}
	return opts
}
