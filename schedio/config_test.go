package schedio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wzqhbustb/schedio/storage/format"
	"github.com/wzqhbustb/schedio/storage/sniff"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, 4096, config.PeekSize)
	assert.Equal(t, 4, config.MaxDepth)
	assert.Equal(t, int64(256<<20), config.MaxEntrySize)
	assert.Equal(t, []string{"Tasks", "Calendars", "Companies"}, config.Required)
	assert.Equal(t, 4096, config.MaxDescriptors)
	assert.Equal(t, "windows-1252", config.Charset)
	assert.False(t, config.ScanAllEntries)
	assert.NotNil(t, config.Logger)
	assert.NotNil(t, config.Recorder)
}

func TestDefaultConfigDoesNotShareRequired(t *testing.T) {
	a := DefaultConfig()
	a.Required[0] = "Mutated"
	assert.Equal(t, "Tasks", DefaultConfig().Required[0])
}

func TestOptions(t *testing.T) {
	config := DefaultConfig()
	lister := sniff.SQLiteLister()
	for _, opt := range []Option{
		WithPeekSize(8192),
		WithMaxDepth(2),
		WithMaxEntrySize(1 << 20),
		WithScanAllEntries(true),
		WithTempDir("/tmp/spool"),
		WithRequired("Tasks"),
		WithMaxDescriptors(16),
		WithCharset("utf-8"),
		WithTableLister(format.FormatJetDatabase, lister),
		WithLogger(nil),
		WithRecorder(nil),
	} {
		opt(config)
	}

	assert.Equal(t, 8192, config.PeekSize)
	assert.Equal(t, 2, config.MaxDepth)
	assert.Equal(t, int64(1<<20), config.MaxEntrySize)
	assert.True(t, config.ScanAllEntries)
	assert.Equal(t, "/tmp/spool", config.TempDir)
	assert.Equal(t, []string{"Tasks"}, config.Required)
	assert.Equal(t, 16, config.MaxDescriptors)
	assert.Equal(t, "utf-8", config.Charset)
	assert.Equal(t, lister, config.TableListers[format.FormatJetDatabase])
	assert.NotNil(t, config.Logger, "nil logger must be ignored")
	assert.NotNil(t, config.Recorder, "nil recorder must be ignored")

	l := zap.NewExample()
	WithLogger(l)(config)
	assert.Same(t, l, config.Logger)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative peek", WithPeekSize(-1)},
		{"negative depth", WithMaxDepth(-1)},
		{"zero entry size", WithMaxEntrySize(0)},
		{"zero descriptors", WithMaxDescriptors(0)},
		{"empty charset", WithCharset("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.opt(config)
			err := config.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
