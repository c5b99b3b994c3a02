package sniff

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/encoding/unicode"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	"github.com/wzqhbustb/schedio/storage/format"
)

func mpxFile() []byte {
	var b strings.Builder
	b.WriteString("MPX,Microsoft Project for Windows,4.0,ANSI\r\n")
	for b.Len() < 2048 {
		b.WriteString("70,1,Task name,0d,2024-01-01\r\n")
	}
	return []byte(b.String())
}

func pmxmlFile() []byte {
	doc := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<APIBusinessObjects xmlns="http://xmlns.oracle.com/Primavera/P6/V8.3/API/BusinessObjects">` + "\n"
	return []byte(doc + strings.Repeat("  <Project><Name>demo</Name></Project>\n", 40) + "</APIBusinessObjects>\n")
}

type entry struct {
	name string
	data []byte
}

// noisyMPX is an MPX file with an incompressible tail, so compressed copies
// stay longer than the sniffing minimum.
func noisyMPX() []byte {
	noise := make([]byte, 1024)
	rand.New(rand.NewSource(1)).Read(noise)
	return append(mpxFile(), noise...)
}

// zipOf stores entries uncompressed so archives are never shorter than what
// they hold.
func zipOf(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func gzipOf(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func sqliteFile(t *testing.T, tables ...string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, tbl := range tables {
		_, err := db.Exec("CREATE TABLE " + tbl + " (id INTEGER PRIMARY KEY, name TEXT)")
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func newSniffer(t *testing.T, opts ...Option) *Sniffer {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func sniffBytes(t *testing.T, s *Sniffer, data []byte) *Result {
	t.Helper()
	res, err := s.Sniff(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { res.Close() })
	return res
}

func TestSniffDelegatesAndReplaysPrefix(t *testing.T) {
	data := mpxFile()
	res := sniffBytes(t, newSniffer(t), data)

	assert.Equal(t, format.FormatMPX, res.Format)
	assert.True(t, res.Recognized())
	assert.Equal(t, "mpx", res.Fingerprint.Name)
	assert.Empty(t, res.Chain)
	assert.NotEmpty(t, res.DecodeID)

	replayed, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, data, replayed, "delegate must see the stream from byte 0")
}

func TestSniffTextDialect(t *testing.T) {
	res := sniffBytes(t, newSniffer(t), pmxmlFile())
	assert.Equal(t, format.FormatPMXML, res.Format)
}

func TestSniffUnrecognizedIsNotAnError(t *testing.T) {
	res := sniffBytes(t, newSniffer(t), bytes.Repeat([]byte("plain text "), 100))
	assert.Equal(t, format.FormatUnknown, res.Format)
	assert.False(t, res.Recognized())
	assert.NotEmpty(t, res.Reason)
	assert.NotNil(t, res.Reader)
}

func TestSniffTruncatedInput(t *testing.T) {
	_, err := newSniffer(t).Sniff(context.Background(), bytes.NewReader(mpxFile()[:format.MinPrefix-1]))
	require.Error(t, err)
	assert.True(t, lerrors.IsTruncated(err))
	assert.Equal(t, lerrors.CategoryInput, lerrors.GetCategory(err))
}

func TestSniffPeekSizeNeverBelowMinimum(t *testing.T) {
	s := newSniffer(t, WithConfig(Config{PeekSize: 16, MaxDepth: 1, MaxEntrySize: 1 << 20}))
	assert.Equal(t, format.MinPrefix, s.Config().PeekSize)
}

func TestSniffUnwrapsZip(t *testing.T) {
	data := zipOf(t, entry{"project/", nil}, entry{"project/plan.mpx", mpxFile()}, entry{"readme.txt", []byte("x")})
	res := sniffBytes(t, newSniffer(t), data)

	assert.Equal(t, format.FormatMPX, res.Format)
	assert.Equal(t, "project/plan.mpx", res.Entry)
	require.Len(t, res.Chain, 1)
	assert.Equal(t, Layer{Format: format.FormatZip, Entry: "project/plan.mpx"}, res.Chain[0])

	replayed, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, mpxFile(), replayed)
}

func TestSniffZipInZip(t *testing.T) {
	inner := zipOf(t, entry{"inner.xml", pmxmlFile()})
	outer := zipOf(t, entry{"outer.zip", inner})

	res := sniffBytes(t, newSniffer(t), outer)
	assert.Equal(t, format.FormatPMXML, res.Format)
	assert.Equal(t, "inner.xml", res.Entry)
	assert.Equal(t, []Layer{
		{Format: format.FormatZip, Entry: "outer.zip"},
		{Format: format.FormatZip, Entry: "inner.xml"},
	}, res.Chain)
}

func TestSniffZipFirstEntryOnly(t *testing.T) {
	data := zipOf(t, entry{"notes.txt", bytes.Repeat([]byte("n"), 600)}, entry{"plan.mpx", mpxFile()})

	res := sniffBytes(t, newSniffer(t), data)
	assert.False(t, res.Recognized())
	assert.Equal(t, "notes.txt", res.Entry)

	cfg := DefaultConfig()
	cfg.ScanAllEntries = true
	res = sniffBytes(t, newSniffer(t, WithConfig(cfg)), data)
	assert.Equal(t, format.FormatMPX, res.Format)
	assert.Equal(t, "plan.mpx", res.Entry)
}

func TestSniffScanAllEntriesSkipsShortEntries(t *testing.T) {
	data := zipOf(t, entry{"tiny.bin", []byte("abc")}, entry{"plan.mpx", mpxFile()})

	first := sniffBytes(t, newSniffer(t), data)
	assert.False(t, first.Recognized())
	assert.Equal(t, "tiny.bin", first.Entry)
	assert.Contains(t, first.Reason, "3 bytes")

	cfg := DefaultConfig()
	cfg.ScanAllEntries = true
	res := sniffBytes(t, newSniffer(t, WithConfig(cfg)), data)
	assert.Equal(t, format.FormatMPX, res.Format)
}

func TestSniffEmptyZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.SetComment(strings.Repeat("-", format.MinPrefix)))
	require.NoError(t, zw.Close())

	res := sniffBytes(t, newSniffer(t), buf.Bytes())
	assert.False(t, res.Recognized())
	assert.Equal(t, "archive has no entries", res.Reason)
}

func TestSniffZipEntryTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntrySize = 1024
	data := zipOf(t, entry{"plan.mpx", mpxFile()})
	_, err := newSniffer(t, WithConfig(cfg)).Sniff(context.Background(), bytes.NewReader(data))
	require.Error(t, err)
	assert.True(t, lerrors.Is(err, lerrors.ErrEntryTooLarge))
}

func TestSniffCompressedStreams(t *testing.T) {
	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write(noisyMPX())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name  string
		data  []byte
		outer format.Format
	}{
		{"gzip", gzipOf(t, noisyMPX()), format.FormatGzip},
		{"zstd", zbuf.Bytes(), format.FormatZstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := sniffBytes(t, newSniffer(t), tt.data)
			assert.Equal(t, format.FormatMPX, res.Format)
			assert.Equal(t, []Layer{{Format: tt.outer}}, res.Chain)

			out, err := io.ReadAll(res.Reader)
			require.NoError(t, err)
			assert.Equal(t, noisyMPX(), out)
			require.NoError(t, res.Close())
			require.NoError(t, res.Close())
		})
	}
}

func TestSniffSmallContainerIsTruncated(t *testing.T) {
	small := gzipOf(t, mpxFile())
	require.Less(t, len(small), format.MinPrefix)

	_, err := newSniffer(t).Sniff(context.Background(), bytes.NewReader(small))
	require.Error(t, err)
	assert.True(t, lerrors.IsTruncated(err))
}

func TestSniffShortPayloadIsUnrecognized(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "plan.mpx", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write(mpxFile()[:100])
	require.NoError(t, err)
	require.NoError(t, zw.SetComment(strings.Repeat("-", format.MinPrefix)))
	require.NoError(t, zw.Close())
	require.GreaterOrEqual(t, buf.Len(), format.MinPrefix)

	res := sniffBytes(t, newSniffer(t), buf.Bytes())
	assert.False(t, res.Recognized())
	assert.Equal(t, []Layer{{Format: format.FormatZip, Entry: "plan.mpx"}}, res.Chain)
	assert.Contains(t, res.Reason, "100 bytes")

	out, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, mpxFile()[:100], out)
}

func TestSniffShortUTF16DocumentIsUnrecognized(t *testing.T) {
	doc := "<APIBusinessObjects>" + strings.Repeat(" ", 443)
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(doc))
	require.NoError(t, err)
	require.Len(t, encoded, 928)

	res, err := newSniffer(t).Sniff(context.Background(), bytes.NewReader(encoded))
	require.NoError(t, err)
	defer res.Close()
	assert.False(t, res.Recognized())
	assert.Equal(t, []Layer{{Format: format.FormatUTF16}}, res.Chain)
	assert.Contains(t, res.Reason, "463 bytes")
}

func TestSniffShortBOMDocumentIsUnrecognized(t *testing.T) {
	body := []byte("<APIBusinessObjects>" + strings.Repeat(" ", 490))
	data := append([]byte{0xEF, 0xBB, 0xBF}, body...)
	require.Len(t, data, format.MinPrefix+1)

	res, err := newSniffer(t).Sniff(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	defer res.Close()
	assert.False(t, res.Recognized())
	assert.Equal(t, []Layer{{Format: format.FormatUTF8BOM}}, res.Chain)
	assert.Contains(t, res.Reason, "510 bytes")

	out, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

type closeLog struct {
	name  string
	order *[]string
}

func (c closeLog) Close() error {
	*c.order = append(*c.order, c.name)
	return nil
}

func TestResultClosesInnerLayersFirst(t *testing.T) {
	var order []string
	res := &Result{}
	res.addCloser(closeLog{"spool", &order})
	res.addCloser(closeLog{"file", &order})
	res.addOuterCloser(closeLog{"inner-gzip", &order})
	res.addOuterCloser(closeLog{"outer-zstd", &order})
	require.NoError(t, res.Attach(closeLog{"source", &order}))

	require.NoError(t, res.Close())
	assert.Equal(t, []string{"file", "spool", "inner-gzip", "outer-zstd", "source"}, order)

	require.NoError(t, res.Attach(closeLog{"late", &order}))
	assert.Equal(t, "late", order[len(order)-1])
}

func TestSniffNestingGuard(t *testing.T) {
	data := noisyMPX()
	for i := 0; i < 3; i++ {
		data = gzipOf(t, data)
	}

	cfg := DefaultConfig()
	cfg.MaxDepth = 3
	res := sniffBytes(t, newSniffer(t, WithConfig(cfg)), data)
	assert.Equal(t, format.FormatMPX, res.Format)
	assert.Equal(t, 3, res.Depth())

	cfg.MaxDepth = 2
	_, err := newSniffer(t, WithConfig(cfg)).Sniff(context.Background(), bytes.NewReader(data))
	require.Error(t, err)
	assert.True(t, lerrors.Is(err, lerrors.ErrNestingTooDeep))
}

func TestSniffRecursiveZipBomb(t *testing.T) {
	// A zip nested deeper than the default limit.
	data := zipOf(t, entry{"plan.mpx", mpxFile()})
	for i := 0; i < DefaultMaxDepth+1; i++ {
		data = zipOf(t, entry{"layer.zip", data})
	}
	_, err := newSniffer(t).Sniff(context.Background(), bytes.NewReader(data))
	require.Error(t, err)
	assert.True(t, lerrors.Is(err, lerrors.ErrNestingTooDeep))
	assert.Equal(t, lerrors.CategoryInput, lerrors.GetCategory(err))
}

func TestSniffUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, pmxmlFile()...)
	res := sniffBytes(t, newSniffer(t), data)
	assert.Equal(t, format.FormatPMXML, res.Format)
	assert.Equal(t, []Layer{{Format: format.FormatUTF8BOM}}, res.Chain)

	out, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, pmxmlFile(), out)
}

func TestSniffUTF16(t *testing.T) {
	for name, enc := range map[string]unicode.Endianness{"le": unicode.LittleEndian, "be": unicode.BigEndian} {
		t.Run(name, func(t *testing.T) {
			encoded, err := unicode.UTF16(enc, unicode.UseBOM).NewEncoder().Bytes(pmxmlFile())
			require.NoError(t, err)

			res := sniffBytes(t, newSniffer(t), encoded)
			assert.Equal(t, format.FormatPMXML, res.Format)
			assert.Equal(t, []Layer{{Format: format.FormatUTF16}}, res.Chain)

			out, err := io.ReadAll(res.Reader)
			require.NoError(t, err)
			assert.Equal(t, pmxmlFile(), out)
		})
	}
}

func TestSniffSQLiteMarkers(t *testing.T) {
	tests := []struct {
		tables []string
		want   format.Format
		marker format.MarkerTable
	}{
		{[]string{"task", "projwbs"}, format.FormatP6SQLite, format.MarkerProjWBS},
		{[]string{"ExceptionN", "Task"}, format.FormatAstaSQLite, format.MarkerExceptionN},
		{[]string{"ZSCHEDULEITEM"}, format.FormatMerlin, format.MarkerZScheduleItem},
		{[]string{"users"}, format.FormatUnknown, format.MarkerUnknown},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.tables, ","), func(t *testing.T) {
			res := sniffBytes(t, newSniffer(t), sqliteFile(t, tt.tables...))
			assert.Equal(t, tt.want, res.Format)
			assert.Equal(t, tt.marker, res.Marker)
			assert.Subset(t, res.Tables, upper(tt.tables))
			require.NotEmpty(t, res.File)

			_, err := os.Stat(res.File)
			require.NoError(t, err)
			require.NoError(t, res.Close())
			_, err = os.Stat(res.File)
			assert.True(t, os.IsNotExist(err), "spooled database is removed on Close")
		})
	}
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

func jetFile() []byte {
	b := make([]byte, 4096)
	copy(b, append([]byte{0x00, 0x01, 0x00, 0x00}, "Standard Jet DB"...))
	return b
}

type fakeLister struct {
	tables []string
	err    error
	paths  []string
}

func (f *fakeLister) ListTables(_ context.Context, path string) ([]string, error) {
	f.paths = append(f.paths, path)
	return append([]string(nil), f.tables...), f.err
}

func TestSniffJetWithoutBackend(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	res := sniffBytes(t, newSniffer(t, WithLogger(zap.New(core))), jetFile())

	assert.False(t, res.Recognized())
	assert.Contains(t, res.Reason, "no table lister")
	assert.Equal(t, 1, logs.FilterMessage("database backend unavailable").Len())
}

func TestSniffJetWithLister(t *testing.T) {
	lister := &fakeLister{tables: []string{"msp_tasks", "Msp_Projects"}}
	s := newSniffer(t, WithTableLister(format.FormatJetDatabase, lister))

	res := sniffBytes(t, s, jetFile())
	assert.Equal(t, format.FormatMPD, res.Format)
	assert.Equal(t, format.MarkerMSPProjects, res.Marker)
	require.Len(t, lister.paths, 1)
	assert.Equal(t, lister.paths[0], res.File)

	data, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, jetFile(), data)
}

func TestSniffListerFailureIsUnrecognized(t *testing.T) {
	lister := &fakeLister{err: errors.New("driver exploded")}
	res := sniffBytes(t, newSniffer(t, WithTableLister(format.FormatJetDatabase, lister)), jetFile())
	assert.False(t, res.Recognized())
	assert.Contains(t, res.Reason, "driver exploded")
}

func TestSniffIsIdempotent(t *testing.T) {
	s := newSniffer(t)
	data := zipOf(t, entry{"a.gz", gzipOf(t, noisyMPX())})

	first := sniffBytes(t, s, data)
	second := sniffBytes(t, s, data)
	assert.Equal(t, first.Format, second.Format)
	assert.Equal(t, first.Chain, second.Chain)
	assert.Equal(t, first.Entry, second.Entry)
	assert.Equal(t, first.Fingerprint.Name, second.Fingerprint.Name)
	assert.NotEqual(t, first.DecodeID, second.DecodeID)
}

func TestSniffHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSniffer(t).Sniff(ctx, bytes.NewReader(mpxFile()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSniffLogsDecodeID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	res := sniffBytes(t, newSniffer(t, WithLogger(zap.New(core))), mpxFile())

	done := logs.FilterMessage("sniff complete").All()
	require.Len(t, done, 1)
	assert.Equal(t, res.DecodeID, done[0].ContextMap()["decode_id"])
	assert.Equal(t, "mpx", done[0].ContextMap()["format"])
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(WithConfig(Config{MaxDepth: -1, MaxEntrySize: 1}))
	assert.True(t, lerrors.Is(err, lerrors.ErrInvalidArgument))
	_, err = New(WithConfig(Config{MaxDepth: 1}))
	assert.True(t, lerrors.Is(err, lerrors.ErrInvalidArgument))
}
