package tablestore

import (
	"io"
	"sort"

	"github.com/wzqhbustb/schedio/storage/column"
	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	sio "github.com/wzqhbustb/schedio/storage/io"
)

// On-disk layout of the table of contents.
const (
	HeaderSize     = 20 // opaque leading header
	DescriptorSize = 48 // one table descriptor record
	NameFieldSize  = 40 // NUL-padded table name at the start of a descriptor
	offsetField    = 40 // u32 LE absolute offset of the table

	// DefaultMaxDescriptors bounds how many records are read before the
	// sentinel must have appeared.
	DefaultMaxDescriptors = 4096

	// ToEnd marks a table that runs to the end of the stream.
	ToEnd int64 = -1
)

var (
	nameSchema   = column.Schema{Name: "table_name", Type: column.TypeFixedString, Width: NameFieldSize}
	offsetSchema = column.Schema{Name: "table_offset", Type: column.TypeUint32, Skip: offsetField}
)

// Descriptor locates one table in the container.
type Descriptor struct {
	Name   string
	Offset int64
	Length int64 // ToEnd when the table extends to the end of the stream
}

// ToEnd reports whether the table runs to the end of the stream.
func (d Descriptor) ToEnd() bool {
	return d.Length == ToEnd
}

// TOC is the parsed table of contents.
type TOC struct {
	Header      []byte
	Version     string
	Descriptors []Descriptor // sorted by offset, lengths derived
	End         int64        // offset just past the sentinel record
}

// Lookup returns the descriptor for name.
func (t *TOC) Lookup(name string) (Descriptor, bool) {
	for _, d := range t.Descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Names returns table names in offset order.
func (t *TOC) Names() []string {
	out := make([]string, len(t.Descriptors))
	for i, d := range t.Descriptors {
		out[i] = d.Name
	}
	return out
}

// Layout sorts descriptors by ascending offset and derives each length from
// the next table's offset. Declaration order breaks ties. The last table
// runs to size when size is known (>= 0), otherwise it is marked ToEnd.
func Layout(descs []Descriptor, size int64) []Descriptor {
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})

	for i := range out {
		switch {
		case i+1 < len(out):
			out[i].Length = out[i+1].Offset - out[i].Offset
		case size >= 0:
			out[i].Length = size - out[i].Offset
		default:
			out[i].Length = ToEnd
		}
	}
	return out
}

// ReadTOC parses the table of contents without extracting any table.
func ReadTOC(r io.Reader, opts ...Option) (*TOC, error) {
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
	return readTOC(sio.NewOffsetReader(r), cfg, size)
}

func readTOC(o *sio.OffsetReader, cfg *config, size int64) (*TOC, error) {
	dec := cfg.decoder

	header := make([]byte, HeaderSize)
	if err := o.ReadFull("read_header", header); err != nil {
		return nil, corrupted("read_header", 0, "short header", err)
	}

	var lenBuf [2]byte
	if err := o.ReadFull("read_version", lenBuf[:]); err != nil {
		return nil, corrupted("read_version", o.Offset(), "missing version string", err)
	}
	versionLen := int(lenBuf[0]) | int(lenBuf[1])<<8
	versionBuf := make([]byte, 2+versionLen)
	copy(versionBuf, lenBuf[:])
	if err := o.ReadFull("read_version", versionBuf[2:]); err != nil {
		return nil, corrupted("read_version", o.Offset(), "truncated version string", err)
	}
	version, _ := dec.Decode(versionBuf, 0, column.Schema{Type: column.TypeString})

	var descs []Descriptor
	rec := make([]byte, DescriptorSize)
	for {
		if len(descs) >= cfg.maxDescriptors {
			return nil, lerrors.DescriptorCount("read_toc", len(descs)+1, cfg.maxDescriptors)
		}
		at := o.Offset()
		if err := o.ReadFull("read_descriptor", rec); err != nil {
			return nil, lerrors.MissingSentinel("read_toc", at, len(descs), err)
		}

		name, _ := dec.Decode(rec, 0, nameSchema)
		if name.IsNull() || name.Str == "" {
			break
		}
		off, _ := dec.Decode(rec, 0, offsetSchema)
		descs = append(descs, Descriptor{Name: name.Str, Offset: off.Int})
	}

	end := o.Offset()
	for _, d := range descs {
		if d.Offset < end {
			return nil, lerrors.New(lerrors.ErrCorruptedFile).
				Op("read_toc").
				Offset(end).
				Context("table", d.Name).
				Context("table_offset", d.Offset).
				Context("reason", "table offset inside table of contents").
				Severity(lerrors.SeverityFatal).
				Build()
		}
		if size >= 0 && d.Offset > size {
			return nil, lerrors.New(lerrors.ErrCorruptedFile).
				Op("read_toc").
				Offset(d.Offset).
				Context("table", d.Name).
				Context("stream_size", size).
				Context("reason", "table offset past end of stream").
				Severity(lerrors.SeverityFatal).
				Build()
		}
	}

	return &TOC{
		Header:      header,
		Version:     version.Str,
		Descriptors: Layout(descs, size),
		End:         end,
	}, nil
}

func corrupted(op string, offset int64, reason string, err error) error {
	return lerrors.New(lerrors.ErrCorruptedFile).
		Op(op).
		Offset(offset).
		Context("reason", reason).
		Severity(lerrors.SeverityFatal).
		Wrap(err).
		Build()
}
