package column

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

const (
	// DefaultCharset is the code page legacy schedule files are written in.
	DefaultCharset = "windows-1252"

	// DefaultMinYear and DefaultMaxYear bound valid dates, exclusive on both
	// ends. Legacy files carry garbage day offsets outside this window.
	DefaultMinYear = 1980
	DefaultMaxYear = 2100

	minutesPerDay = 24 * 60
)

// DefaultEpoch is day zero for TypeDate.
var DefaultEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Decoder decodes values for one decode call. It owns its charset decoder,
// which is stateful, so a Decoder must not be shared between goroutines.
type Decoder struct {
	text    *encoding.Decoder // nil means bytes are already UTF-8
	charset string
	epoch   time.Time
	minYear int
	maxYear int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithEpoch sets day zero for TypeDate.
func WithEpoch(epoch time.Time) Option {
	return func(d *Decoder) {
		d.epoch = epoch
	}
}

// WithYearBounds sets the exclusive year window for TypeDate.
func WithYearBounds(minYear, maxYear int) Option {
	return func(d *Decoder) {
		d.minYear = minYear
		d.maxYear = maxYear
	}
}

// WithCharset sets the text encoding by its WHATWG label
// (e.g. "windows-1252", "utf-8", "iso-8859-1", "shift_jis").
func WithCharset(name string) Option {
	return func(d *Decoder) {
		d.charset = name
	}
}

// NewDecoder returns a Decoder with the given options applied.
func NewDecoder(opts ...Option) (*Decoder, error) {
	d := &Decoder{
		charset: DefaultCharset,
		epoch:   DefaultEpoch,
		minYear: DefaultMinYear,
		maxYear: DefaultMaxYear,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.minYear >= d.maxYear {
		return nil, lerrors.InvalidArg("new_decoder", "year window is empty")
	}

	enc, err := htmlindex.Get(d.charset)
	if err != nil {
		return nil, lerrors.New(lerrors.ErrNotSupported).
			Op("new_decoder").
			Context("charset", d.charset).
			Wrap(err).
			Build()
	}
	if name, _ := htmlindex.Name(enc); name != "utf-8" {
		d.text = enc.NewDecoder()
	}
	return d, nil
}

// Charset returns the configured charset label.
func (d *Decoder) Charset() string {
	return d.charset
}

// Decode reads one value of schema s at off. It returns the value and the
// offset just past the bytes the column occupies. It never fails: bytes that
// are missing or out of range yield a null value.
func (d *Decoder) Decode(buf []byte, off int, s Schema) (Value, int) {
	if off < 0 {
		return Null(s.Type), 0
	}
	start := off + s.Skip
	if start > len(buf) {
		return Null(s.Type), len(buf)
	}

	switch s.Type {
	case TypeInt32:
		if start+4 > len(buf) {
			return Null(s.Type), len(buf)
		}
		v := int32(binary.LittleEndian.Uint32(buf[start:]))
		return Value{Type: s.Type, Valid: true, Int: int64(v)}, start + 4

	case TypeUint32:
		if start+4 > len(buf) {
			return Null(s.Type), len(buf)
		}
		v := binary.LittleEndian.Uint32(buf[start:])
		return Value{Type: s.Type, Valid: true, Int: int64(v)}, start + 4

	case TypeInt16:
		if start+2 > len(buf) {
			return Null(s.Type), len(buf)
		}
		v := int16(binary.LittleEndian.Uint16(buf[start:]))
		return Value{Type: s.Type, Valid: true, Int: int64(v)}, start + 2

	case TypeDate:
		if start+4 > len(buf) {
			return Null(s.Type), len(buf)
		}
		days := int32(binary.LittleEndian.Uint32(buf[start:]))
		return d.date(days), start + 4

	case TypeTime:
		if start+2 > len(buf) {
			return Null(s.Type), len(buf)
		}
		minutes := binary.LittleEndian.Uint16(buf[start:])
		return timeOfDay(minutes), start + 2

	case TypeString:
		return d.lengthPrefixed(buf, start)

	case TypeFixedString:
		if s.Width <= 0 || start+s.Width > len(buf) {
			return Null(s.Type), len(buf)
		}
		return d.fixed(buf[start : start+s.Width]), start + s.Width

	default:
		return Null(s.Type), start
	}
}

// DecodeRow decodes consecutive columns starting at off.
func (d *Decoder) DecodeRow(buf []byte, off int, schemas []Schema) ([]Value, int) {
	row := make([]Value, len(schemas))
	for i, s := range schemas {
		row[i], off = d.Decode(buf, off, s)
	}
	return row, off
}

// Date converts a raw day offset, applying the year window.
func (d *Decoder) Date(days int32) Value {
	return d.date(days)
}

func (d *Decoder) date(days int32) Value {
	t := d.epoch.AddDate(0, 0, int(days))
	if y := t.Year(); y <= d.minYear || y >= d.maxYear {
		return Null(TypeDate)
	}
	return Value{Type: TypeDate, Valid: true, Date: t}
}

func timeOfDay(minutes uint16) Value {
	if int(minutes) >= minutesPerDay {
		return Null(TypeTime)
	}
	hour := int(minutes) / 60
	minute := int(minutes) % 60
	return Value{
		Type:  TypeTime,
		Valid: true,
		Time:  time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute,
	}
}

// lengthPrefixed reads a u16 length and that many bytes of text. A zero
// length is null, not the empty string.
func (d *Decoder) lengthPrefixed(buf []byte, start int) (Value, int) {
	if start+2 > len(buf) {
		return Null(TypeString), len(buf)
	}
	n := int(binary.LittleEndian.Uint16(buf[start:]))
	start += 2
	if n == 0 {
		return Null(TypeString), start
	}
	if start+n > len(buf) {
		return Null(TypeString), len(buf)
	}
	return Value{Type: TypeString, Valid: true, Str: d.text2str(buf[start : start+n])}, start + n
}

func (d *Decoder) fixed(raw []byte) Value {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	s := strings.TrimRight(d.text2str(raw), " \t\r\n")
	return Value{Type: TypeFixedString, Valid: true, Str: s}
}

func (d *Decoder) text2str(raw []byte) string {
	if d.text == nil {
		return string(raw)
	}
	out, err := d.text.Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
