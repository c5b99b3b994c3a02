// Package column decodes typed values out of raw record bytes. Every decode
// is defensive: a truncated or out-of-range item becomes a null Value rather
// than an error, so one bad row never costs the rest of a column.
package column

import (
	"fmt"
	"time"
)

// DataType is the declared binary encoding of a column.
type DataType uint8

const (
	TypeInt32       DataType = iota // 32-bit little-endian signed integer
	TypeUint32                      // 32-bit little-endian unsigned integer
	TypeInt16                       // 16-bit little-endian signed integer
	TypeDate                        // 32-bit day offset from the decoder epoch
	TypeTime                        // 16-bit minutes since midnight
	TypeString                      // 16-bit length prefix, then text
	TypeFixedString                 // Width bytes of NUL-padded text
)

func (t DataType) String() string {
	switch t {
	case TypeInt32:
		return "int32"
	case TypeUint32:
		return "uint32"
	case TypeInt16:
		return "int16"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeString:
		return "string"
	case TypeFixedString:
		return "fixed_string"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(t))
	}
}

// Schema declares how one column is laid out.
type Schema struct {
	Name  string
	Type  DataType
	Skip  int // bytes to skip before the payload
	Width int // byte count for TypeFixedString
}

// MinSize returns the fewest payload bytes (after Skip) a value of this
// column can occupy.
func (s Schema) MinSize() int {
	switch s.Type {
	case TypeInt32, TypeUint32, TypeDate:
		return 4
	case TypeInt16, TypeTime, TypeString:
		return 2
	case TypeFixedString:
		return s.Width
	default:
		return 0
	}
}

// Value is a decoded, nullable value. Exactly one payload field is
// meaningful, selected by Type.
type Value struct {
	Type  DataType
	Valid bool

	Int  int64         // TypeInt32, TypeUint32, TypeInt16
	Date time.Time     // TypeDate, midnight UTC
	Time time.Duration // TypeTime, offset from midnight
	Str  string        // TypeString, TypeFixedString
}

// Null returns the null value of type t.
func Null(t DataType) Value {
	return Value{Type: t}
}

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool {
	return !v.Valid
}

// Hour returns the hour of a TypeTime value.
func (v Value) Hour() int {
	return int(v.Time / time.Hour)
}

// Minute returns the minute of a TypeTime value.
func (v Value) Minute() int {
	return int((v.Time % time.Hour) / time.Minute)
}

// Interface returns the Go value, or nil for null.
func (v Value) Interface() interface{} {
	if !v.Valid {
		return nil
	}
	switch v.Type {
	case TypeInt32, TypeUint32, TypeInt16:
		return v.Int
	case TypeDate:
		return v.Date
	case TypeTime:
		return v.Time
	default:
		return v.Str
	}
}

func (v Value) String() string {
	if !v.Valid {
		return "null"
	}
	switch v.Type {
	case TypeInt32, TypeUint32, TypeInt16:
		return fmt.Sprintf("%d", v.Int)
	case TypeDate:
		return v.Date.Format("2006-01-02")
	case TypeTime:
		return fmt.Sprintf("%02d:%02d", v.Hour(), v.Minute())
	default:
		return v.Str
	}
}
