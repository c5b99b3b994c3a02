// Package errors defines the coded error taxonomy shared by every decoder in
// schedio. Errors are built with New(code) and carry the failing operation,
// an optional path and byte offset, free-form context and the wrapped cause.
package errors

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"strings"
)

// ErrorCode classifies an error.
type ErrorCode int

const (
	// General errors
	ErrUnknown ErrorCode = iota
	ErrInvalidArgument
	ErrNotSupported

	// Input errors
	ErrTruncatedInput
	ErrNestingTooDeep

	// Format errors
	ErrCorruptedFile
	ErrMissingSentinel
	ErrBadDiscriminator
	ErrDescriptorCount
	ErrColumnHeader
	ErrEntryTooLarge
	ErrDecodeFailed

	// I/O errors
	ErrIO
	ErrUnexpectedEOF
	ErrFileNotFound
	ErrDecompressFailed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrNotSupported:
		return "NotSupported"
	case ErrTruncatedInput:
		return "TruncatedInput"
	case ErrNestingTooDeep:
		return "NestingTooDeep"
	case ErrCorruptedFile:
		return "CorruptedFile"
	case ErrMissingSentinel:
		return "MissingSentinel"
	case ErrBadDiscriminator:
		return "BadDiscriminator"
	case ErrDescriptorCount:
		return "DescriptorCount"
	case ErrColumnHeader:
		return "ColumnHeader"
	case ErrEntryTooLarge:
		return "EntryTooLarge"
	case ErrDecodeFailed:
		return "DecodeFailed"
	case ErrIO:
		return "IO"
	case ErrUnexpectedEOF:
		return "UnexpectedEOF"
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrDecompressFailed:
		return "DecompressFailed"
	default:
		return fmt.Sprintf("ErrorCode(%d)", c)
	}
}

// Category groups error codes by how a caller is expected to react.
type Category int

const (
	CategoryGeneral Category = iota
	// CategoryInput: the input is too small or too deeply nested to classify.
	CategoryInput
	// CategoryDecode: the format was recognized but its structure is broken.
	CategoryDecode
	// CategoryIO: the underlying stream or decompressor failed.
	CategoryIO
)

func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryDecode:
		return "decode"
	case CategoryIO:
		return "io"
	default:
		return "general"
	}
}

// Category returns the category the code belongs to.
func (c ErrorCode) Category() Category {
	switch c {
	case ErrTruncatedInput, ErrNestingTooDeep:
		return CategoryInput
	case ErrCorruptedFile, ErrMissingSentinel, ErrBadDiscriminator,
		ErrDescriptorCount, ErrColumnHeader, ErrEntryTooLarge, ErrDecodeFailed:
		return CategoryDecode
	case ErrIO, ErrUnexpectedEOF, ErrFileNotFound, ErrDecompressFailed:
		return CategoryIO
	default:
		return CategoryGeneral
	}
}

// ErrorSeverity 错误严重程度
type ErrorSeverity int

const (
	SeverityWarning ErrorSeverity = iota // recoverable, the rest of the input is still usable
	SeverityError                        // this input failed
	SeverityFatal                        // the structure of this input cannot be trusted
)

// DecodeError is the concrete error type behind every code.
type DecodeError struct {
	Code     ErrorCode
	Severity ErrorSeverity
	Op       string
	Path     string
	Offset   int64 // -1 when unknown
	Err      error
	Context  map[string]interface{}
	Stack    []byte
}

func (e *DecodeError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s:%s]", e.Code, e.Op))

	switch {
	case e.Path != "" && e.Offset >= 0:
		parts = append(parts, fmt.Sprintf("path=%s offset=%d", e.Path, e.Offset))
	case e.Path != "":
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	case e.Offset >= 0:
		parts = append(parts, fmt.Sprintf("offset=%d", e.Offset))
	}

	if len(e.Context) > 0 {
		parts = append(parts, "context="+formatContext(e.Context))
	}

	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Err))
	}

	return "schedio error: " + strings.Join(parts, " | ")
}

// formatContext renders the context map with sorted keys so messages are stable.
func formatContext(ctx map[string]interface{}) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%v", k, ctx[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

// Unwrap 支持 errors.As/Is
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsCode reports whether the error carries code.
func (e *DecodeError) IsCode(code ErrorCode) bool {
	return e.Code == code
}

// WithContext adds a context entry.
func (e *DecodeError) WithContext(key string, value interface{}) *DecodeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithPath sets the path if none is recorded yet.
func (e *DecodeError) WithPath(path string) *DecodeError {
	if e.Path == "" {
		e.Path = path
	}
	return e
}

// ErrorBuilder builds a DecodeError.
type ErrorBuilder struct {
	err *DecodeError
}

func New(code ErrorCode) *ErrorBuilder {
	return &ErrorBuilder{
		err: &DecodeError{
			Code:     code,
			Severity: SeverityError,
			Offset:   -1,
			Context:  make(map[string]interface{}),
		},
	}
}

func (b *ErrorBuilder) Op(op string) *ErrorBuilder {
	b.err.Op = op
	return b
}

func (b *ErrorBuilder) Path(path string) *ErrorBuilder {
	b.err.Path = path
	return b
}

func (b *ErrorBuilder) Offset(offset int64) *ErrorBuilder {
	b.err.Offset = offset
	return b
}

func (b *ErrorBuilder) Wrap(err error) *ErrorBuilder {
	b.err.Err = err
	return b
}

func (b *ErrorBuilder) Severity(s ErrorSeverity) *ErrorBuilder {
	b.err.Severity = s
	return b
}

func (b *ErrorBuilder) Context(key string, value interface{}) *ErrorBuilder {
	b.err.Context[key] = value
	return b
}

func (b *ErrorBuilder) WithStack() *ErrorBuilder {
	b.err.Stack = debug.Stack()
	return b
}

func (b *ErrorBuilder) Build() error {
	return b.err
}

// InvalidArg 创建参数错误
func InvalidArg(op string, msg string) error {
	return New(ErrInvalidArgument).Op(op).Context("message", msg).Build()
}

// IO wraps a stream failure. io.ErrUnexpectedEOF and io.EOF map to
// ErrUnexpectedEOF since every caller reads a declared number of bytes.
func IO(op string, path string, err error) error {
	return New(ioCode(err)).Op(op).Path(path).Wrap(err).Build()
}

func ioCode(err error) ErrorCode {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ErrUnexpectedEOF
	}
	return ErrIO
}

// Is reports whether err, or any DecodeError in its chain, carries code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	var de *DecodeError
	if errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		if de.Err != nil {
			return Is(de.Err, code)
		}
	}

	return false
}

// IsAny reports whether err carries any of codes.
func IsAny(err error, codes ...ErrorCode) bool {
	for _, code := range codes {
		if Is(err, code) {
			return true
		}
	}
	return false
}

// GetCode returns the outermost code in err, or ErrUnknown.
func GetCode(err error) ErrorCode {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrUnknown
}

// GetCategory returns the category of the outermost code in err.
func GetCategory(err error) Category {
	return GetCode(err).Category()
}

// IsTruncated reports whether err means "too small to tell".
func IsTruncated(err error) bool {
	return Is(err, ErrTruncatedInput)
}

// IsDecode reports whether err means "recognized but broken".
func IsDecode(err error) bool {
	return err != nil && GetCategory(err) == CategoryDecode
}

// IsIO reports whether err is a stream or decompression failure.
func IsIO(err error) bool {
	return err != nil && GetCategory(err) == CategoryIO
}

// IsFatal reports whether the error was marked fatal.
func IsFatal(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Severity == SeverityFatal
	}
	return false
}
