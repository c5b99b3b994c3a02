package schedio

import (
	"errors"
	"fmt"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

// Sentinel errors for common cases
var (
	// ErrNoHandler is returned when a recognized format has no registered handler
	ErrNoHandler = errors.New("no handler registered")

	// ErrClosed is returned when using a closed reader
	ErrClosed = errors.New("reader is closed")

	// ErrInvalidConfig is returned when configuration validation fails
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error provides structured error information
type Error struct {
	Op   string // Operation: "sniff", "dispatch", "read_tables", etc.
	Path string // Input path (if known)
	Err  error  // Underlying error
}

// Error returns a formatted error string
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("schedio: %s on %s failed: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("schedio: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *Error) Unwrap() error { return e.Err }

// IsNoHandler checks if an error is ErrNoHandler
func IsNoHandler(err error) bool {
	return errors.Is(err, ErrNoHandler)
}

// IsClosed checks if an error is ErrClosed
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsTruncated checks if the input was too short to classify or decode
func IsTruncated(err error) bool {
	return lerrors.IsTruncated(err)
}

// IsCorrupted checks if the input was malformed
func IsCorrupted(err error) bool {
	return lerrors.IsDecode(err)
}

func invalidConfig(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, reason)
}

// wrapError creates a new Error with the given operation and path
func wrapError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}
