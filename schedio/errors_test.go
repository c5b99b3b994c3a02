package schedio

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Op: "dispatch", Err: ErrNoHandler}
	assert.Equal(t, "schedio: dispatch failed: no handler registered", err.Error())

	err = &Error{Op: "sniff", Path: "plan.mpp", Err: ErrClosed}
	assert.Equal(t, "schedio: sniff on plan.mpp failed: reader is closed", err.Error())
}

func TestErrorUnwrap(t *testing.T) {
	err := wrapError("dispatch", "x", fmt.Errorf("%w for mpx", ErrNoHandler))
	assert.True(t, IsNoHandler(err))
	assert.False(t, IsClosed(err))

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "dispatch", e.Op)
	assert.Equal(t, "x", e.Path)
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, wrapError("sniff", "", nil))
}

func TestErrorClassification(t *testing.T) {
	truncated := wrapError("sniff", "", lerrors.TruncatedInput("", 512, 10))
	assert.True(t, IsTruncated(truncated))
	assert.False(t, IsCorrupted(truncated))

	corrupted := wrapError("read_tables", "", lerrors.FormatCorrupted("read_toc", 20, "bad"))
	assert.True(t, IsCorrupted(corrupted))
	assert.False(t, IsTruncated(corrupted))
}
