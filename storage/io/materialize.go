package io

import (
	"bytes"
	"io"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

// Materialize reads all of r into memory, refusing streams larger than limit
// bytes. name identifies the stream in errors. A limit <= 0 means no limit.
func Materialize(r io.Reader, name string, limit int64) (*bytes.Reader, error) {
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}

	var buf bytes.Buffer
	n, err := buf.ReadFrom(src)
	if err != nil {
		return nil, lerrors.IO("materialize", name, err)
	}
	if limit > 0 && n > limit {
		return nil, lerrors.EntryTooLarge("materialize", name, limit)
	}
	return bytes.NewReader(buf.Bytes()), nil
}
