package io

import (
	"errors"
	"io"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

// OffsetReader tracks how far into a forward-only stream it has read, so a
// decoder can skip to absolute offsets without requiring io.Seeker.
type OffsetReader struct {
	r   io.Reader
	off int64
}

// NewOffsetReader wraps r, treating its current position as offset 0.
func NewOffsetReader(r io.Reader) *OffsetReader {
	return &OffsetReader{r: r}
}

// Offset returns the absolute offset of the next byte to be read.
func (o *OffsetReader) Offset() int64 {
	return o.off
}

func (o *OffsetReader) Read(b []byte) (int, error) {
	n, err := o.r.Read(b)
	o.off += int64(n)
	return n, err
}

// ReadFull reads exactly len(b) bytes.
func (o *OffsetReader) ReadFull(op string, b []byte) error {
	start := o.off
	n, err := io.ReadFull(o, b)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return lerrors.UnexpectedEOF(op, start, len(b), n)
		}
		return lerrors.IO(op, "", err)
	}
	return nil
}

// SkipTo discards bytes up to the absolute offset target. Moving backwards
// is an error: the stream may not be seekable.
func (o *OffsetReader) SkipTo(op string, target int64) error {
	if target < o.off {
		return lerrors.New(lerrors.ErrCorruptedFile).
			Op(op).
			Offset(o.off).
			Context("target_offset", target).
			Context("reason", "offset is behind the current position").
			Build()
	}
	if target == o.off {
		return nil
	}

	if s, ok := o.r.(io.Seeker); ok {
		if _, err := s.Seek(target-o.off, io.SeekCurrent); err != nil {
			return lerrors.Skip(op, o.off, target, err)
		}
		o.off = target
		return nil
	}

	from := o.off
	if _, err := io.CopyN(io.Discard, o, target-o.off); err != nil {
		return lerrors.Skip(op, from, target, err)
	}
	return nil
}

// Section returns a reader over the next n bytes, or over the rest of the
// stream when n is negative.
func (o *OffsetReader) Section(n int64) io.Reader {
	if n < 0 {
		return o
	}
	return io.LimitReader(o, n)
}

// Remaining reports how many bytes are left in r when r can seek. The
// position of r is unchanged.
func Remaining(r io.Reader) (int64, bool) {
	s, ok := r.(io.Seeker)
	if !ok {
		return 0, false
	}
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, false
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, false
	}
	return end - cur, true
}
