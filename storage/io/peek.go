// Package io provides the stream plumbing the decoders share: bounded
// prefix peeking, offset tracking over forward-only streams, bounded
// materialisation and temp-file spooling.
package io

import (
	"bufio"
	"errors"
	"io"
)

// Peeker lets a caller inspect a bounded prefix of a stream and then read the
// whole stream, prefix included.
type Peeker struct {
	br   *bufio.Reader
	size int
}

// NewPeeker wraps r so that up to size bytes can be peeked. If r is already
// a Peeker with a large enough buffer it is returned unchanged.
func NewPeeker(r io.Reader, size int) *Peeker {
	if p, ok := r.(*Peeker); ok && p.size >= size {
		return p
	}
	return &Peeker{br: bufio.NewReaderSize(r, size), size: size}
}

// Size returns the largest prefix Prefix can return.
func (p *Peeker) Size() int {
	return p.size
}

// Prefix returns up to Size bytes from the head of the stream without
// consuming them. A stream shorter than Size yields what it has and no error.
func (p *Peeker) Prefix() ([]byte, error) {
	b, err := p.br.Peek(p.size)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return b, err
	}
	return b, nil
}

// Read reads from the stream, starting with any peeked bytes.
func (p *Peeker) Read(b []byte) (int, error) {
	return p.br.Read(b)
}
