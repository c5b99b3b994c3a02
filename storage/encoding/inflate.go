// Package encoding holds the decompressors used to unpack table payloads and
// compressed input streams. Readers and copy buffers are pooled; each call
// acquires what it needs and returns it before it finishes.
package encoding

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

// CopyBufferSize is the size of the pooled buffer payloads are copied
// through.
const CopyBufferSize = 4 * 1024

var copyBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, CopyBufferSize)
		return &b
	},
}

var peekPool = sync.Pool{
	New: func() interface{} {
		return bufio.NewReaderSize(nil, CopyBufferSize)
	},
}

// Decompressor inflates one compressed payload into memory.
type Decompressor interface {
	Decompress(r io.Reader) ([]byte, error)
}

// DecompressorFunc adapts a function to Decompressor.
type DecompressorFunc func(r io.Reader) ([]byte, error)

func (f DecompressorFunc) Decompress(r io.Reader) ([]byte, error) {
	return f(r)
}

// Inflater decompresses deflate payloads, with or without a zlib wrapper.
// It is safe for concurrent use.
type Inflater struct {
	flatePool sync.Pool
	zlibPool  sync.Pool
}

// NewInflater returns an Inflater with empty reader pools.
func NewInflater() *Inflater {
	return &Inflater{}
}

var defaultInflater = NewInflater()

// Inflate decompresses r with the shared Inflater.
func Inflate(r io.Reader) ([]byte, error) {
	return defaultInflater.Decompress(r)
}

// IsZlibHeader reports whether b starts with a valid zlib stream header
// (deflate method, window <= 32K, header checksum).
func IsZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	cmf, flg := b[0], b[1]
	if cmf&0x0F != 8 || cmf>>4 > 7 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Decompress inflates the stream in r. The stream ends where the deflate
// data ends; bytes after it are not read.
func (f *Inflater) Decompress(r io.Reader) ([]byte, error) {
	br := peekPool.Get().(*bufio.Reader)
	br.Reset(r)
	defer func() {
		br.Reset(nil)
		peekPool.Put(br)
	}()

	head, err := br.Peek(2)
	if err != nil && len(head) == 0 {
		return nil, lerrors.DecompressFailed("deflate", "", err)
	}

	if IsZlibHeader(head) {
		return f.inflateZlib(br)
	}
	return f.inflateRaw(br)
}

func (f *Inflater) inflateRaw(r io.Reader) ([]byte, error) {
	var rc io.ReadCloser
	if v := f.flatePool.Get(); v != nil {
		rc = v.(io.ReadCloser)
		if err := rc.(flate.Resetter).Reset(r, nil); err != nil {
			return nil, lerrors.DecompressFailed("deflate", "", err)
		}
	} else {
		rc = flate.NewReader(r)
	}
	defer f.flatePool.Put(rc)

	out, err := drain(rc)
	if err != nil {
		return nil, lerrors.DecompressFailed("deflate", "", err)
	}
	return out, nil
}

func (f *Inflater) inflateZlib(r io.Reader) ([]byte, error) {
	var rc io.ReadCloser
	if v := f.zlibPool.Get(); v != nil {
		rc = v.(io.ReadCloser)
		if err := rc.(zlib.Resetter).Reset(r, nil); err != nil {
			return nil, lerrors.DecompressFailed("zlib", "", err)
		}
	} else {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, lerrors.DecompressFailed("zlib", "", err)
		}
		rc = zr
	}
	defer f.zlibPool.Put(rc)

	out, err := drain(rc)
	if err != nil {
		return nil, lerrors.DecompressFailed("zlib", "", err)
	}
	return out, nil
}

// drain copies r to memory through a pooled buffer.
func drain(r io.Reader) ([]byte, error) {
	bp := copyBufPool.Get().(*[]byte)
	defer copyBufPool.Put(bp)

	// Plain wrappers so io.CopyBuffer goes through bp rather than
	// ReadFrom/WriteTo.
	var out bytes.Buffer
	if _, err := io.CopyBuffer(struct{ io.Writer }{&out}, struct{ io.Reader }{r}, *bp); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
