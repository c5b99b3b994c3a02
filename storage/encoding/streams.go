package encoding

import (
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	"github.com/wzqhbustb/schedio/storage/format"
)

// zstdPool holds single-threaded stream decoders. A pooled decoder is
// Reset onto each new stream and never Closed while pooled.
var zstdPool = sync.Pool{
	New: func() interface{} {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return err
		}
		return dec
	},
}

// OpenStream wraps r in the decompressor for a compressed-stream format.
// The caller must Close the result; closing does not close r.
func OpenStream(f format.Format, r io.Reader) (io.ReadCloser, error) {
	switch f {
	case format.FormatGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, lerrors.DecompressFailed("gzip", "", err)
		}
		return zr, nil

	case format.FormatZstd:
		v := zstdPool.Get()
		if err, ok := v.(error); ok {
			return nil, lerrors.New(lerrors.ErrDecodeFailed).
				Op("zstd_open").
				Context("reason", "decoder pool error").
				Wrap(err).
				Build()
		}
		dec := v.(*zstd.Decoder)
		if err := dec.Reset(r); err != nil {
			zstdPool.Put(dec)
			return nil, lerrors.DecompressFailed("zstd", "", err)
		}
		return &pooledZstd{dec: dec}, nil

	case format.FormatLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil

	case format.FormatSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil

	default:
		return nil, lerrors.New(lerrors.ErrNotSupported).
			Op("open_stream").
			Context("format", f.String()).
			Build()
	}
}

type pooledZstd struct {
	dec *zstd.Decoder
}

func (p *pooledZstd) Read(b []byte) (int, error) {
	if p.dec == nil {
		return 0, io.ErrClosedPipe
	}
	return p.dec.Read(b)
}

func (p *pooledZstd) Close() error {
	if p.dec == nil {
		return nil
	}
	// Drop the reference to the source before pooling.
	_ = p.dec.Reset(nil)
	zstdPool.Put(p.dec)
	p.dec = nil
	return nil
}
