package sniff

import (
	"context"
	"io"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	"github.com/wzqhbustb/schedio/storage/format"
	sio "github.com/wzqhbustb/schedio/storage/io"
)

// stripBOM drops a UTF-8 byte order mark and sniffs the rest.
func (s *Sniffer) stripBOM(ctx context.Context, p *sio.Peeker, fp *format.Fingerprint, depth int, log *zap.Logger) (*Result, error) {
	if _, err := io.CopyN(io.Discard, p, int64(len(fp.Magic))); err != nil {
		return nil, lerrors.IO("strip_bom", "", err)
	}
	child, err := s.sniff(ctx, p, depth+1, log)
	if err != nil {
		return nil, err
	}
	return wrap(child, Layer{Format: fp.Format}), nil
}

// transcodeUTF16 converts a UTF-16 stream, either byte order, to UTF-8 and
// sniffs the result. The BOM selects the byte order and is dropped.
func (s *Sniffer) transcodeUTF16(ctx context.Context, p *sio.Peeker, fp *format.Fingerprint, depth int, log *zap.Logger) (*Result, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	child, err := s.sniff(ctx, transform.NewReader(p, dec), depth+1, log)
	if err != nil {
		return nil, err
	}
	return wrap(child, Layer{Format: fp.Format}), nil
}
