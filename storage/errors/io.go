package errors

import (
	"os"
)

// Open 打开文件失败
func Open(path string, err error) error {
	code := ErrIO
	if os.IsNotExist(err) {
		code = ErrFileNotFound
	}
	return New(code).
		Op("open_file").
		Path(path).
		Wrap(err).
		Build()
}

// Skip reports a failure to advance the stream to a declared offset.
func Skip(op string, from, to int64, err error) error {
	return New(ioCode(err)).
		Op(op).
		Offset(from).
		Context("target_offset", to).
		Wrap(err).
		Build()
}

// UnexpectedEOF 意外EOF
func UnexpectedEOF(op string, offset int64, expected, actual int) error {
	return New(ErrUnexpectedEOF).
		Op(op).
		Offset(offset).
		Context("expected_bytes", expected).
		Context("actual_bytes", actual).
		Build()
}

// DecompressFailed wraps an inflater failure. It is I/O class: the table it
// belongs to is lost, the container is not.
func DecompressFailed(codec string, table string, err error) error {
	return New(ErrDecompressFailed).
		Op(codec+"_decompress").
		Context("codec", codec).
		Context("table", table).
		Wrap(err).
		Build()
}
