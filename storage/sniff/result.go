package sniff

import (
	"errors"
	"io"
	"sync"

	"github.com/wzqhbustb/schedio/storage/format"
)

// Layer is one generic container unwrapped on the way to the result.
type Layer struct {
	Format format.Format
	Entry  string // archive entry name, when the layer is an archive
}

// Result is the outcome of one Sniff call. An unrecognized input is a
// Result with Format == format.FormatUnknown, not an error.
type Result struct {
	Format      format.Format
	Fingerprint *format.Fingerprint // innermost match; nil when nothing matched

	// Reader replays the classified stream from its first byte. For
	// database formats it reads the spooled database file.
	Reader io.Reader

	Chain []Layer // outermost first
	Entry string  // innermost archive entry name

	// Database results.
	File   string
	Tables []string
	Marker format.MarkerTable

	// Reason explains an unrecognized result.
	Reason string

	DecodeID string

	mu      sync.Mutex
	closers []io.Closer // 由外到内，Close 倒序执行
	closed  bool
}

// Recognized reports whether a schedule format was identified.
func (r *Result) Recognized() bool {
	return r.Format != format.FormatUnknown
}

// Depth returns how many containers were unwrapped.
func (r *Result) Depth() int {
	return len(r.Chain)
}

// addCloser adds a resource of the innermost layer, closed before anything
// already held.
func (r *Result) addCloser(c io.Closer) {
	r.mu.Lock()
	r.closers = append(r.closers, c)
	r.mu.Unlock()
}

// addOuterCloser adds a resource of a layer wrapping everything already
// held, closed after it.
func (r *Result) addOuterCloser(c io.Closer) {
	r.mu.Lock()
	r.closers = append([]io.Closer{c}, r.closers...)
	r.mu.Unlock()
}

// Attach hands c to the result as its outermost resource: Close closes it
// after everything the sniffer acquired. On a closed result c is closed at
// once.
func (r *Result) Attach(c io.Closer) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return c.Close()
	}
	r.closers = append([]io.Closer{c}, r.closers...)
	r.mu.Unlock()
	return nil
}

// Close releases everything acquired for the result: decompressors, open
// files and spooled temp files. It is safe to call more than once.
func (r *Result) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var errs []error
	// Innermost first.
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
