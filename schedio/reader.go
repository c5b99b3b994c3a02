// Package schedio identifies schedule files and hands them to format
// handlers. A Reader sniffs an input through any archive, compression,
// text-encoding or database wrapping and dispatches the innermost stream by
// its detected format. It also exposes the two container readers shared by
// binary schedule formats: the compressed table store and the block
// boundary scanner.
package schedio

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/wzqhbustb/schedio/internal/metrics"
	"github.com/wzqhbustb/schedio/storage/blockscan"
	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	"github.com/wzqhbustb/schedio/storage/format"
	sio "github.com/wzqhbustb/schedio/storage/io"
	"github.com/wzqhbustb/schedio/storage/sniff"
	"github.com/wzqhbustb/schedio/storage/tablestore"
)

// Handler decodes a recognized input. res.Reader replays the innermost
// stream from its first byte; the Reader closes res after the handler
// returns.
type Handler func(ctx context.Context, res *sniff.Result) error

// Outcome summarises one Dispatch. It holds no resources.
type Outcome struct {
	Format   format.Format
	Chain    []sniff.Layer
	Entry    string
	Marker   format.MarkerTable
	Tables   []string
	Reason   string
	DecodeID string

	// Handled is true when a handler ran and returned nil.
	Handled bool
}

// Reader is the entry point for sniffing and dispatching schedule inputs.
// It is safe for concurrent use.
type Reader struct {
	config   *Config
	sniffer  *sniff.Sniffer
	scanner  *blockscan.Scanner
	handlers map[format.Format]Handler

	mu     sync.RWMutex
	closed bool
}

// New creates a Reader.
func New(opts ...Option) (*Reader, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sopts := []sniff.Option{
		sniff.WithConfig(sniff.Config{
			PeekSize:       config.PeekSize,
			MaxDepth:       config.MaxDepth,
			MaxEntrySize:   config.MaxEntrySize,
			ScanAllEntries: config.ScanAllEntries,
			TempDir:        config.TempDir,
		}),
		sniff.WithLogger(config.Logger.Named("sniff")),
	}
	for f, l := range config.TableListers {
		sopts = append(sopts, sniff.WithTableLister(f, l))
	}
	sn, err := sniff.New(sopts...)
	if err != nil {
		return nil, err
	}

	sc, err := blockscan.NewScanner(
		blockscan.WithCharset(config.Charset),
		blockscan.WithLogger(config.Logger.Named("blockscan")),
	)
	if err != nil {
		return nil, err
	}

	return &Reader{
		config:   config,
		sniffer:  sn,
		scanner:  sc,
		handlers: make(map[format.Format]Handler),
	}, nil
}

// Config returns a copy of the effective configuration.
func (r *Reader) Config() Config {
	return *r.config
}

// Register sets the handler for a schedule format. A nil handler removes it.
func (r *Reader) Register(f format.Format, h Handler) error {
	if f.Kind() != format.KindSchedule {
		return lerrors.InvalidArg("register", fmt.Sprintf("%s is not a schedule format", f))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if h == nil {
		delete(r.handlers, f)
		return nil
	}
	r.handlers[f] = h
	return nil
}

// Handles reports whether a handler is registered for f.
func (r *Reader) Handles(f format.Format) bool {
	_, ok := r.handler(f)
	return ok
}

func (r *Reader) handler(f format.Format) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[f]
	return h, ok
}

func (r *Reader) checkOpen() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return nil
}

// Sniff classifies in. The caller must close the result.
func (r *Reader) Sniff(ctx context.Context, in io.Reader) (*sniff.Result, error) {
	return r.sniff(ctx, in, "")
}

// SniffFile classifies the file at path. Closing the result closes the file.
func (r *Reader) SniffFile(ctx context.Context, path string) (*sniff.Result, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError("sniff", path, lerrors.Open(path, err))
	}
	res, err := r.sniff(ctx, f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := res.Attach(f); err != nil {
		res.Close()
		return nil, wrapError("sniff", path, err)
	}
	return res, nil
}

func (r *Reader) sniff(ctx context.Context, in io.Reader, path string) (*sniff.Result, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	res, err := r.sniffer.Sniff(ctx, in)
	if err != nil {
		return nil, wrapError("sniff", path, err)
	}
	r.config.Recorder.Detection(res.Format.String())
	return res, nil
}

// Dispatch sniffs in and runs the handler registered for the detected
// format. Unrecognized input is not an error: the Outcome reports why and
// Handled is false. A recognized format without a handler returns
// ErrNoHandler along with the Outcome.
func (r *Reader) Dispatch(ctx context.Context, in io.Reader) (*Outcome, error) {
	return r.dispatch(ctx, in, "")
}

// DispatchFile dispatches the file at path.
func (r *Reader) DispatchFile(ctx context.Context, path string) (*Outcome, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError("dispatch", path, lerrors.Open(path, err))
	}
	defer f.Close()
	return r.dispatch(ctx, f, path)
}

func (r *Reader) dispatch(ctx context.Context, in io.Reader, path string) (*Outcome, error) {
	res, err := r.sniff(ctx, in, path)
	if err != nil {
		return nil, err
	}
	out := outcomeOf(res)
	log := r.config.Logger.With(zap.String("decode_id", res.DecodeID))

	if !res.Recognized() {
		log.Debug("input not recognized", zap.String("reason", res.Reason))
		return out, wrapError("dispatch", path, res.Close())
	}

	h, ok := r.handler(res.Format)
	if !ok {
		res.Close()
		return out, wrapError("dispatch", path, fmt.Errorf("%w for %s", ErrNoHandler, res.Format))
	}

	herr := h(ctx, res)
	cerr := res.Close()
	if herr != nil {
		log.Debug("handler failed", zap.Stringer("format", res.Format), zap.Error(herr))
		return out, wrapError("dispatch", path, herr)
	}
	out.Handled = true
	return out, wrapError("dispatch", path, cerr)
}

func outcomeOf(res *sniff.Result) *Outcome {
	return &Outcome{
		Format:   res.Format,
		Chain:    res.Chain,
		Entry:    res.Entry,
		Marker:   res.Marker,
		Tables:   res.Tables,
		Reason:   res.Reason,
		DecodeID: res.DecodeID,
	}
}

// ReadTables reads a compressed table container and extracts the configured
// required tables.
func (r *Reader) ReadTables(in io.Reader) (*tablestore.Store, error) {
	return r.readTables(in, r.config.Required)
}

func (r *Reader) readTables(in io.Reader, required []string) (*tablestore.Store, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	store, err := tablestore.Read(in, required,
		tablestore.WithMaxDescriptors(r.config.MaxDescriptors),
		tablestore.WithCharset(r.config.Charset),
		tablestore.WithLogger(r.config.Logger.Named("tablestore")),
	)
	if err != nil {
		return nil, wrapError("read_tables", "", err)
	}
	rec := r.config.Recorder
	rec.Tables(metrics.TableExtracted, len(store.Tables))
	rec.Tables(metrics.TableSkipped, store.Skipped)
	rec.Tables(metrics.TableFailed, len(store.Errors))
	return store, nil
}

// ReadTOC lists a table container's version and descriptors without
// extracting anything.
func (r *Reader) ReadTOC(in io.Reader) (*tablestore.TOC, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	toc, err := tablestore.ReadTOC(in,
		tablestore.WithMaxDescriptors(r.config.MaxDescriptors),
		tablestore.WithCharset(r.config.Charset),
	)
	return toc, wrapError("read_toc", "", err)
}

// ScanBlocks splits buf at the block signatures of its version.
func (r *Reader) ScanBlocks(buf []byte) ([]blockscan.Block, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	blocks, err := r.scanner.Scan(buf)
	if err != nil {
		return nil, wrapError("scan_blocks", "", err)
	}
	for _, b := range blocks {
		r.config.Recorder.Block(b.Kind.String())
	}
	return blocks, nil
}

// TableStoreHandler adapts fn into a Handler that reads the input as a
// table container. A nil required uses the configured tables.
func (r *Reader) TableStoreHandler(required []string, fn func(ctx context.Context, store *tablestore.Store) error) Handler {
	if required == nil {
		required = r.config.Required
	}
	return func(ctx context.Context, res *sniff.Result) error {
		store, err := r.readTables(res.Reader, required)
		if err != nil {
			return err
		}
		return fn(ctx, store)
	}
}

// BlockScanHandler adapts fn into a Handler that loads the input, bounded
// by MaxEntrySize, and splits it into blocks.
func (r *Reader) BlockScanHandler(fn func(ctx context.Context, blocks []blockscan.Block) error) Handler {
	return func(ctx context.Context, res *sniff.Result) error {
		br, err := sio.Materialize(res.Reader, res.Format.String(), r.config.MaxEntrySize)
		if err != nil {
			return err
		}
		buf := make([]byte, br.Len())
		if _, err := io.ReadFull(br, buf); err != nil {
			return lerrors.IO("scan_blocks", "", err)
		}
		blocks, err := r.ScanBlocks(buf)
		if err != nil {
			return err
		}
		return fn(ctx, blocks)
	}
}

// Close releases the handler registry. Further calls return ErrClosed.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.handlers = nil
	return nil
}
