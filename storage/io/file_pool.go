package io

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

// TempFile is a stream spooled to disk so that a path-based reader (an
// embedded database engine) can open it.
type TempFile struct {
	ID   string
	Path string
	Size int64

	pool *TempPool
}

// Close removes the file and drops it from its pool. Closing twice is safe.
func (f *TempFile) Close() error {
	if f == nil || f.pool == nil {
		return nil
	}
	return f.pool.Release(f.ID)
}

// TempPool owns the temp files spooled during one decode call and removes
// whatever is still registered when it is closed.
type TempPool struct {
	mu      sync.Mutex
	dir     string
	limit   int64
	handles map[string]*TempFile
	closed  bool
}

// NewTempPool creates a pool that spools into dir (os.TempDir when empty)
// and refuses streams larger than limit bytes (no limit when <= 0).
func NewTempPool(dir string, limit int64) *TempPool {
	return &TempPool{
		dir:     dir,
		limit:   limit,
		handles: make(map[string]*TempFile),
	}
}

// Spool copies r to a new temp file.
func (p *TempPool) Spool(r io.Reader, name string) (*TempFile, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, lerrors.New(lerrors.ErrIO).
			Op("spool").
			Path(name).
			Context("reason", "temp pool is closed").
			Build()
	}
	p.mu.Unlock()

	id := uuid.NewString()
	f, err := os.CreateTemp(p.dir, "schedio-"+id+"-*")
	if err != nil {
		return nil, lerrors.IO("spool", name, err)
	}

	src := r
	if p.limit > 0 {
		src = io.LimitReader(r, p.limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, lerrors.IO("spool", name, err)
	}
	if p.limit > 0 && n > p.limit {
		os.Remove(f.Name())
		return nil, lerrors.EntryTooLarge("spool", name, p.limit)
	}

	tf := &TempFile{ID: id, Path: f.Name(), Size: n, pool: p}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		os.Remove(tf.Path)
		return nil, lerrors.New(lerrors.ErrIO).
			Op("spool").
			Path(name).
			Context("reason", "temp pool closed during spool").
			Build()
	}
	p.handles[id] = tf
	return tf, nil
}

// Release removes one spooled file.
func (p *TempPool) Release(id string) error {
	p.mu.Lock()
	tf, ok := p.handles[id]
	delete(p.handles, id)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	if err := os.Remove(tf.Path); err != nil && !os.IsNotExist(err) {
		return lerrors.IO("release_temp", tf.Path, err)
	}
	return nil
}

// Len returns how many spooled files are still registered.
func (p *TempPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Close removes every file still registered. Later Spool calls fail.
func (p *TempPool) Close() error {
	p.mu.Lock()
	handles := p.handles
	p.handles = make(map[string]*TempFile)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, tf := range handles {
		if err := os.Remove(tf.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", tf.Path, err))
		}
	}
	if len(errs) > 0 {
		return lerrors.New(lerrors.ErrIO).
			Op("close_temp_pool").
			Context("failed", len(errs)).
			Wrap(errors.Join(errs...)).
			Build()
	}
	return nil
}
