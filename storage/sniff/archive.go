package sniff

import (
	"context"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	"github.com/wzqhbustb/schedio/storage/format"
	sio "github.com/wzqhbustb/schedio/storage/io"
)

// unwrapArchive materialises a zip archive and sniffs its first regular
// entry, or each entry in turn when ScanAllEntries is set.
func (s *Sniffer) unwrapArchive(ctx context.Context, p *sio.Peeker, fp *format.Fingerprint, depth int, log *zap.Logger) (*Result, error) {
	archive, err := sio.Materialize(p, "archive", s.cfg.MaxEntrySize)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(archive, archive.Size())
	if err != nil {
		return nil, lerrors.New(lerrors.ErrCorruptedFile).
			Op("open_archive").
			Context("format", fp.Format.String()).
			Wrap(err).
			Build()
	}

	var entries []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		entries = append(entries, f)
	}
	if len(entries) == 0 {
		return &Result{Fingerprint: fp, Reason: "archive has no entries"}, nil
	}
	if !s.cfg.ScanAllEntries {
		entries = entries[:1]
	}

	var last *Result
	for _, f := range entries {
		child, err := s.sniffEntry(ctx, f, depth, log)
		if err != nil {
			if s.cfg.ScanAllEntries && lerrors.IsDecode(err) {
				log.Debug("skipping archive entry", zap.String("entry", f.Name), zap.Error(err))
				continue
			}
			if last != nil {
				last.Close()
			}
			return nil, err
		}
		child = wrap(child, Layer{Format: fp.Format, Entry: f.Name})
		if child.Entry == "" {
			child.Entry = f.Name
		}
		if child.Recognized() {
			if last != nil {
				last.Close()
			}
			return child, nil
		}
		if last != nil {
			last.Close()
		}
		last = child
	}

	if last == nil {
		return &Result{Fingerprint: fp, Reason: "no archive entry could be classified"}, nil
	}
	return last, nil
}

func (s *Sniffer) sniffEntry(ctx context.Context, f *zip.File, depth int, log *zap.Logger) (*Result, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, lerrors.New(lerrors.ErrCorruptedFile).
			Op("open_archive_entry").
			Path(f.Name).
			Wrap(err).
			Build()
	}
	entry, err := sio.Materialize(rc, f.Name, s.cfg.MaxEntrySize)
	rc.Close()
	if err != nil {
		return nil, err
	}
	log.Debug("unwrapped archive entry", zap.String("entry", f.Name), zap.Int64("bytes", entry.Size()))
	return s.sniff(ctx, entry, depth+1, log)
}
