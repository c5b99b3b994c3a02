package sniff

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
	"github.com/wzqhbustb/schedio/storage/format"
	sio "github.com/wzqhbustb/schedio/storage/io"
)

// TableLister lists the table names of a database file.
type TableLister interface {
	ListTables(ctx context.Context, path string) ([]string, error)
}

// SQLLister lists tables through a database/sql driver.
type SQLLister struct {
	Driver string
	DSN    func(path string) string
	Query  string // must return one column of table names
}

// SQLiteLister lists tables of a SQLite file with modernc.org/sqlite,
// opened read-only.
func SQLiteLister() SQLLister {
	return SQLLister{
		Driver: "sqlite",
		DSN: func(path string) string {
			return "file:" + path + "?mode=ro"
		},
		Query: "SELECT name FROM sqlite_master WHERE type = 'table'",
	}
}

// JetLister lists user tables of a Jet/ACE file through a caller-registered
// database/sql driver (typically ODBC), since no pure Go Jet engine exists.
func JetLister(driver string, dsn func(path string) string) SQLLister {
	return SQLLister{
		Driver: driver,
		DSN:    dsn,
		Query:  "SELECT Name FROM MSysObjects WHERE Type = 1 AND Flags = 0",
	}
}

func (l SQLLister) ListTables(ctx context.Context, path string) ([]string, error) {
	dsn := path
	if l.DSN != nil {
		dsn = l.DSN(path)
	}
	db, err := sql.Open(l.Driver, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, l.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// probeDatabase spools the stream to disk, lists its tables and resolves the
// schedule format from the marker tables present.
func (s *Sniffer) probeDatabase(ctx context.Context, p *sio.Peeker, fp *format.Fingerprint, log *zap.Logger) (*Result, error) {
	lister, ok := s.listers[fp.Format]
	if !ok {
		reason := fmt.Sprintf("no table lister configured for %s", fp.Format)
		log.Warn("database backend unavailable", zap.Stringer("container", fp.Format))
		return &Result{Fingerprint: fp, Reader: p, Reason: reason}, nil
	}

	pool := sio.NewTempPool(s.cfg.TempDir, s.cfg.MaxEntrySize)
	res := &Result{Fingerprint: fp}
	res.addCloser(pool)

	tf, err := pool.Spool(p, fp.Name)
	if err != nil {
		res.Close()
		return nil, err
	}
	res.File = tf.Path

	tables, err := lister.ListTables(ctx, tf.Path)
	if err != nil {
		if ctx.Err() != nil {
			res.Close()
			return nil, ctx.Err()
		}
		log.Warn("listing database tables failed", zap.Stringer("container", fp.Format), zap.Error(err))
		res.Reason = "cannot list tables: " + err.Error()
		if err := s.attachFile(res, tf.Path); err != nil {
			res.Close()
			return nil, err
		}
		return res, nil
	}
	for i := range tables {
		tables[i] = strings.ToUpper(tables[i])
	}
	res.Tables = tables

	res.Format, res.Marker = format.ResolveDatabase(fp.Format, tables)
	if res.Format == format.FormatUnknown {
		res.Reason = fmt.Sprintf("%s has no marker table", fp.Format)
	}
	log.Debug("database probed",
		zap.Stringer("container", fp.Format),
		zap.Int("tables", len(tables)),
		zap.Stringer("marker", res.Marker))

	if err := s.attachFile(res, tf.Path); err != nil {
		res.Close()
		return nil, err
	}
	return res, nil
}

// attachFile opens the spooled file as the result's Reader.
func (s *Sniffer) attachFile(res *Result, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return lerrors.Open(path, err)
	}
	res.Reader = f
	res.addCloser(f)
	return nil
}
