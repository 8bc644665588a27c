// Package gormsqlite opens the run report database: a pool of read-only
// connections and a single writer on the same SQLite file.
package gormsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	gormdriver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// DB holds a reader and a single-connection writer on the same SQLite file.
type DB struct {
	R *gorm.DB
	W *gorm.DB
}

type Tx struct {
	*gorm.DB
}

type cbfn func(tx *Tx) error

func (db *DB) ReadTX(ctx context.Context, fn cbfn) error {
	return db.R.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{DB: tx})
	}, &sql.TxOptions{ReadOnly: true})
}

func (db *DB) WriteTX(ctx context.Context, fn cbfn) error {
	return db.W.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{DB: tx})
	})
}

// WriteSQLDB exposes the writer pool, which migrations run on.
func (db *DB) WriteSQLDB() (*sql.DB, error) {
	return db.W.DB()
}

func (db *DB) Close() error {
	return errors.Join(closeGORM(db.R), closeGORM(db.W))
}

var _ io.Closer = (*DB)(nil)

// Options tune Open. The zero value is what the CLI uses.
type Options struct {
	// SlowQuery logs statements slower than this to stderr; zero disables it.
	SlowQuery time.Duration
	// Readers caps the reader pool; zero means one per CPU.
	Readers int
}

// Open creates the parent directory of file when needed and opens both pools.
func Open(file string, opts ...Options) (*DB, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Readers <= 0 {
		o.Readers = runtime.NumCPU()
	}

	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report db dir: %w", err)
		}
	}

	cfg := &gorm.Config{PrepareStmt: true, Logger: newLogger(o.SlowQuery)}

	reader, err := gorm.Open(gormdriver.Dialector{DriverName: driverName, DSN: buildDSN(file, true)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("open read db: %w", err)
	}
	writer, err := gorm.Open(gormdriver.Dialector{DriverName: driverName, DSN: buildDSN(file, false)}, cfg)
	if err != nil {
		_ = closeGORM(reader)
		return nil, fmt.Errorf("open write db: %w", err)
	}

	db := &DB{R: reader, W: writer}
	if err := db.configurePools(o.Readers); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) configurePools(readers int) error {
	rdb, err := db.R.DB()
	if err != nil {
		return fmt.Errorf("reader sql db: %w", err)
	}
	wdb, err := db.W.DB()
	if err != nil {
		return fmt.Errorf("writer sql db: %w", err)
	}

	rdb.SetMaxOpenConns(readers)
	rdb.SetMaxIdleConns(readers)
	rdb.SetConnMaxIdleTime(0)

	// One writer connection serialises report inserts.
	wdb.SetMaxOpenConns(1)
	wdb.SetMaxIdleConns(1)
	wdb.SetConnMaxIdleTime(0)
	return nil
}

// newLogger keeps GORM off stdout, which carries validation output.
func newLogger(slow time.Duration) logger.Interface {
	level := logger.Silent
	if slow > 0 {
		level = logger.Warn
	}
	return logger.New(
		log.New(os.Stderr, "gorm: ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)
}

// buildDSN attaches the pragmas as modernc "_pragma" parameters so that every
// pooled connection gets them, not only the first one.
func buildDSN(file string, readOnly bool) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"temp_store(MEMORY)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
		"trusted_schema(OFF)",
	}
	if readOnly {
		pragmas = append(pragmas, "query_only(1)")
	} else {
		pragmas = append(pragmas, "query_only(0)")
	}
	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(file, "?") {
		sep = "&"
	}
	return file + sep + strings.Join(params, "&")
}

func closeGORM(g *gorm.DB) error {
	if g == nil {
		return nil
	}
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
