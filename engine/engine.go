package engine

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const (
	defaultBusyTimeout = 5 * time.Second
	defaultJournalMode = "WAL"
)

// Options controls how a database handle is opened.
type Options struct {
	// BusyTimeout is applied with PRAGMA busy_timeout on every connection.
	BusyTimeout time.Duration
	// JournalMode is applied with PRAGMA journal_mode on file databases.
	JournalMode string
}

// DefaultOptions returns the options used when callers do not override them.
func DefaultOptions() Options {
	return Options{BusyTimeout: defaultBusyTimeout, JournalMode: defaultJournalMode}
}

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open(DriverName, dsn) }

// IsMemory reports whether path names an in-memory database.
func IsMemory(path string) bool {
	return path == MemoryPath || strings.HasPrefix(path, "file::memory:") || strings.Contains(path, "mode=memory")
}

// DSN builds the driver data source name for path, appending one _pragma
// parameter per configured pragma. Paths that already carry a query string
// are returned unchanged.
func DSN(path string, opts Options) string {
	if strings.Contains(path, "?") {
		return path
	}
	params := url.Values{}
	if opts.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	if opts.JournalMode != "" && !IsMemory(path) {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", opts.JournalMode))
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

// OpenContext opens the database at path and verifies that a connection can
// be established. In-memory databases are pinned to a single connection so
// every statement sees the same database.
func OpenContext(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("engine: empty database path")
	}
	db, err := Open(DSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}
	if IsMemory(path) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: connect %s: %w", path, err)
	}
	return db, nil
}
