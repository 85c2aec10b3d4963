package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/asgdb/internal/store"
)

// Dialect names the SQL engine behind a store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// IsValid checks whether the dialect is supported.
func (d Dialect) IsValid() bool {
	return d == DialectSQLite || d == DialectPostgres
}

// Options configures how a store opens its database.
type Options struct {
	Dialect Dialect
	// Path is the SQLite database file, or ":memory:".
	Path string
	// URL is the Postgres connection string.
	URL string
	// BusyTimeout bounds lock waits on SQLite and connection attempts on Postgres.
	BusyTimeout time.Duration
	// MaxConns caps the Postgres pool when UsePool is set. SQLite always
	// uses a single connection.
	MaxConns   int
	UsePool    bool
	LogQueries bool
	Logger     *slog.Logger
}

// Conn owns the database handle and reopens it on demand. A closed handle or
// one that fails a ping is replaced on the next call to DB.
type Conn struct {
	mu   sync.Mutex
	db   *sql.DB
	open func(ctx context.Context) (*sql.DB, error)
	log  *slog.Logger
}

// NewConn returns a Conn that opens the database described by opts lazily.
func NewConn(opts Options) *Conn {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Conn{
		log:  log,
		open: func(ctx context.Context) (*sql.DB, error) { return openDB(ctx, opts) },
	}
}

// staticConn wraps an existing handle. It is never reopened.
func staticConn(db *sql.DB, log *slog.Logger) *Conn {
	return &Conn{db: db, log: log}
}

// DB returns a live handle, opening or reopening the database as needed.
func (c *Conn) DB(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		err := c.db.PingContext(ctx)
		if err == nil {
			return c.db, nil
		}
		if c.open == nil {
			return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}
		c.log.WarnContext(ctx, "database connection lost, reopening", "err", err)
		_ = c.db.Close()
		c.db = nil
	}
	if c.open == nil {
		return nil, fmt.Errorf("%w: connection closed", store.ErrUnavailable)
	}

	db, err := c.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	c.log.Debug("database opened")
	c.db = db
	return db, nil
}

// Close closes the current handle. It is safe to call on a closed Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func openDB(ctx context.Context, opts Options) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch opts.Dialect {
	case DialectSQLite, "":
		opts.Dialect = DialectSQLite
		db, err = sql.Open("sqlite", sqliteDSN(opts.Path, opts.BusyTimeout))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		// One shared connection; statements queue on it.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	case DialectPostgres:
		db, err = sql.Open("postgres", opts.URL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		conns := 1
		if opts.UsePool && opts.MaxConns > 0 {
			conns = opts.MaxConns
		}
		db.SetMaxOpenConns(conns)
		db.SetMaxIdleConns(min(conns, 5))
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}

	pingCtx := ctx
	if opts.BusyTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.BusyTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(ctx, db, opts.Dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// sqliteDSN builds a modernc DSN carrying the connection pragmas.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}
