// Package engine is the typed facade over a store.Store. Every operation
// runs on the caller's goroutine and reports failure through its return
// value: a Result for writes, false or an empty collection for reads.
// Storage errors never panic into caller code.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alfredjeanlab/asgdb/internal/backup"
	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/config"
	"github.com/alfredjeanlab/asgdb/internal/events"
	"github.com/alfredjeanlab/asgdb/internal/store"
	"github.com/alfredjeanlab/asgdb/internal/store/sqlstore"
)

// Error classes carried by Result.Err. Test with errors.Is.
var (
	ErrConnectivity = errors.New("database unavailable")
	ErrWrite        = errors.New("write failed")
	ErrDecode       = codec.ErrDecode
	ErrBatch        = errors.New("batch rolled back")
)

// Result reports the outcome of a write. OK is true when at least one row
// was affected. A missing row yields OK=false with a nil Err.
type Result struct {
	OK       bool
	Affected int64
	Err      error
}

func affected(n int64) Result {
	return Result{OK: n > 0, Affected: n}
}

// Engine is an explicitly constructed storage instance.
type Engine struct {
	store store.Store
	log   *slog.Logger
	pub   events.Publisher

	snapshot *snapshotConfig

	mu       sync.Mutex
	shutdown bool
}

type snapshotConfig struct {
	dir  string
	name string
	max  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for failure reporting.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPublisher sets where change events go after a successful write.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.pub = p
		}
	}
}

// WithSnapshotOnShutdown makes Shutdown write a rotated SQLite snapshot to
// dir/<name>_<timestamp>.db, keeping the newest max files.
func WithSnapshotOnShutdown(dir, name string, max int) Option {
	return func(e *Engine) {
		e.snapshot = &snapshotConfig{dir: dir, name: name, max: max}
	}
}

// New wraps an existing store.
func New(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		log:   slog.Default(),
		pub:   &events.NoopPublisher{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open builds the store described by cfg and wraps it. The schema is applied
// while opening; a failure to reach the database is reported as
// ErrConnectivity.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	e := New(nil, opts...)

	dialect := sqlstore.Dialect(cfg.Database.Driver)
	path := cfg.DatabasePath()
	if dialect == sqlstore.DialectSQLite && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating database dir: %w", ErrConnectivity, err)
		}
	}

	st, err := sqlstore.New(ctx, sqlstore.Options{
		Dialect:     dialect,
		Path:        path,
		URL:         cfg.Database.URL,
		BusyTimeout: cfg.BusyTimeout(),
		MaxConns:    cfg.Performance.MaxConnections,
		UsePool:     cfg.Performance.UseConnectionPool,
		LogQueries:  cfg.Debug.LogQueries,
		Logger:      e.log,
	})
	if err != nil {
		e.log.ErrorContext(ctx, "opening database failed", "driver", dialect, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	e.store = st

	if e.snapshot == nil && cfg.Database.BackupOnShutdown &&
		dialect == sqlstore.DialectSQLite && path != ":memory:" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		e.snapshot = &snapshotConfig{dir: cfg.BackupDir(), name: name, max: cfg.Database.MaxBackups}
	}
	return e, nil
}

// Store returns the underlying store, for export and import.
func (e *Engine) Store() store.Store {
	return e.store
}

// Setup applies the schema. It is idempotent and safe on every startup.
func (e *Engine) Setup(ctx context.Context) Result {
	m, ok := e.store.(interface{ Migrate(context.Context) error })
	if !ok {
		return Result{OK: true}
	}
	if err := m.Migrate(ctx); err != nil {
		e.log.ErrorContext(ctx, "schema setup failed", "err", err)
		return Result{Err: fmt.Errorf("%w: setup: %w", ErrConnectivity, err)}
	}
	return Result{OK: true}
}

// DB returns a live database handle, reopening it if it was closed.
func (e *Engine) DB(ctx context.Context) (*sql.DB, error) {
	p, ok := e.store.(interface {
		DB(context.Context) (*sql.DB, error)
	})
	if !ok {
		return nil, fmt.Errorf("%w: store has no database handle", ErrConnectivity)
	}
	db, err := p.DB(ctx)
	if err != nil {
		e.log.ErrorContext(ctx, "acquiring connection failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	return db, nil
}

// Shutdown writes the configured snapshot, then closes the store and the
// event publisher. A snapshot failure is logged and does not block closing.
// The store reopens its handle if used afterwards, so a later Shutdown closes
// it again; the snapshot and the publisher are only handled the first time.
func (e *Engine) Shutdown(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	first := !e.shutdown
	e.shutdown = true

	if first && e.snapshot != nil {
		e.writeSnapshot(ctx)
	}

	var errs []error
	if err := e.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	if first {
		if err := e.pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing publisher: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		e.log.ErrorContext(ctx, "shutdown failed", "err", err)
		return Result{Err: err}
	}
	return Result{OK: true}
}

func (e *Engine) writeSnapshot(ctx context.Context) {
	db, err := e.DB(ctx)
	if err != nil {
		return
	}
	path, err := backup.Snapshot(ctx, db, e.snapshot.dir, e.snapshot.name, e.snapshot.max)
	if err != nil {
		e.log.ErrorContext(ctx, "database backup failed", "dir", e.snapshot.dir, "err", err)
		return
	}
	e.log.InfoContext(ctx, "database backup created", "path", path)
}

// kind maps a store error to the error class reported to callers.
func kind(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return ErrConnectivity
	}
	return ErrWrite
}

func (e *Engine) writeFailed(ctx context.Context, op string, err error, attrs ...any) Result {
	e.log.ErrorContext(ctx, op+" failed", append(attrs, "err", err)...)
	return Result{Err: fmt.Errorf("%w: %s: %w", kind(err), op, err)}
}

func (e *Engine) batchFailed(ctx context.Context, op string, err error, attrs ...any) Result {
	e.log.ErrorContext(ctx, op+" rolled back", append(attrs, "err", err)...)
	return Result{Err: fmt.Errorf("%w: %w: %s: %w", ErrBatch, kind(err), op, err)}
}

func (e *Engine) readFailed(ctx context.Context, op string, err error, attrs ...any) {
	e.log.ErrorContext(ctx, op+" failed", append(attrs, "err", err)...)
}

func (e *Engine) decodeFailed(ctx context.Context, op string, err error, attrs ...any) {
	e.log.WarnContext(ctx, op+": cannot decode stored value", append(attrs, "err", err)...)
}

func (e *Engine) publish(ctx context.Context, topic string, event any) {
	if err := e.pub.Publish(ctx, topic, event); err != nil {
		e.log.WarnContext(ctx, "publishing event failed", "topic", topic, "err", err)
	}
}

// nonNil keeps list results usable as empty collections.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
