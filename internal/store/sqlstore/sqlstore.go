// Package sqlstore implements the store.Store interface on database/sql,
// backed by SQLite (modernc.org/sqlite) or PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/asgdb/internal/model"
	"github.com/alfredjeanlab/asgdb/internal/store"
)

// SQLStore implements store.Store on a lazily (re)opened database handle.
type SQLStore struct {
	conn       *Conn
	dialect    Dialect
	log        *slog.Logger
	logQueries bool
}

// Compile-time check that SQLStore implements store.Store.
var _ store.Store = (*SQLStore)(nil)

// New opens the database described by opts and applies any pending
// migrations. A failed open is retried on the next operation.
func New(ctx context.Context, opts Options) (*SQLStore, error) {
	if opts.Dialect == "" {
		opts.Dialect = DialectSQLite
	}
	if !opts.Dialect.IsValid() {
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
		opts.Logger = log
	}
	s := &SQLStore{
		conn:       NewConn(opts),
		dialect:    opts.Dialect,
		log:        log,
		logQueries: opts.LogQueries,
	}
	if _, err := s.conn.DB(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing handle. No migrations are run and the handle
// is not reopened once closed.
func NewWithDB(db *sql.DB, dialect Dialect) *SQLStore {
	log := slog.Default()
	return &SQLStore{conn: staticConn(db, log), dialect: dialect, log: log}
}

// Dialect reports the SQL engine behind the store.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// DB returns the live database handle.
func (s *SQLStore) DB(ctx context.Context) (*sql.DB, error) {
	return s.conn.DB(ctx)
}

// Migrate applies pending schema migrations to the current handle.
func (s *SQLStore) Migrate(ctx context.Context) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	if err := runMigrations(ctx, db, s.dialect); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.conn.Close()
}

func (s *SQLStore) wrap(e executor) executor {
	if s.logQueries {
		return loggingExecutor{next: e, log: s.log}
	}
	return e
}

func (s *SQLStore) exec(ctx context.Context) (executor, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	return s.wrap(db), nil
}

func (s *SQLStore) PutValue(ctx context.Context, rec *model.KeyedRecord) error {
	db, err := s.exec(ctx)
	if err != nil {
		return err
	}
	return queryPutValue(ctx, db, rec)
}

func (s *SQLStore) GetValue(ctx context.Context, namespace, identity, key string) (*model.KeyedRecord, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryGetValue(ctx, db, namespace, identity, key)
}

func (s *SQLStore) ListValues(ctx context.Context, namespace, identity string) ([]*model.KeyedRecord, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryListValues(ctx, db, namespace, identity)
}

func (s *SQLStore) DeleteValue(ctx context.Context, namespace, identity, key string) error {
	db, err := s.exec(ctx)
	if err != nil {
		return err
	}
	return queryDeleteValue(ctx, db, namespace, identity, key)
}

func (s *SQLStore) DeleteValues(ctx context.Context, namespace, identity string) (int64, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return 0, err
	}
	return queryDeleteValues(ctx, db, namespace, identity)
}

func (s *SQLStore) ListNamespaces(ctx context.Context) ([]string, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryListNamespaces(ctx, db)
}

func (s *SQLStore) ListIdentities(ctx context.Context, namespace string) ([]string, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryListIdentities(ctx, db, namespace)
}

func (s *SQLStore) ListAllValues(ctx context.Context) ([]*model.KeyedRecord, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryListAllValues(ctx, db)
}

func (s *SQLStore) PutObject(ctx context.Context, obj *model.ObjectRecord) error {
	db, err := s.exec(ctx)
	if err != nil {
		return err
	}
	return queryPutObject(ctx, db, obj)
}

func (s *SQLStore) GetObject(ctx context.Context, namespace, id string) (*model.ObjectRecord, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryGetObject(ctx, db, namespace, id)
}

func (s *SQLStore) ListObjectIDs(ctx context.Context, namespace string) ([]string, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryListObjectIDs(ctx, db, namespace)
}

func (s *SQLStore) DeleteObject(ctx context.Context, namespace, id string) error {
	db, err := s.exec(ctx)
	if err != nil {
		return err
	}
	return queryDeleteObject(ctx, db, namespace, id)
}

func (s *SQLStore) ListAllObjects(ctx context.Context) ([]*model.ObjectRecord, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryListAllObjects(ctx, db)
}

func (s *SQLStore) AddTag(ctx context.Context, tag *model.Tag) error {
	db, err := s.exec(ctx)
	if err != nil {
		return err
	}
	return queryAddTag(ctx, db, tag)
}

func (s *SQLStore) GetTags(ctx context.Context, namespace, targetID string) ([]*model.Tag, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryGetTags(ctx, db, namespace, targetID)
}

func (s *SQLStore) FindByTag(ctx context.Context, namespace, name, value string) ([]string, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryFindByTag(ctx, db, namespace, name, value)
}

func (s *SQLStore) FindByTagName(ctx context.Context, namespace, name string) ([]string, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryFindByTagName(ctx, db, namespace, name)
}

func (s *SQLStore) RemoveTag(ctx context.Context, namespace, targetID, name string) error {
	db, err := s.exec(ctx)
	if err != nil {
		return err
	}
	return queryRemoveTag(ctx, db, namespace, targetID, name)
}

func (s *SQLStore) ClearTags(ctx context.Context, namespace, targetID string) (int64, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return 0, err
	}
	return queryClearTags(ctx, db, namespace, targetID)
}

func (s *SQLStore) ListAllTags(ctx context.Context) ([]*model.Tag, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryListAllTags(ctx, db)
}

func (s *SQLStore) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	return queryRaw(ctx, db, query, args...)
}

func (s *SQLStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	db, err := s.exec(ctx)
	if err != nil {
		return 0, err
	}
	return execRaw(ctx, db, query, args...)
}

func (s *SQLStore) CreateTable(ctx context.Context, name, definition string) error {
	db, err := s.exec(ctx)
	if err != nil {
		return err
	}
	return queryCreateTable(ctx, db, name, definition)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
// A panic in fn rolls back and is re-raised. fn must use only the store it
// is given; on SQLite the outer store waits for the transaction's connection.
func (s *SQLStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) (err error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(ctx, tx)
			panic(p)
		}
	}()

	txS := &txStore{db: s.wrap(tx)}
	if err := fn(txS); err != nil {
		s.rollback(ctx, tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollback logs a failed rollback instead of returning it, so the error that
// caused the rollback is the one the caller sees.
func (s *SQLStore) rollback(ctx context.Context, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.log.ErrorContext(ctx, "rollback failed", "err", err)
	}
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	db executor
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) PutValue(ctx context.Context, rec *model.KeyedRecord) error {
	return queryPutValue(ctx, s.db, rec)
}

func (s *txStore) GetValue(ctx context.Context, namespace, identity, key string) (*model.KeyedRecord, error) {
	return queryGetValue(ctx, s.db, namespace, identity, key)
}

func (s *txStore) ListValues(ctx context.Context, namespace, identity string) ([]*model.KeyedRecord, error) {
	return queryListValues(ctx, s.db, namespace, identity)
}

func (s *txStore) DeleteValue(ctx context.Context, namespace, identity, key string) error {
	return queryDeleteValue(ctx, s.db, namespace, identity, key)
}

func (s *txStore) DeleteValues(ctx context.Context, namespace, identity string) (int64, error) {
	return queryDeleteValues(ctx, s.db, namespace, identity)
}

func (s *txStore) ListNamespaces(ctx context.Context) ([]string, error) {
	return queryListNamespaces(ctx, s.db)
}

func (s *txStore) ListIdentities(ctx context.Context, namespace string) ([]string, error) {
	return queryListIdentities(ctx, s.db, namespace)
}

func (s *txStore) ListAllValues(ctx context.Context) ([]*model.KeyedRecord, error) {
	return queryListAllValues(ctx, s.db)
}

func (s *txStore) PutObject(ctx context.Context, obj *model.ObjectRecord) error {
	return queryPutObject(ctx, s.db, obj)
}

func (s *txStore) GetObject(ctx context.Context, namespace, id string) (*model.ObjectRecord, error) {
	return queryGetObject(ctx, s.db, namespace, id)
}

func (s *txStore) ListObjectIDs(ctx context.Context, namespace string) ([]string, error) {
	return queryListObjectIDs(ctx, s.db, namespace)
}

func (s *txStore) DeleteObject(ctx context.Context, namespace, id string) error {
	return queryDeleteObject(ctx, s.db, namespace, id)
}

func (s *txStore) ListAllObjects(ctx context.Context) ([]*model.ObjectRecord, error) {
	return queryListAllObjects(ctx, s.db)
}

func (s *txStore) AddTag(ctx context.Context, tag *model.Tag) error {
	return queryAddTag(ctx, s.db, tag)
}

func (s *txStore) GetTags(ctx context.Context, namespace, targetID string) ([]*model.Tag, error) {
	return queryGetTags(ctx, s.db, namespace, targetID)
}

func (s *txStore) FindByTag(ctx context.Context, namespace, name, value string) ([]string, error) {
	return queryFindByTag(ctx, s.db, namespace, name, value)
}

func (s *txStore) FindByTagName(ctx context.Context, namespace, name string) ([]string, error) {
	return queryFindByTagName(ctx, s.db, namespace, name)
}

func (s *txStore) RemoveTag(ctx context.Context, namespace, targetID, name string) error {
	return queryRemoveTag(ctx, s.db, namespace, targetID, name)
}

func (s *txStore) ClearTags(ctx context.Context, namespace, targetID string) (int64, error) {
	return queryClearTags(ctx, s.db, namespace, targetID)
}

func (s *txStore) ListAllTags(ctx context.Context) ([]*model.Tag, error) {
	return queryListAllTags(ctx, s.db)
}

func (s *txStore) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return queryRaw(ctx, s.db, query, args...)
}

func (s *txStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execRaw(ctx, s.db, query, args...)
}

func (s *txStore) CreateTable(ctx context.Context, name, definition string) error {
	return queryCreateTable(ctx, s.db, name, definition)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
