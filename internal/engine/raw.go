package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/asgdb/internal/store"
)

// RawQuery runs a parameterized statement and returns every row as a
// column-name map. Unlike the typed operations it returns the error, since
// the caller asked for SQL semantics.
func (e *Engine) RawQuery(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := e.store.Query(ctx, query, args...)
	if err != nil {
		e.readFailed(ctx, "raw query", err)
		return nil, rawError(err)
	}
	return rows, nil
}

// RawExecute runs a parameterized statement and returns the affected row count.
func (e *Engine) RawExecute(ctx context.Context, query string, args ...any) (int64, error) {
	n, err := e.store.Exec(ctx, query, args...)
	if err != nil {
		e.readFailed(ctx, "raw execute", err)
		return 0, rawError(err)
	}
	return n, nil
}

// CreateCustomTable creates table name with the given column definition if
// it does not exist yet.
func (e *Engine) CreateCustomTable(ctx context.Context, name, definition string) Result {
	if err := e.store.CreateTable(ctx, name, definition); err != nil {
		return e.writeFailed(ctx, "create table", err, "table", name)
	}
	return Result{OK: true}
}

func rawError(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	return err
}
