package sqlstore

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
)

// loggingExecutor logs every statement at debug level before handing it on.
type loggingExecutor struct {
	next executor
	log  *slog.Logger
}

func (e loggingExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := e.next.ExecContext(ctx, query, args...)
	e.logStatement(ctx, "exec", query, args, start, err)
	return res, err
}

func (e loggingExecutor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := e.next.QueryContext(ctx, query, args...)
	e.logStatement(ctx, "query", query, args, start, err)
	return rows, err
}

func (e loggingExecutor) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := e.next.QueryRowContext(ctx, query, args...)
	e.logStatement(ctx, "query row", query, args, start, row.Err())
	return row
}

func (e loggingExecutor) logStatement(ctx context.Context, kind, query string, args []any, start time.Time, err error) {
	attrs := []any{"sql", squash(query), "args", args, "duration", time.Since(start)}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	e.log.DebugContext(ctx, kind, attrs...)
}

// squash collapses whitespace so multi-line statements log on one line.
func squash(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
