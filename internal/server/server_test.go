package server

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alfredjeanlab/asgdb/internal/engine"
	"github.com/alfredjeanlab/asgdb/internal/store/sqlstore"
)

// newTestServer returns a Server over a fresh in-memory SQLite engine whose
// events go to the server's hub.
func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	st, err := sqlstore.New(context.Background(), sqlstore.Options{
		Dialect:     sqlstore.DialectSQLite,
		Path:        ":memory:",
		BusyTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	hub := NewHub()
	e := engine.New(st, engine.WithLogger(logger), engine.WithPublisher(hub))
	return New(e, hub, logger), e
}
