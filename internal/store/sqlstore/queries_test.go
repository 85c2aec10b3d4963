package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/asgdb/internal/model"
	"github.com/alfredjeanlab/asgdb/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// fixedNow pins the timestamp used by write queries for the duration of a test.
func fixedNow(t *testing.T, ts time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
}

var valueRowColumns = []string{
	"data_type", "identifier", "data_key", "data_value", "value_type",
	"metadata", "created_at", "updated_at",
}

func strPtr(s string) *string { return &s }

func TestQueryPutValue(t *testing.T) {
	db, mock := newMockDB(t)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fixedNow(t, ts)

	mock.ExpectQuery(`INSERT INTO data_storage .+ ON CONFLICT \(data_type, identifier, data_key\) DO UPDATE SET .+ RETURNING created_at`).
		WithArgs("stats", "p1", "kills", "10", "INTEGER", nil, "2024-03-01T10:00:00Z").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow("2024-01-01T00:00:00Z"))

	rec := &model.KeyedRecord{
		Namespace: "stats",
		Identity:  "p1",
		Key:       "kills",
		Value:     strPtr("10"),
		ValueType: model.TypeInteger,
	}
	if err := queryPutValue(context.Background(), db, rec); err != nil {
		t.Fatalf("queryPutValue: %v", err)
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !rec.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v (preserved from first insert)", rec.CreatedAt, want)
	}
	if !rec.UpdatedAt.Equal(ts) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, ts)
	}
}

func TestQueryGetValue(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM data_storage WHERE data_type = \$1 AND identifier = \$2 AND data_key = \$3`).
		WithArgs("stats", "p1", "kills").
		WillReturnRows(sqlmock.NewRows(valueRowColumns).
			AddRow("stats", "p1", "kills", "10", "INTEGER", nil, "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"))

	rec, err := queryGetValue(context.Background(), db, "stats", "p1", "kills")
	if err != nil {
		t.Fatalf("queryGetValue: %v", err)
	}
	if rec.Value == nil || *rec.Value != "10" || rec.ValueType != model.TypeInteger {
		t.Errorf("got value %v (%s), want 10 (INTEGER)", rec.Value, rec.ValueType)
	}
	if rec.Metadata != nil {
		t.Errorf("Metadata = %v, want nil", *rec.Metadata)
	}
	if rec.UpdatedAt.Day() != 2 {
		t.Errorf("UpdatedAt = %v, want 2024-01-02", rec.UpdatedAt)
	}
}

func TestQueryGetValue_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM data_storage`).
		WithArgs("stats", "p1", "missing").
		WillReturnRows(sqlmock.NewRows(valueRowColumns))

	_, err := queryGetValue(context.Background(), db, "stats", "p1", "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("error = %v, want sql.ErrNoRows", err)
	}
}

func TestQueryDeleteValue(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`DELETE FROM data_storage WHERE data_type = \$1 AND identifier = \$2 AND data_key = \$3`).
		WithArgs("stats", "p1", "kills").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM data_storage WHERE data_type = \$1 AND identifier = \$2 AND data_key = \$3`).
		WithArgs("stats", "p1", "kills").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := queryDeleteValue(ctx, db, "stats", "p1", "kills"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := queryDeleteValue(ctx, db, "stats", "p1", "kills"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete error = %v, want sql.ErrNoRows", err)
	}
}

func TestQueryDeleteValues(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`DELETE FROM data_storage WHERE data_type = \$1 AND identifier = \$2`).
		WithArgs("stats", "p1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := queryDeleteValues(context.Background(), db, "stats", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted %d rows, want 3", n)
	}
}

func TestQueryPutObject_ReturnsVersion(t *testing.T) {
	db, mock := newMockDB(t)
	fixedNow(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	mock.ExpectQuery(`INSERT INTO object_storage .+ version = object_storage.version \+ 1.+RETURNING version, created_at`).
		WithArgs("holograms", "spawn", `{"x":1}`, "JSON", "2024-03-01T10:00:00Z").
		WillReturnRows(sqlmock.NewRows([]string{"version", "created_at"}).AddRow(3, "2024-01-01T00:00:00Z"))

	obj := &model.ObjectRecord{Namespace: "holograms", ID: "spawn", Payload: `{"x":1}`, Format: model.FormatJSON}
	if err := queryPutObject(context.Background(), db, obj); err != nil {
		t.Fatal(err)
	}
	if obj.Version != 3 {
		t.Errorf("Version = %d, want 3", obj.Version)
	}
}

func TestQueryFindByTag(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT target_id FROM data_tags WHERE target_type = \$1 AND tag_name = \$2 AND tag_value = \$3 ORDER BY target_id`).
		WithArgs("holograms", "world", "overworld").
		WillReturnRows(sqlmock.NewRows([]string{"target_id"}).AddRow("a").AddRow("b"))

	ids, err := queryFindByTag(context.Background(), db, "holograms", "world", "overworld")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v, want [a b]", ids)
	}
}

func TestQueryAddTag_NullValue(t *testing.T) {
	db, mock := newMockDB(t)
	fixedNow(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	mock.ExpectQuery(`INSERT INTO data_tags .+ ON CONFLICT \(target_type, target_id, tag_name\) DO UPDATE`).
		WithArgs("holograms", "spawn", "pinned", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow("2024-03-01T10:00:00Z"))

	if err := queryAddTag(context.Background(), db, &model.Tag{Namespace: "holograms", TargetID: "spawn", Name: "pinned"}); err != nil {
		t.Fatal(err)
	}
}

func TestQueryRaw_Materializes(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT name, score FROM leaderboard WHERE score > \?`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"name", "score"}).
			AddRow([]byte("alex"), int64(20)).
			AddRow("sam", int64(15)))

	rows, err := queryRaw(context.Background(), db, `SELECT name, score FROM leaderboard WHERE score > ?`, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["name"] != "alex" {
		t.Errorf("[]byte column not converted: %#v", rows[0]["name"])
	}
	if rows[1]["score"] != int64(15) {
		t.Errorf("score = %#v, want int64(15)", rows[1]["score"])
	}
}

func TestQueryRaw_EmptyIsNonNil(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT 1 WHERE 0`).WillReturnRows(sqlmock.NewRows([]string{"1"}))

	rows, err := queryRaw(context.Background(), db, `SELECT 1 WHERE 0`)
	if err != nil {
		t.Fatal(err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %#v, want empty non-nil slice", rows)
	}
}

func TestQueryCreateTable_QuotesName(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "odd""name" \(id INTEGER\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryCreateTable(context.Background(), db, `odd"name`, "id INTEGER"); err != nil {
		t.Fatal(err)
	}
	if err := queryCreateTable(context.Background(), db, " ", "id INTEGER"); err == nil {
		t.Error("expected error for blank table name")
	}
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM data_storage`).WithArgs("stats", "p1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		if _, err := tx.DeleteValues(context.Background(), "stats", "p1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}

func TestRunInTransaction_RollbackFailureKeepsCause(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db, DialectPostgres)
	var logs bytes.Buffer
	s.log = slog.New(slog.NewTextHandler(&logs, nil))

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("rb broke"))

	boom := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if strings.Contains(err.Error(), "rb broke") {
		t.Errorf("rollback failure leaked into the returned error: %v", err)
	}
	out := logs.String()
	for _, want := range []string{"level=ERROR", `msg="rollback failed"`, `err="rb broke"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestRunInTransaction_Commits(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM data_tags`).WithArgs("holograms", "spawn").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		// Nested calls reuse the open transaction.
		return tx.RunInTransaction(context.Background(), func(inner store.Store) error {
			_, err := inner.ClearTags(context.Background(), "holograms", "spawn")
			return err
		})
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunInTransaction_RollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if recover() == nil {
			t.Error("expected panic to propagate")
		}
	}()
	_ = s.RunInTransaction(context.Background(), func(tx store.Store) error {
		panic("boom")
	})
}

func TestStaticConn_ClosedIsUnavailable(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db, DialectPostgres)
	mock.ExpectClose()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_, err := s.ListNamespaces(context.Background())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("error = %v, want store.ErrUnavailable", err)
	}
}

func TestParseTime(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T12:30:00.5Z", time.Date(2024, 5, 1, 12, 30, 0, 500000000, time.UTC)},
		{"2024-05-01 12:30:00", time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)},
		{"garbage", time.Time{}},
	} {
		if got := parseTime(tc.in); !got.Equal(tc.want) {
			t.Errorf("parseTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	got := sqliteDSN("/tmp/players.db", 30*time.Second)
	want := "file:/tmp/players.db?_pragma=busy_timeout%2830000%29&_pragma=journal_mode%28WAL%29&_pragma=foreign_keys%281%29&_pragma=synchronous%28NORMAL%29"
	if got != want {
		t.Errorf("sqliteDSN = %q\nwant %q", got, want)
	}
}
