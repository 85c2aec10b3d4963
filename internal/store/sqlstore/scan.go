package sqlstore

import (
	"database/sql"
	"time"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a model.KeyedRecord.
// The row must contain columns in the order defined by valueColumns.
func scanRecord(row scannable) (*model.KeyedRecord, error) {
	var r model.KeyedRecord
	var (
		value     sql.NullString
		metadata  sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&r.Namespace,
		&r.Identity,
		&r.Key,
		&value,
		&r.ValueType,
		&metadata,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Value = stringPtr(value)
	r.Metadata = stringPtr(metadata)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// scanObject scans a single row into a model.ObjectRecord.
// The row must contain columns in the order defined by objectColumns.
func scanObject(row scannable) (*model.ObjectRecord, error) {
	var o model.ObjectRecord
	var createdAt, updatedAt string
	err := row.Scan(
		&o.Namespace,
		&o.ID,
		&o.Payload,
		&o.Format,
		&o.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}

// scanTag scans a single row into a model.Tag.
// The row must contain columns in the order defined by tagColumns.
func scanTag(row scannable) (*model.Tag, error) {
	var t model.Tag
	var (
		value     sql.NullString
		createdAt string
	)
	if err := row.Scan(&t.Namespace, &t.TargetID, &t.Name, &value, &createdAt); err != nil {
		return nil, err
	}
	t.Value = stringPtr(value)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

// nullString converts an optional string to a sql.NullString.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// timeLayouts lists the accepted timestamp encodings. Rows written by this
// package use the first; the others appear in files whose timestamps came from
// CURRENT_TIMESTAMP defaults.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime returns the zero time for values in none of the known layouts.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
