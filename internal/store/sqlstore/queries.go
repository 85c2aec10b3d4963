package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

// valueColumns is the column list used for SELECT statements on data_storage.
const valueColumns = `data_type, identifier, data_key, data_value, value_type,
	metadata, created_at, updated_at`

// objectColumns is the column list used for SELECT statements on object_storage.
const objectColumns = `object_type, object_id, object_data, data_format, version,
	created_at, updated_at`

// tagColumns is the column list used for SELECT statements on data_tags.
const tagColumns = `target_type, target_id, tag_name, tag_value, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// now is replaced in tests that need fixed timestamps.
var now = time.Now

func queryPutValue(ctx context.Context, db executor, r *model.KeyedRecord) error {
	ts := now()
	var createdAt string
	err := db.QueryRowContext(ctx, `
		INSERT INTO data_storage (
			data_type, identifier, data_key, data_value, value_type,
			metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (data_type, identifier, data_key) DO UPDATE SET
			data_value = excluded.data_value,
			value_type = excluded.value_type,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
		RETURNING created_at`,
		r.Namespace,
		r.Identity,
		r.Key,
		nullString(r.Value),
		string(r.ValueType),
		nullString(r.Metadata),
		formatTime(ts),
	).Scan(&createdAt)
	if err != nil {
		return err
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = ts.UTC()
	return nil
}

func queryGetValue(ctx context.Context, db executor, namespace, identity, key string) (*model.KeyedRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+valueColumns+` FROM data_storage
		WHERE data_type = $1 AND identifier = $2 AND data_key = $3`,
		namespace, identity, key)
	return scanRecord(row)
}

func queryListValues(ctx context.Context, db executor, namespace, identity string) ([]*model.KeyedRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+valueColumns+` FROM data_storage
		WHERE data_type = $1 AND identifier = $2
		ORDER BY data_key`,
		namespace, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func queryListAllValues(ctx context.Context, db executor) ([]*model.KeyedRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+valueColumns+` FROM data_storage
		ORDER BY data_type, identifier, data_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]*model.KeyedRecord, error) {
	var records []*model.KeyedRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func queryDeleteValue(ctx context.Context, db executor, namespace, identity, key string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM data_storage
		WHERE data_type = $1 AND identifier = $2 AND data_key = $3`,
		namespace, identity, key)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func queryDeleteValues(ctx context.Context, db executor, namespace, identity string) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM data_storage WHERE data_type = $1 AND identifier = $2`,
		namespace, identity)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func queryListNamespaces(ctx context.Context, db executor) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT DISTINCT data_type FROM data_storage ORDER BY data_type`)
}

func queryListIdentities(ctx context.Context, db executor, namespace string) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT DISTINCT identifier FROM data_storage
		WHERE data_type = $1 ORDER BY identifier`,
		namespace)
}

func queryPutObject(ctx context.Context, db executor, o *model.ObjectRecord) error {
	ts := now()
	var createdAt string
	err := db.QueryRowContext(ctx, `
		INSERT INTO object_storage (
			object_type, object_id, object_data, data_format, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (object_type, object_id) DO UPDATE SET
			object_data = excluded.object_data,
			data_format = excluded.data_format,
			version = object_storage.version + 1,
			updated_at = excluded.updated_at
		RETURNING version, created_at`,
		o.Namespace,
		o.ID,
		o.Payload,
		string(o.Format),
		formatTime(ts),
	).Scan(&o.Version, &createdAt)
	if err != nil {
		return err
	}
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = ts.UTC()
	return nil
}

func queryGetObject(ctx context.Context, db executor, namespace, id string) (*model.ObjectRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+objectColumns+` FROM object_storage
		WHERE object_type = $1 AND object_id = $2`,
		namespace, id)
	return scanObject(row)
}

func queryListObjectIDs(ctx context.Context, db executor, namespace string) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT object_id FROM object_storage
		WHERE object_type = $1 ORDER BY object_id`,
		namespace)
}

func queryDeleteObject(ctx context.Context, db executor, namespace, id string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM object_storage WHERE object_type = $1 AND object_id = $2`,
		namespace, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func queryListAllObjects(ctx context.Context, db executor) ([]*model.ObjectRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+objectColumns+` FROM object_storage
		ORDER BY object_type, object_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []*model.ObjectRecord
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

func queryAddTag(ctx context.Context, db executor, t *model.Tag) error {
	ts := now()
	var createdAt string
	err := db.QueryRowContext(ctx, `
		INSERT INTO data_tags (target_type, target_id, tag_name, tag_value, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (target_type, target_id, tag_name) DO UPDATE SET
			tag_value = excluded.tag_value
		RETURNING created_at`,
		t.Namespace,
		t.TargetID,
		t.Name,
		nullString(t.Value),
		formatTime(ts),
	).Scan(&createdAt)
	if err != nil {
		return err
	}
	t.CreatedAt = parseTime(createdAt)
	return nil
}

func queryGetTags(ctx context.Context, db executor, namespace, targetID string) ([]*model.Tag, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+tagColumns+` FROM data_tags
		WHERE target_type = $1 AND target_id = $2
		ORDER BY tag_name`,
		namespace, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

func queryListAllTags(ctx context.Context, db executor) ([]*model.Tag, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+tagColumns+` FROM data_tags
		ORDER BY target_type, target_id, tag_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

func collectTags(rows *sql.Rows) ([]*model.Tag, error) {
	var tags []*model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func queryFindByTag(ctx context.Context, db executor, namespace, name, value string) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT target_id FROM data_tags
		WHERE target_type = $1 AND tag_name = $2 AND tag_value = $3
		ORDER BY target_id`,
		namespace, name, value)
}

func queryFindByTagName(ctx context.Context, db executor, namespace, name string) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT target_id FROM data_tags
		WHERE target_type = $1 AND tag_name = $2
		ORDER BY target_id`,
		namespace, name)
}

func queryRemoveTag(ctx context.Context, db executor, namespace, targetID, name string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM data_tags
		WHERE target_type = $1 AND target_id = $2 AND tag_name = $3`,
		namespace, targetID, name)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func queryClearTags(ctx context.Context, db executor, namespace, targetID string) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM data_tags WHERE target_type = $1 AND target_id = $2`,
		namespace, targetID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// queryRaw runs an arbitrary statement and materializes every row as a
// column-name map, so the connection is released before the caller sees it.
func queryRaw(ctx context.Context, db executor, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func execRaw(ctx context.Context, db executor, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func queryCreateTable(ctx context.Context, db executor, name, definition string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(definition) == "" {
		return fmt.Errorf("table name and definition are required")
	}
	_, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS `+pq.QuoteIdentifier(name)+` (`+definition+`)`)
	return err
}

func queryStrings(ctx context.Context, db executor, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// requireAffected maps a statement that touched no rows to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
