package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/events"
	"github.com/alfredjeanlab/asgdb/internal/model"
	"github.com/alfredjeanlab/asgdb/internal/store"
)

// PutOption configures Put, PutBatch and ReplaceAll.
type PutOption func(*putOptions)

type putOptions struct {
	metadata *string
}

// WithMetadata attaches free-form metadata to every written row.
func WithMetadata(m string) PutOption {
	return func(o *putOptions) { o.metadata = &m }
}

func applyPut(opts []PutOption) putOptions {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func encodeRecord(ns, id, key string, value any, o putOptions) (*model.KeyedRecord, error) {
	payload, vt, err := codec.Encode(value)
	if err != nil {
		return nil, err
	}
	rec := &model.KeyedRecord{
		Namespace: ns,
		Identity:  id,
		Key:       key,
		Value:     payload,
		ValueType: vt,
		Metadata:  o.metadata,
	}
	if err := model.ValidateRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// encodeAll encodes data in key order so batches write deterministically.
func encodeAll(ns, id string, data map[string]any, o putOptions) ([]*model.KeyedRecord, error) {
	recs := make([]*model.KeyedRecord, 0, len(data))
	for _, key := range slices.Sorted(maps.Keys(data)) {
		rec, err := encodeRecord(ns, id, key, data[key], o)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (e *Engine) publishPut(ctx context.Context, rec *model.KeyedRecord) {
	e.publish(ctx, events.TopicValuePut, events.ValuePut{
		Namespace: rec.Namespace,
		Identity:  rec.Identity,
		Key:       rec.Key,
		ValueType: rec.ValueType,
	})
}

// Put encodes value and upserts it under (ns, id, key).
func (e *Engine) Put(ctx context.Context, ns, id, key string, value any, opts ...PutOption) Result {
	attrs := []any{"namespace", ns, "identity", id, "key", key}
	rec, err := encodeRecord(ns, id, key, value, applyPut(opts))
	if err != nil {
		return e.writeFailed(ctx, "put", err, attrs...)
	}
	if err := e.store.PutValue(ctx, rec); err != nil {
		return e.writeFailed(ctx, "put", err, attrs...)
	}
	e.publishPut(ctx, rec)
	return affected(1)
}

// PutBatch writes every entry of data in one transaction: either all keys
// are written or none are. An empty map is a successful no-op.
func (e *Engine) PutBatch(ctx context.Context, ns, id string, data map[string]any, opts ...PutOption) Result {
	if len(data) == 0 {
		return Result{OK: true}
	}
	recs, err := encodeAll(ns, id, data, applyPut(opts))
	if err != nil {
		return e.batchFailed(ctx, "put batch", err, "namespace", ns, "identity", id, "keys", len(data))
	}
	return e.writeBatch(ctx, "put batch", ns, id, recs, false)
}

// ReplaceAll deletes every key of (ns, id) and writes data in its place, in
// one transaction. An empty map clears the identity.
func (e *Engine) ReplaceAll(ctx context.Context, ns, id string, data map[string]any, opts ...PutOption) Result {
	recs, err := encodeAll(ns, id, data, applyPut(opts))
	if err != nil {
		return e.batchFailed(ctx, "replace", err, "namespace", ns, "identity", id, "keys", len(data))
	}
	return e.writeBatch(ctx, "replace", ns, id, recs, true)
}

// PutRecords writes already encoded rows under (ns, id) in one transaction.
// Each row's namespace and identity are overwritten with ns and id. With
// replace set, the identity's existing keys are deleted first.
func (e *Engine) PutRecords(ctx context.Context, ns, id string, recs []*model.KeyedRecord, replace bool) Result {
	op := "put records"
	if replace {
		op = "replace records"
	}
	if len(recs) == 0 && !replace {
		return Result{OK: true}
	}
	for _, rec := range recs {
		rec.Namespace, rec.Identity = ns, id
		if err := model.ValidateRecord(rec); err != nil {
			return e.batchFailed(ctx, op, fmt.Errorf("key %q: %w", rec.Key, err), "namespace", ns, "identity", id)
		}
	}
	return e.writeBatch(ctx, op, ns, id, recs, replace)
}

func (e *Engine) writeBatch(ctx context.Context, op, ns, id string, recs []*model.KeyedRecord, replace bool) Result {
	var removed int64
	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		if replace {
			n, err := tx.DeleteValues(ctx, ns, id)
			if err != nil {
				return err
			}
			removed = n
		}
		for _, rec := range recs {
			if err := tx.PutValue(ctx, rec); err != nil {
				return fmt.Errorf("key %q: %w", rec.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return e.batchFailed(ctx, op, err, "namespace", ns, "identity", id, "keys", len(recs))
	}

	if removed > 0 {
		e.publish(ctx, events.TopicIdentityDeleted, events.IdentityDeleted{Namespace: ns, Identity: id, Count: removed})
	}
	for _, rec := range recs {
		e.publishPut(ctx, rec)
	}
	if replace {
		return Result{OK: true, Affected: int64(len(recs))}
	}
	return affected(int64(len(recs)))
}

// GetRecord returns the stored row without decoding it.
func (e *Engine) GetRecord(ctx context.Context, ns, id, key string) (*model.KeyedRecord, bool) {
	rec, err := e.store.GetValue(ctx, ns, id, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		e.readFailed(ctx, "get", err, "namespace", ns, "identity", id, "key", key)
		return nil, false
	}
	return rec, true
}

// GetInto decodes the value at (ns, id, key) into dst, a non-nil pointer.
// It reports false when the row is missing, the read fails or the value
// cannot be decoded into dst. A stored NULL sets dst to its zero value.
func (e *Engine) GetInto(ctx context.Context, ns, id, key string, dst any) bool {
	rec, ok := e.GetRecord(ctx, ns, id, key)
	if !ok {
		return false
	}
	if err := codec.Decode(rec.Value, rec.ValueType, dst); err != nil {
		e.decodeFailed(ctx, "get", err, "namespace", ns, "identity", id, "key", key, "value_type", rec.ValueType)
		return false
	}
	return true
}

// Get decodes the value at (ns, id, key) as T.
func Get[T any](ctx context.Context, e *Engine, ns, id, key string) (T, bool) {
	var out T
	if !e.GetInto(ctx, ns, id, key, &out) {
		var zero T
		return zero, false
	}
	return out, true
}

// GetString is Get[string].
func (e *Engine) GetString(ctx context.Context, ns, id, key string) (string, bool) {
	return Get[string](ctx, e, ns, id, key)
}

// GetAll decodes every key of (ns, id) into its natural Go shape. A key that
// cannot be decoded maps to nil; the map is never nil.
func (e *Engine) GetAll(ctx context.Context, ns, id string) map[string]any {
	out := map[string]any{}
	recs, ok := e.ListRecords(ctx, ns, id)
	if !ok {
		return out
	}
	for _, rec := range recs {
		v, err := codec.DecodeAny(rec.Value, rec.ValueType)
		if err != nil {
			e.decodeFailed(ctx, "get all", err, "namespace", ns, "identity", id, "key", rec.Key, "value_type", rec.ValueType)
			out[rec.Key] = nil
			continue
		}
		out[rec.Key] = v
	}
	return out
}

// ListRecords returns the raw rows of (ns, id) ordered by key.
func (e *Engine) ListRecords(ctx context.Context, ns, id string) ([]*model.KeyedRecord, bool) {
	recs, err := e.store.ListValues(ctx, ns, id)
	if err != nil {
		e.readFailed(ctx, "list values", err, "namespace", ns, "identity", id)
		return nil, false
	}
	return recs, true
}

// HasData reports whether (ns, id) has at least one key.
func (e *Engine) HasData(ctx context.Context, ns, id string) bool {
	recs, ok := e.ListRecords(ctx, ns, id)
	return ok && len(recs) > 0
}

// Delete removes every key of (ns, id).
func (e *Engine) Delete(ctx context.Context, ns, id string) Result {
	n, err := e.store.DeleteValues(ctx, ns, id)
	if err != nil {
		return e.writeFailed(ctx, "delete", err, "namespace", ns, "identity", id)
	}
	if n > 0 {
		e.publish(ctx, events.TopicIdentityDeleted, events.IdentityDeleted{Namespace: ns, Identity: id, Count: n})
	}
	return affected(n)
}

// DeleteKey removes a single key. A missing key is OK=false with no error.
func (e *Engine) DeleteKey(ctx context.Context, ns, id, key string) Result {
	err := e.store.DeleteValue(ctx, ns, id, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}
	}
	if err != nil {
		return e.writeFailed(ctx, "delete key", err, "namespace", ns, "identity", id, "key", key)
	}
	e.publish(ctx, events.TopicValueDeleted, events.ValueDeleted{Namespace: ns, Identity: id, Key: key})
	return affected(1)
}

// ListNamespaces returns every namespace holding keyed values.
func (e *Engine) ListNamespaces(ctx context.Context) []string {
	nss, err := e.store.ListNamespaces(ctx)
	if err != nil {
		e.readFailed(ctx, "list namespaces", err)
	}
	return nonNil(nss)
}

// ListIdentities returns every identity with keys in ns.
func (e *Engine) ListIdentities(ctx context.Context, ns string) []string {
	ids, err := e.store.ListIdentities(ctx, ns)
	if err != nil {
		e.readFailed(ctx, "list identities", err, "namespace", ns)
	}
	return nonNil(ids)
}
