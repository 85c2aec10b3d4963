package engine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/events"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

// ObjectOption configures PutObject.
type ObjectOption func(*objectOptions)

type objectOptions struct {
	format model.Format
}

// WithFormat selects the payload format. The default is JSON.
func WithFormat(f model.Format) ObjectOption {
	return func(o *objectOptions) { o.format = f }
}

// PutObject serializes object and replaces whatever was stored at (ns, id).
func (e *Engine) PutObject(ctx context.Context, ns, id string, object any, opts ...ObjectOption) Result {
	o := objectOptions{format: model.FormatJSON}
	for _, opt := range opts {
		opt(&o)
	}
	payload, err := codec.EncodeObject(object, o.format)
	if err != nil {
		return e.writeFailed(ctx, "put object", err, "namespace", ns, "id", id, "format", o.format)
	}
	return e.PutObjectRecord(ctx, &model.ObjectRecord{
		Namespace: ns,
		ID:        id,
		Payload:   payload,
		Format:    o.format,
	})
}

// PutObjectRecord upserts an already encoded payload. On success obj.Version
// holds the stored version.
func (e *Engine) PutObjectRecord(ctx context.Context, obj *model.ObjectRecord) Result {
	attrs := []any{"namespace", obj.Namespace, "id", obj.ID, "format", obj.Format}
	if err := model.ValidateObject(obj); err != nil {
		return e.writeFailed(ctx, "put object", err, attrs...)
	}
	if err := e.store.PutObject(ctx, obj); err != nil {
		return e.writeFailed(ctx, "put object", err, attrs...)
	}
	e.publish(ctx, events.TopicObjectPut, events.ObjectPut{
		Namespace: obj.Namespace,
		ID:        obj.ID,
		Format:    obj.Format,
		Version:   obj.Version,
	})
	return affected(1)
}

// GetObjectRecord returns the stored object without decoding it.
func (e *Engine) GetObjectRecord(ctx context.Context, ns, id string) (*model.ObjectRecord, bool) {
	obj, err := e.store.GetObject(ctx, ns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		e.readFailed(ctx, "get object", err, "namespace", ns, "id", id)
		return nil, false
	}
	return obj, true
}

// GetObjectInto decodes the object at (ns, id) into dst. RAW payloads are
// delivered as text to string or []byte destinations.
func (e *Engine) GetObjectInto(ctx context.Context, ns, id string, dst any) bool {
	obj, ok := e.GetObjectRecord(ctx, ns, id)
	if !ok {
		return false
	}
	if err := codec.DecodeObject(obj.Payload, obj.Format, dst); err != nil {
		e.decodeFailed(ctx, "get object", err, "namespace", ns, "id", id, "format", obj.Format)
		return false
	}
	return true
}

// GetObject decodes the object at (ns, id) as T.
func GetObject[T any](ctx context.Context, e *Engine, ns, id string) (T, bool) {
	var out T
	if !e.GetObjectInto(ctx, ns, id, &out) {
		var zero T
		return zero, false
	}
	return out, true
}

// GetObjectAsMap decodes a JSON or MSGPACK object into a generic map. The
// map is empty when the object is absent, RAW or not a map.
func (e *Engine) GetObjectAsMap(ctx context.Context, ns, id string) map[string]any {
	obj, ok := e.GetObjectRecord(ctx, ns, id)
	if !ok || obj.Format == model.FormatRaw {
		return map[string]any{}
	}
	var m map[string]any
	if err := codec.DecodeObject(obj.Payload, obj.Format, &m); err != nil {
		e.decodeFailed(ctx, "get object map", err, "namespace", ns, "id", id, "format", obj.Format)
		return map[string]any{}
	}
	if m == nil {
		return map[string]any{}
	}
	return m
}

// ListObjectIDs returns the ids stored in ns, in order.
func (e *Engine) ListObjectIDs(ctx context.Context, ns string) []string {
	ids, err := e.store.ListObjectIDs(ctx, ns)
	if err != nil {
		e.readFailed(ctx, "list objects", err, "namespace", ns)
	}
	return nonNil(ids)
}

// DeleteObject removes the object at (ns, id).
func (e *Engine) DeleteObject(ctx context.Context, ns, id string) Result {
	err := e.store.DeleteObject(ctx, ns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}
	}
	if err != nil {
		return e.writeFailed(ctx, "delete object", err, "namespace", ns, "id", id)
	}
	e.publish(ctx, events.TopicObjectDeleted, events.ObjectDeleted{Namespace: ns, ID: id})
	return affected(1)
}
