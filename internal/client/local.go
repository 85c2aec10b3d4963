package client

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/asgdb/internal/engine"
	"github.com/alfredjeanlab/asgdb/internal/idgen"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

// LocalClient implements Client on an engine in the same process. Close
// shuts the engine down.
type LocalClient struct {
	engine *engine.Engine
}

func NewLocalClient(e *engine.Engine) *LocalClient {
	return &LocalClient{engine: e}
}

// Engine returns the wrapped engine.
func (c *LocalClient) Engine() *engine.Engine { return c.engine }

func (c *LocalClient) Close() error {
	return c.engine.Shutdown(context.Background()).Err
}

// resultErr turns a write Result into an error. With rowRequired set, a
// write that touched nothing is ErrNotFound.
func resultErr(res engine.Result, rowRequired bool) error {
	if res.Err != nil {
		return res.Err
	}
	if rowRequired && !res.OK {
		return ErrNotFound
	}
	return nil
}

var errRead = errors.New("reading from store failed")

func (c *LocalClient) Health(context.Context) (string, error) { return "ok", nil }

func (c *LocalClient) ListNamespaces(ctx context.Context) ([]string, error) {
	return c.engine.ListNamespaces(ctx), nil
}

func (c *LocalClient) ListIdentities(ctx context.Context, ns string) ([]string, error) {
	return c.engine.ListIdentities(ctx, ns), nil
}

func (c *LocalClient) GetValues(ctx context.Context, ns, id string) ([]*model.KeyedRecord, error) {
	recs, ok := c.engine.ListRecords(ctx, ns, id)
	if !ok {
		return nil, errRead
	}
	return nonNil(recs), nil
}

func (c *LocalClient) GetValue(ctx context.Context, ns, id, key string) (*model.KeyedRecord, error) {
	rec, ok := c.engine.GetRecord(ctx, ns, id, key)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (c *LocalClient) PutValues(ctx context.Context, ns, id string, values map[string]any, replace bool) (int64, error) {
	recs, err := EncodeValues(ns, id, values)
	if err != nil {
		return 0, err
	}
	res := c.engine.PutRecords(ctx, ns, id, recs, replace)
	return res.Affected, resultErr(res, false)
}

func (c *LocalClient) DeleteValues(ctx context.Context, ns, id string) (int64, error) {
	res := c.engine.Delete(ctx, ns, id)
	return res.Affected, resultErr(res, true)
}

func (c *LocalClient) DeleteValue(ctx context.Context, ns, id, key string) error {
	return resultErr(c.engine.DeleteKey(ctx, ns, id, key), true)
}

func (c *LocalClient) ListObjects(ctx context.Context, ns string) ([]string, error) {
	return c.engine.ListObjectIDs(ctx, ns), nil
}

func (c *LocalClient) GetObject(ctx context.Context, ns, id string) (*model.ObjectRecord, error) {
	obj, ok := c.engine.GetObjectRecord(ctx, ns, id)
	if !ok {
		return nil, ErrNotFound
	}
	return obj, nil
}

func (c *LocalClient) PutObject(ctx context.Context, obj *model.ObjectRecord) (*model.ObjectRecord, error) {
	stored := *obj
	if stored.ID == "" {
		id, err := idgen.ObjectID()
		if err != nil {
			return nil, err
		}
		stored.ID = id
	}
	if err := resultErr(c.engine.PutObjectRecord(ctx, &stored), false); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *LocalClient) DeleteObject(ctx context.Context, ns, id string) error {
	return resultErr(c.engine.DeleteObject(ctx, ns, id), true)
}

func (c *LocalClient) GetTags(ctx context.Context, ns, id string) (map[string]*string, error) {
	return c.engine.GetTags(ctx, ns, id), nil
}

func (c *LocalClient) AddTag(ctx context.Context, ns, id, name string, value *string) error {
	return resultErr(c.engine.AddTag(ctx, ns, id, name, value), false)
}

func (c *LocalClient) RemoveTag(ctx context.Context, ns, id, name string) error {
	return resultErr(c.engine.RemoveTag(ctx, ns, id, name), true)
}

func (c *LocalClient) FindTagged(ctx context.Context, ns, name string, value *string) ([]string, error) {
	if value != nil {
		return c.engine.FindByTag(ctx, ns, name, *value), nil
	}
	return c.engine.FindByTagName(ctx, ns, name), nil
}
