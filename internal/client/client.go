// Package client provides a transport-agnostic interface to an asgdb store,
// with HTTP, gRPC and in-process implementations.
package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

// ErrNotFound is returned when the addressed value, object or tag does not exist.
var ErrNotFound = errors.New("not found")

// Client is what the CLI uses to reach a store. Values cross every
// transport in their encoded form.
type Client interface {
	Health(ctx context.Context) (string, error)

	// Keyed values
	ListNamespaces(ctx context.Context) ([]string, error)
	ListIdentities(ctx context.Context, ns string) ([]string, error)
	GetValues(ctx context.Context, ns, id string) ([]*model.KeyedRecord, error)
	GetValue(ctx context.Context, ns, id, key string) (*model.KeyedRecord, error)
	PutValues(ctx context.Context, ns, id string, values map[string]any, replace bool) (int64, error)
	DeleteValues(ctx context.Context, ns, id string) (int64, error)
	DeleteValue(ctx context.Context, ns, id, key string) error

	// Objects
	ListObjects(ctx context.Context, ns string) ([]string, error)
	GetObject(ctx context.Context, ns, id string) (*model.ObjectRecord, error)
	// PutObject stores obj and returns it as stored. An empty obj.ID asks
	// the server for a generated one.
	PutObject(ctx context.Context, obj *model.ObjectRecord) (*model.ObjectRecord, error)
	DeleteObject(ctx context.Context, ns, id string) error

	// Tags
	GetTags(ctx context.Context, ns, id string) (map[string]*string, error)
	AddTag(ctx context.Context, ns, id, name string, value *string) error
	RemoveTag(ctx context.Context, ns, id, name string) error
	// FindTagged matches value exactly when it is non-nil, otherwise any
	// target carrying the tag.
	FindTagged(ctx context.Context, ns, name string, value *string) ([]string, error)

	Close() error
}

// EncodeValues converts plain values to records, in key order.
func EncodeValues(ns, id string, values map[string]any) ([]*model.KeyedRecord, error) {
	recs := make([]*model.KeyedRecord, 0, len(values))
	for _, key := range slices.Sorted(maps.Keys(values)) {
		payload, vt, err := codec.Encode(values[key])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		recs = append(recs, &model.KeyedRecord{
			Namespace: ns,
			Identity:  id,
			Key:       key,
			Value:     payload,
			ValueType: vt,
		})
	}
	return recs, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
