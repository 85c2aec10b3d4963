package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

// ErrUnavailable marks failures to obtain a live database connection, as
// opposed to failures of an individual statement.
var ErrUnavailable = errors.New("store unavailable")

// Store defines the persistence interface for keyed values, objects and tags.
// Single-row lookups and deletes return sql.ErrNoRows when nothing matches.
type Store interface {
	// Keyed values
	PutValue(ctx context.Context, rec *model.KeyedRecord) error
	GetValue(ctx context.Context, namespace, identity, key string) (*model.KeyedRecord, error)
	ListValues(ctx context.Context, namespace, identity string) ([]*model.KeyedRecord, error)
	DeleteValue(ctx context.Context, namespace, identity, key string) error
	DeleteValues(ctx context.Context, namespace, identity string) (int64, error)
	ListNamespaces(ctx context.Context) ([]string, error)
	ListIdentities(ctx context.Context, namespace string) ([]string, error)
	ListAllValues(ctx context.Context) ([]*model.KeyedRecord, error)

	// Objects
	PutObject(ctx context.Context, obj *model.ObjectRecord) error
	GetObject(ctx context.Context, namespace, id string) (*model.ObjectRecord, error)
	ListObjectIDs(ctx context.Context, namespace string) ([]string, error)
	DeleteObject(ctx context.Context, namespace, id string) error
	ListAllObjects(ctx context.Context) ([]*model.ObjectRecord, error)

	// Tags
	AddTag(ctx context.Context, tag *model.Tag) error
	GetTags(ctx context.Context, namespace, targetID string) ([]*model.Tag, error)
	FindByTag(ctx context.Context, namespace, name, value string) ([]string, error)
	FindByTagName(ctx context.Context, namespace, name string) ([]string, error)
	RemoveTag(ctx context.Context, namespace, targetID, name string) error
	ClearTags(ctx context.Context, namespace, targetID string) (int64, error)
	ListAllTags(ctx context.Context) ([]*model.Tag, error)

	// Raw access. Statements are passed to the driver unchanged.
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	CreateTable(ctx context.Context, name, definition string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
