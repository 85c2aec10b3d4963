package events

import (
	"context"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

// Event topic constants. Every topic lives under TopicAll.
const (
	TopicAll = "asgdb.>"

	TopicValuePut        = "asgdb.value.put"
	TopicValueDeleted    = "asgdb.value.deleted"
	TopicIdentityDeleted = "asgdb.identity.deleted"

	TopicObjectPut     = "asgdb.object.put"
	TopicObjectDeleted = "asgdb.object.deleted"

	TopicTagAdded   = "asgdb.tag.added"
	TopicTagRemoved = "asgdb.tag.removed"
)

// Event types

type ValuePut struct {
	Namespace string          `json:"namespace"`
	Identity  string          `json:"identity"`
	Key       string          `json:"key"`
	ValueType model.ValueType `json:"value_type"`
}

type ValueDeleted struct {
	Namespace string `json:"namespace"`
	Identity  string `json:"identity"`
	Key       string `json:"key"`
}

type IdentityDeleted struct {
	Namespace string `json:"namespace"`
	Identity  string `json:"identity"`
	Count     int64  `json:"count"`
}

type ObjectPut struct {
	Namespace string       `json:"namespace"`
	ID        string       `json:"id"`
	Format    model.Format `json:"format"`
	Version   int64        `json:"version"`
}

type ObjectDeleted struct {
	Namespace string `json:"namespace"`
	ID        string `json:"id"`
}

type TagAdded struct {
	Namespace string  `json:"namespace"`
	TargetID  string  `json:"target_id"`
	Name      string  `json:"name"`
	Value     *string `json:"value,omitempty"`
}

// TagRemoved reports a single removed tag, or every tag of the target when
// Name is empty.
type TagRemoved struct {
	Namespace string `json:"namespace"`
	TargetID  string `json:"target_id"`
	Name      string `json:"name,omitempty"`
	Count     int64  `json:"count"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
