package engine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alfredjeanlab/asgdb/internal/events"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

// AddTag sets tag name on (ns, target), replacing any previous value. A nil
// value stores a value-less tag.
func (e *Engine) AddTag(ctx context.Context, ns, target, name string, value *string) Result {
	tag := &model.Tag{Namespace: ns, TargetID: target, Name: name, Value: value}
	attrs := []any{"namespace", ns, "target", target, "tag", name}
	if err := model.ValidateTag(tag); err != nil {
		return e.writeFailed(ctx, "add tag", err, attrs...)
	}
	if err := e.store.AddTag(ctx, tag); err != nil {
		return e.writeFailed(ctx, "add tag", err, attrs...)
	}
	e.publish(ctx, events.TopicTagAdded, events.TagAdded{Namespace: ns, TargetID: target, Name: name, Value: value})
	return affected(1)
}

// GetTags returns the tags of (ns, target) as name to value.
func (e *Engine) GetTags(ctx context.Context, ns, target string) map[string]*string {
	out := map[string]*string{}
	tags, err := e.store.GetTags(ctx, ns, target)
	if err != nil {
		e.readFailed(ctx, "get tags", err, "namespace", ns, "target", target)
		return out
	}
	for _, t := range tags {
		out[t.Name] = t.Value
	}
	return out
}

// FindByTag returns the targets in ns whose tag name equals value exactly.
func (e *Engine) FindByTag(ctx context.Context, ns, name, value string) []string {
	ids, err := e.store.FindByTag(ctx, ns, name, value)
	if err != nil {
		e.readFailed(ctx, "find by tag", err, "namespace", ns, "tag", name)
	}
	return nonNil(ids)
}

// FindByTagName returns the targets in ns carrying tag name, whatever its value.
func (e *Engine) FindByTagName(ctx context.Context, ns, name string) []string {
	ids, err := e.store.FindByTagName(ctx, ns, name)
	if err != nil {
		e.readFailed(ctx, "find by tag name", err, "namespace", ns, "tag", name)
	}
	return nonNil(ids)
}

// RemoveTag deletes one tag. A missing tag is OK=false with no error.
func (e *Engine) RemoveTag(ctx context.Context, ns, target, name string) Result {
	err := e.store.RemoveTag(ctx, ns, target, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}
	}
	if err != nil {
		return e.writeFailed(ctx, "remove tag", err, "namespace", ns, "target", target, "tag", name)
	}
	e.publish(ctx, events.TopicTagRemoved, events.TagRemoved{Namespace: ns, TargetID: target, Name: name, Count: 1})
	return affected(1)
}

// ClearTags deletes every tag of (ns, target).
func (e *Engine) ClearTags(ctx context.Context, ns, target string) Result {
	n, err := e.store.ClearTags(ctx, ns, target)
	if err != nil {
		return e.writeFailed(ctx, "clear tags", err, "namespace", ns, "target", target)
	}
	if n > 0 {
		e.publish(ctx, events.TopicTagRemoved, events.TagRemoved{Namespace: ns, TargetID: target, Count: n})
	}
	return affected(n)
}
