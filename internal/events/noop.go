package events

import (
	"context"
	"sync"
)

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}

// Recorded is one event captured by a MemoryPublisher.
type Recorded struct {
	Topic string
	Event any
}

// MemoryPublisher keeps published events in memory, in order.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Recorded
}

func (m *MemoryPublisher) Publish(ctx context.Context, topic string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Recorded{Topic: topic, Event: event})
	return nil
}

func (m *MemoryPublisher) Close() error {
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recorded, len(m.events))
	copy(out, m.events)
	return out
}

// Topics returns the topic of each published event, in order.
func (m *MemoryPublisher) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Topic
	}
	return out
}
