package events

import (
	"context"
	"errors"
)

// MultiPublisher delivers every event to each of its publishers in order.
type MultiPublisher []Publisher

// Multi combines publishers, skipping nil entries.
func Multi(pubs ...Publisher) MultiPublisher {
	var m MultiPublisher
	for _, p := range pubs {
		if p != nil {
			m = append(m, p)
		}
	}
	return m
}

// Publish sends event to every publisher, even after one fails, and joins
// their errors.
func (m MultiPublisher) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
