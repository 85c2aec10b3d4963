package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicValuePut, ValuePut{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_Close(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Close()
	if err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestPublishers_ImplementPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = (*MemoryPublisher)(nil)
}

func TestMemoryPublisher_RecordsInOrder(t *testing.T) {
	pub := &MemoryPublisher{}
	ctx := context.Background()
	_ = pub.Publish(ctx, TopicObjectPut, ObjectPut{ID: "spawn", Version: 1})
	_ = pub.Publish(ctx, TopicTagAdded, TagAdded{TargetID: "spawn", Name: "world"})

	topics := pub.Topics()
	if len(topics) != 2 || topics[0] != TopicObjectPut || topics[1] != TopicTagAdded {
		t.Fatalf("Topics() = %v", topics)
	}
	got, ok := pub.Events()[0].Event.(ObjectPut)
	if !ok || got.Version != 1 {
		t.Errorf("first event = %#v", pub.Events()[0].Event)
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Subscribe to capture published messages.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicValuePut, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := ValuePut{Namespace: "stats", Identity: "p1", Key: "kills", ValueType: model.TypeInteger}
	if err := pub.Publish(context.Background(), TopicValuePut, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := pub.Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	select {
	case msg := <-ch:
		var got ValuePut
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != event {
			t.Errorf("got %+v, want %+v", got, event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PublishMultipleTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe(TopicAll, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	value := "overworld"
	for _, tc := range []struct {
		topic string
		event any
	}{
		{TopicIdentityDeleted, IdentityDeleted{Namespace: "stats", Identity: "p1", Count: 3}},
		{TopicObjectDeleted, ObjectDeleted{Namespace: "holograms", ID: "spawn"}},
		{TopicTagAdded, TagAdded{Namespace: "holograms", TargetID: "spawn", Name: "world", Value: &value}},
		{TopicTagRemoved, TagRemoved{Namespace: "holograms", TargetID: "spawn", Count: 1}},
	} {
		if err := pub.Publish(context.Background(), tc.topic, tc.event); err != nil {
			t.Fatalf("Publish(%s): %v", tc.topic, err)
		}
	}
	pub.Flush(context.Background())

	for i := 0; i < 4; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicValuePut, ValuePut{}); err == nil {
		t.Error("expected error publishing with a canceled context")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	err = pub.Publish(context.Background(), TopicValuePut, ValuePut{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestNATSPublisher_Flush(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	if err := pub.Publish(context.Background(), TopicValuePut, ValuePut{Key: "kills"}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	// A context without a deadline still flushes.
	if err := pub.Flush(context.Background()); err != nil {
		t.Errorf("Flush without deadline: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pub.Flush(ctx); err != nil {
		t.Errorf("Flush with deadline: %v", err)
	}
}
