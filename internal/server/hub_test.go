package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/asgdb/internal/events"
)

func receive(t *testing.T, c *streamClient) *streamEvent {
	t.Helper()
	select {
	case evt := <-c.ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHub_PublishAndReceive(t *testing.T) {
	hub := NewHub()
	c := hub.subscribe(nil)
	defer hub.unsubscribe(c)

	if err := hub.Publish(context.Background(), events.TopicValuePut, events.ValuePut{Namespace: "stats", Key: "kills"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	evt := receive(t, c)
	if evt.ID != 1 || evt.Topic != events.TopicValuePut || !strings.Contains(string(evt.Data), `"key":"kills"`) {
		t.Errorf("event = %+v (%s)", evt, evt.Data)
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	hub := NewHub()
	c := hub.subscribe([]string{"asgdb.object.*"})
	defer hub.unsubscribe(c)

	hub.broadcast(events.TopicTagAdded, []byte(`{}`))
	hub.broadcast(events.TopicObjectPut, []byte(`{}`))

	if evt := receive(t, c); evt.Topic != events.TopicObjectPut {
		t.Fatalf("topic = %q, want %q", evt.Topic, events.TopicObjectPut)
	}
	select {
	case evt := <-c.ch:
		t.Fatalf("unexpected event %q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Since(t *testing.T) {
	hub := NewHub()
	for range 3 {
		hub.broadcast(events.TopicValuePut, []byte(`{}`))
	}
	got := hub.since(1)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Fatalf("since(1) = %+v", got)
	}

	for range hubReplaySize {
		hub.broadcast(events.TopicValuePut, []byte(`{}`))
	}
	got = hub.since(0)
	if len(got) != hubReplaySize || got[0].ID != 4 {
		t.Errorf("since(0) after wrap: len=%d first=%d", len(got), got[0].ID)
	}
}

func TestMatchTopic(t *testing.T) {
	for _, tc := range []struct {
		pattern, topic string
		want           bool
	}{
		{"asgdb.value.put", "asgdb.value.put", true},
		{"asgdb.*.put", "asgdb.object.put", true},
		{"asgdb.*", "asgdb.object.put", false},
		{events.TopicAll, "asgdb.tag.added", true},
		{events.TopicAll, "asgdb", false},
		{"asgdb.value.put", "asgdb.value", false},
	} {
		if got := matchTopic(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("matchTopic(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

func TestEventStream_DeliversEngineWrites(t *testing.T) {
	s, e := newTestServer(t)
	srv := httptest.NewServer(s.NewHTTPHandler(""))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/stream?topics=asgdb.value.*", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// The subscription exists once headers are flushed.
	e.AddTag(ctx, "stats", "p1", "vip", nil)
	e.Put(ctx, "stats", "p1", "kills", 7)

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	block := strings.Join(lines, "\n")
	if !strings.Contains(block, "event:"+events.TopicValuePut) || !strings.Contains(block, `"key":"kills"`) {
		t.Errorf("stream block = %q", block)
	}
}
