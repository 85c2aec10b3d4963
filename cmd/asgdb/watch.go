package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/asgdb/internal/events"
	"github.com/alfredjeanlab/asgdb/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [topic]",
	Short: "Print change events as they happen",
	Long: `Print change events. Events come from NATS when an events URL is
configured, otherwise from the HTTP server's event stream. The topic accepts
NATS wildcards and defaults to every event ("asgdb.>").`,
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	// Only configuration is needed; events do not go through the data client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := events.TopicAll
		if len(args) == 1 {
			topic = args[0]
		}
		natsURL, _ := cmd.Flags().GetString("nats-url")
		if natsURL == "" {
			natsURL = cfg.Events.NATSURL
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, topic)
		}
		return watchSSE(ctx, httpURL, authToken, topic)
	},
}

func init() {
	watchCmd.Flags().String("nats-url", "", "NATS server URL (defaults to events.nats_url)")
}

func watchNATS(ctx context.Context, natsURL, topic string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printEvent(os.Stdout, msg.Topic, msg.Data)
		}
	}
}

// watchSSE follows the server's event stream, reconnecting with the last
// seen event id until ctx is cancelled.
func watchSSE(ctx context.Context, baseURL, token, topic string) error {
	streamURL := strings.TrimRight(baseURL, "/") + "/v1/events/stream?topics=" + url.QueryEscape(topic)
	var lastID string
	for {
		err := streamOnce(ctx, streamURL, token, &lastID)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		slog.Warn("event stream closed, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func streamOnce(ctx context.Context, streamURL, token string, lastID *string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if *lastID != "" {
		req.Header.Set("Last-Event-ID", *lastID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: HTTP %d", resp.StatusCode)
	}

	return readEvents(resp.Body, func(id, topic, data string) {
		*lastID = id
		printEvent(os.Stdout, topic, []byte(data))
	})
}

// readEvents parses a server-sent event stream, calling fn once per event.
// Comment lines such as keepalives are skipped.
func readEvents(r io.Reader, fn func(id, topic, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var id, topic, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			topic = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && data != "":
			fn(id, topic, data)
			id, topic, data = "", "", ""
		}
	}
	return scanner.Err()
}

func printEvent(w io.Writer, topic string, data []byte) {
	if jsonOutput {
		fmt.Fprintf(w, "{\"topic\":%q,\"event\":%s}\n", topic, data)
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		fmt.Fprintf(w, "%s %s\n", ui.RenderKey(topic), data)
		return
	}
	ts := time.Now().Format("15:04:05")
	var b strings.Builder
	for _, k := range []string{"namespace", "identity", "key", "id", "target_id", "name", "value", "value_type", "format", "version", "count"} {
		if v, ok := fields[k]; ok && v != nil {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	fmt.Fprintf(w, "%s %s%s\n", ui.RenderMuted(ts), ui.RenderKey(topic), b.String())
}
