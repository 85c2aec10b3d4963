package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/alfredjeanlab/asgdb/internal/store"
)

// Destination receives a complete JSONL export.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Status describes the most recent export attempt.
type Status struct {
	LastRun time.Time `json:"last_run"`
	Bytes   int       `json:"bytes"`
	Skipped bool      `json:"skipped"`
	Err     string    `json:"error,omitempty"`
}

// Scheduler pushes an export of the store to its destinations on an
// interval. A tick whose export matches the last delivered one is skipped.
type Scheduler struct {
	store store.Store
	dests []Destination
	every time.Duration
	log   *slog.Logger

	mu     sync.Mutex
	digest uint64 // of the last export every destination accepted, minus the header
	status Status

	stop context.CancelFunc
	done chan struct{}
}

func NewScheduler(s store.Store, dests []Destination, every time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: s, dests: dests, every: every, log: logger}
}

// Start pushes once right away and then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop ends the loop and waits for an in-flight push.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	s.stop()
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	t := time.NewTicker(s.every)
	defer t.Stop()
	for {
		if err := s.push(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
			s.log.ErrorContext(ctx, "scheduled export failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RunOnce exports the store and writes it to every destination, whether or
// not it changed. A failing destination does not stop the others; their
// errors are joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.push(ctx, true)
}

// Status returns the outcome of the latest push.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) push(ctx context.Context, force bool) error {
	var buf bytes.Buffer
	err := ExportJSONL(ctx, s.store, &buf)
	if err != nil {
		err = fmt.Errorf("export: %w", err)
		s.record(Status{LastRun: now(), Err: err.Error()}, 0)
		return err
	}
	data := buf.Bytes()
	sum := bodyDigest(data)

	s.mu.Lock()
	unchanged := s.digest != 0 && s.digest == sum
	s.mu.Unlock()
	if unchanged && !force {
		s.log.DebugContext(ctx, "export unchanged, skipping push", "bytes", len(data))
		s.record(Status{LastRun: now(), Bytes: len(data), Skipped: true}, sum)
		return nil
	}

	var errs []error
	for i, d := range s.dests {
		if werr := d.Write(ctx, data); werr != nil {
			s.log.ErrorContext(ctx, "export destination write failed", "destination", i, "err", werr)
			errs = append(errs, werr)
		}
	}
	err = errors.Join(errs...)

	st := Status{LastRun: now(), Bytes: len(data)}
	if err != nil {
		st.Err = err.Error()
		sum = 0
	}
	s.record(st, sum)
	s.log.InfoContext(ctx, "export pushed", "destinations", len(s.dests), "failed", len(errs), "bytes", len(data))
	return err
}

func (s *Scheduler) record(st Status, sum uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	s.digest = sum
}

// bodyDigest hashes everything after the header line, which carries the
// export timestamp.
func bodyDigest(data []byte) uint64 {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	return xxhash.Sum64(data)
}
