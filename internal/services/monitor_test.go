package services

import (
	"context"
	"testing"
	"time"

	"github.com/syncveil/apiserver/internal/events"
	"github.com/syncveil/apiserver/internal/store"
	"github.com/syncveil/apiserver/types"
)

// pipeBackend delivers published payloads to the subscriber in process.
type pipeBackend struct {
	payloads chan []byte
}

func newPipeBackend() *pipeBackend {
	return &pipeBackend{payloads: make(chan []byte, 16)}
}

func (b *pipeBackend) Publish(_ context.Context, _ string, data []byte, _ map[string]string) (string, error) {
	b.payloads <- data
	return "", nil
}

func (b *pipeBackend) Subscribe(ctx context.Context, _ string, handler func(ctx context.Context, data []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-b.payloads:
			if err := handler(ctx, data); err != nil {
				return err
			}
		}
	}
}

func (b *pipeBackend) Close() error { return nil }

func TestMonitorClassify(t *testing.T) {
	mem := store.NewMemoryStore()
	monitor := NewMonitorService(mem.BreachEvents(), events.NewBus(nil), discardLogger())

	cases := []struct {
		name     string
		event    events.Event
		record   bool
		wantKind string
	}{
		{"failed login", events.Event{Type: events.TypeLoginFailed, UserID: 1, Detail: "bad password"}, true, types.BreachKindFailedLogin},
		{"failed login unknown account", events.Event{Type: events.TypeLoginFailed, Email: "ghost@example.com"}, false, ""},
		{"new session", events.Event{Type: events.TypeLoginSucceeded, UserID: 1}, true, types.BreachKindNewSession},
		{"registration is not a breach", events.Event{Type: events.TypeUserRegistered, UserID: 1}, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record, ok := monitor.classify(tc.event)
			if ok != tc.record {
				t.Fatalf("classify recorded = %v, want %v", ok, tc.record)
			}
			if ok && record.Kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q", record.Kind, tc.wantKind)
			}
			if ok && record.ObservedAt.IsZero() {
				t.Fatal("observed time must be stamped")
			}
		})
	}
}

func TestMonitorRecordsPublishedEvents(t *testing.T) {
	backend := newPipeBackend()
	bus := events.NewBus(backend)
	mem := store.NewMemoryStore()
	monitor := NewMonitorService(mem.BreachEvents(), bus, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = monitor.Run(ctx) }()

	if err := bus.Publish(ctx, events.Event{Type: events.TypeLoginFailed, UserID: 9, Detail: "bad password"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		count, err := mem.BreachEvents().CountByUser(ctx, 9)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if count == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("breach event never recorded, count = %d", count)
		case <-time.After(10 * time.Millisecond):
		}
	}

	recorded, err := mem.BreachEvents().ListByUser(ctx, 9, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recorded) != 1 || recorded[0].Kind != types.BreachKindFailedLogin {
		t.Fatalf("recorded = %+v", recorded)
	}
}
