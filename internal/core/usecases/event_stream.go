package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// ErrNoSubscriber is returned by EventStream.Send when the event was dropped.
var ErrNoSubscriber = errors.New("no event stream subscriber")

// EventStream is the push channel to the caller. It has at most one
// subscriber; events sent while nobody is attached are dropped.
type EventStream struct {
	mu     sync.Mutex
	sink   ports.EventSink
	gen    uint64
	logger *slog.Logger
}

// NewEventStream creates an EventStream with no subscriber.
func NewEventStream() *EventStream {
	return &EventStream{logger: slog.Default().With("component", "event_stream")}
}

// Attach makes sink the subscriber, replacing any previous one. The
// returned func detaches sink unless it has been replaced since.
func (e *EventStream) Attach(sink ports.EventSink) (detach func()) {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	replaced := e.sink != nil
	e.sink = sink
	e.mu.Unlock()

	if replaced {
		e.logger.Info("event stream subscriber replaced")
	}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen == gen {
			e.sink = nil
		}
	}
}

// Attached reports whether a subscriber is attached.
func (e *EventStream) Attached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink != nil
}

// Send delivers event to the current subscriber.
func (e *EventStream) Send(ctx context.Context, event domain.DownloadEvent) error {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()

	if sink == nil {
		e.logger.Debug("event dropped, no subscriber", "status", event.Status, "region", event.RegionID)
		return ErrNoSubscriber
	}
	return sink.Send(ctx, event)
}
