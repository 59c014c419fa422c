package channel

import (
	"context"
	"strconv"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
	"github.com/samirrijal/mapsync/internal/pkg/metrics"
)

// InstrumentedSink counts the events passing through to next and the
// downloads they resolve.
type InstrumentedSink struct {
	next ports.EventSink
}

// NewInstrumentedSink wraps next.
func NewInstrumentedSink(next ports.EventSink) *InstrumentedSink {
	return &InstrumentedSink{next: next}
}

// Send implements ports.EventSink.
func (s *InstrumentedSink) Send(ctx context.Context, event domain.DownloadEvent) error {
	err := s.next.Send(ctx, event)
	metrics.StreamEventsTotal.WithLabelValues(string(event.Status), strconv.FormatBool(err == nil)).Inc()

	switch event.Status {
	case domain.StatusSuccess:
		metrics.DownloadsTotal.WithLabelValues("success").Inc()
	case domain.StatusError:
		metrics.DownloadsTotal.WithLabelValues(outcome(event.Code)).Inc()
	}
	return err
}

func outcome(code string) string {
	switch code {
	case domain.CodeTileCountLimitExceeded:
		return "tile_limit"
	case domain.CodeInvalidRegionDefinition:
		return "create_failed"
	default:
		return "error"
	}
}

// FanoutSink sends every event to each sink. The first error is returned
// after all sinks have been tried.
type FanoutSink []ports.EventSink

// Send implements ports.EventSink.
func (f FanoutSink) Send(ctx context.Context, event domain.DownloadEvent) error {
	var first error
	for _, s := range f {
		if err := s.Send(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
