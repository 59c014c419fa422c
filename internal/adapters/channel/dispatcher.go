// Package channel is the command channel: it maps method names onto the
// engine's operations, decodes their arguments and encodes their results.
// Transports (HTTP, NATS) hand it a method and a JSON body.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/mapsync/internal/core/codec"
	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/usecases"
	"github.com/samirrijal/mapsync/internal/pkg/metrics"
	"github.com/samirrijal/mapsync/internal/pkg/telemetry"
)

// Reply is the wire reply to one command.
type Reply struct {
	Result any         `json:"result,omitempty"`
	Error  *ReplyError `json:"error,omitempty"`
}

// ReplyError carries a stable error code and a human message.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK reports whether the command succeeded.
func (r Reply) OK() bool { return r.Error == nil }

// Handler runs one command.
type Handler func(ctx context.Context, a codec.Args) (any, error)

// Options configures a Dispatcher.
type Options struct {
	// DefaultPixelRatio fills offline.download requests without pixelRatio.
	DefaultPixelRatio float64
	Tracer            trace.Tracer
}

// Dispatcher runs commands one at a time against a single map session.
type Dispatcher struct {
	overlays *usecases.AnnotationService
	offline  *usecases.OfflineService
	catalog  *usecases.CatalogService
	opts     Options
	tracer   trace.Tracer
	logger   *slog.Logger

	mu      sync.Mutex
	methods map[string]Handler
}

// New creates a Dispatcher with the full method table.
func New(overlays *usecases.AnnotationService, offline *usecases.OfflineService, catalog *usecases.CatalogService, opts Options) *Dispatcher {
	if opts.DefaultPixelRatio <= 0 {
		opts.DefaultPixelRatio = 1
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	d := &Dispatcher{
		overlays: overlays,
		offline:  offline,
		catalog:  catalog,
		opts:     opts,
		tracer:   tracer,
		logger:   slog.Default().With("component", "channel"),
	}
	d.methods = map[string]Handler{
		"overlay.create":              d.overlayCreate,
		"overlay.remove":              d.overlayRemove,
		"overlay.update":              d.overlayUpdate,
		"overlay.geometry":            d.overlayGeometry,
		"overlay.list":                d.overlayList,
		"overlay.setConsumeTapEvents": d.overlaySetConsumeTapEvents,
		"offline.download":            d.offlineDownload,
		"offline.list":                d.offlineList,
		"offline.delete":              d.offlineDelete,
		"offline.navigate":            d.offlineNavigate,
		"offline.cancel":              d.offlineCancel,
		"offline.setTileLimit":        d.offlineSetTileLimit,
		"offline.updateMetadata":      d.offlineUpdateMetadata,
	}
	return d
}

// Methods lists the method names the dispatcher serves, sorted.
func (d *Dispatcher) Methods() []string {
	out := make([]string, 0, len(d.methods))
	for m := range d.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// DispatchJSON decodes body as the argument map and dispatches. An empty
// body means no arguments.
func (d *Dispatcher) DispatchJSON(ctx context.Context, method string, body []byte) Reply {
	var args any
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return d.finish(ctx, method, time.Now(), nil, &domain.DecodeError{Reason: "body is not valid JSON: " + err.Error()}, nil)
		}
	}
	return d.Dispatch(ctx, method, args)
}

// Dispatch runs method with already decoded arguments. Commands are
// serialized: no two run at the same time.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, args any) Reply {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "command "+method, trace.WithAttributes(telemetry.AttrMethod.String(method)))
	defer span.End()

	h, ok := d.methods[method]
	if !ok {
		return d.finish(ctx, method, start, nil, errUnknownMethod(method), span)
	}
	a, err := codec.NewArgs(args)
	if err != nil {
		return d.finish(ctx, method, start, nil, err, span)
	}

	d.mu.Lock()
	result, err := h(ctx, a)
	d.mu.Unlock()
	return d.finish(ctx, method, start, result, err, span)
}

func (d *Dispatcher) finish(ctx context.Context, method string, start time.Time, result any, err error, span trace.Span) Reply {
	code := CodeOK
	if err != nil {
		code = Code(err)
	}
	label := method
	if _, known := d.methods[method]; !known {
		label = "unknown"
	}
	metrics.CommandsTotal.WithLabelValues(label, code).Inc()
	metrics.CommandDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	d.refreshGauges()

	if span != nil {
		span.SetAttributes(telemetry.AttrResult.String(code))
	}
	if err == nil {
		return Reply{Result: result}
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
	}

	switch code {
	case CodeInternal, CodeBatchSizeMismatch:
		d.logger.ErrorContext(ctx, "command failed", "method", method, "code", code, "error", err)
	default:
		d.logger.DebugContext(ctx, "command rejected", "method", method, "code", code, "error", err)
	}
	return Reply{Error: &ReplyError{Code: code, Message: err.Error()}}
}

func (d *Dispatcher) refreshGauges() {
	for _, k := range domain.OverlayKinds {
		metrics.OverlaysActive.WithLabelValues(string(k)).Set(float64(d.overlays.Count(k)))
	}
}
