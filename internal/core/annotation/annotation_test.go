package annotation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/annotation"
	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// --- Mock overlay and surface ---

type fakeOverlay struct {
	handle domain.OverlayHandle
	props  map[string]any
}

func (o *fakeOverlay) Handle() domain.OverlayHandle { return o.handle }

func (o *fakeOverlay) SetProperty(name string, v any) error {
	o.props[name] = v
	return nil
}

func (o *fakeOverlay) Geometry() orb.Geometry {
	g, _ := o.props[domain.GeometryKey].(orb.Geometry)
	return g
}

type mockSurface struct {
	next     int
	createFn func(opts []domain.OverlayOptions) ([]ports.Overlay, error)
	deleteFn func(overlays []ports.Overlay) error

	createCalls int
	deleteCalls int
	updateCalls int
	deleted     []domain.OverlayHandle
}

func (m *mockSurface) CreateOverlays(ctx context.Context, kind domain.OverlayKind, opts []domain.OverlayOptions) ([]ports.Overlay, error) {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(opts)
	}
	out := make([]ports.Overlay, len(opts))
	for i, o := range opts {
		m.next++
		props := map[string]any{}
		for _, n := range o.Names() {
			props[n], _ = o.Get(n)
		}
		out[i] = &fakeOverlay{handle: domain.OverlayHandle(fmt.Sprint(m.next)), props: props}
	}
	return out, nil
}

func (m *mockSurface) DeleteOverlays(ctx context.Context, kind domain.OverlayKind, overlays []ports.Overlay) error {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(overlays)
	}
	for _, o := range overlays {
		m.deleted = append(m.deleted, o.Handle())
	}
	return nil
}

func (m *mockSurface) UpdateOverlay(ctx context.Context, kind domain.OverlayKind, overlay ports.Overlay) error {
	m.updateCalls++
	return nil
}

func (m *mockSurface) MoveCamera(ctx context.Context, target domain.CameraTarget) error { return nil }

func (m *mockSurface) SetTapHandler(fn func(domain.OverlayKind, domain.OverlayHandle) bool) {}

type recordingListener struct {
	taps []string
}

func (l *recordingListener) OnOverlayTap(kind domain.OverlayKind, id string) {
	l.taps = append(l.taps, string(kind)+"#"+id)
}

func circle(color string) domain.OverlayOptions {
	return domain.NewOverlayOptions(domain.KindCircle).
		With("circleColor", color).
		With(domain.GeometryKey, orb.Point{-2.93, 43.26})
}

func createOne(t *testing.T, surface *mockSurface, taps annotation.TapConfig) *annotation.Controller {
	t.Helper()
	b := annotation.NewBatchCreate(domain.KindCircle, taps)
	if err := b.AddOptions(circle("#ff0000")); err != nil {
		t.Fatalf("add: %v", err)
	}
	res, err := b.Execute(context.Background(), surface)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return res.Controllers[res.IDs[0]]
}

// --- Batch create ---

func TestBatchCreate_ExecuteYieldsNDistinctControllers(t *testing.T) {
	surface := &mockSurface{}
	b := annotation.NewBatchCreate(domain.KindCircle, annotation.TapConfig{Consume: true})
	for i := 0; i < 3; i++ {
		if err := b.AddOptions(circle("#00ff00")); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	res, err := b.Execute(context.Background(), surface)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.IDs) != 3 || len(res.Controllers) != 3 {
		t.Fatalf("expected 3 ids and controllers, got %d/%d", len(res.IDs), len(res.Controllers))
	}
	if b.Len() != 0 {
		t.Errorf("accumulator should be empty, has %d", b.Len())
	}
	if surface.createCalls != 1 {
		t.Errorf("expected exactly one surface call, got %d", surface.createCalls)
	}

	again, err := b.Execute(context.Background(), surface)
	if err != nil || len(again.IDs) != 0 {
		t.Errorf("second execute should be a no-op, got %v, %v", again.IDs, err)
	}
	if surface.createCalls != 1 {
		t.Errorf("empty execute must not call the surface")
	}
}

func TestBatchCreate_PositionalPairing(t *testing.T) {
	surface := &mockSurface{}
	b := annotation.NewBatchCreate(domain.KindCircle, annotation.TapConfig{})
	colors := []string{"#111111", "#222222", "#333333"}
	for _, c := range colors {
		_ = b.AddOptions(circle(c))
	}
	res, err := b.Execute(context.Background(), surface)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, id := range res.IDs {
		got, _ := res.Controllers[id].Options().Get("circleColor")
		if got != colors[i] {
			t.Errorf("id %s: color %v, want %s", id, got, colors[i])
		}
	}
}

func TestBatchCreate_EmptyIsNoop(t *testing.T) {
	surface := &mockSurface{}
	res, err := annotation.NewBatchCreate(domain.KindFill, annotation.TapConfig{}).Execute(context.Background(), surface)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.IDs) != 0 || surface.createCalls != 0 {
		t.Errorf("expected no surface call, got %d", surface.createCalls)
	}
}

func TestBatchCreate_SizeMismatch(t *testing.T) {
	surface := &mockSurface{}
	surface.createFn = func(opts []domain.OverlayOptions) ([]ports.Overlay, error) {
		return []ports.Overlay{&fakeOverlay{handle: "1", props: map[string]any{}}}, nil
	}
	b := annotation.NewBatchCreate(domain.KindCircle, annotation.TapConfig{})
	_ = b.AddOptions(circle("#000000"))
	_ = b.AddOptions(circle("#000000"))

	_, err := b.Execute(context.Background(), surface)
	var mismatch *domain.BatchSizeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected BatchSizeMismatchError, got %v", err)
	}
	if mismatch.Submitted != 2 || mismatch.Returned != 1 {
		t.Errorf("got %+v", mismatch)
	}
	if b.Len() != 0 {
		t.Error("accumulator must be cleared after a failed execute")
	}
	if len(surface.deleted) != 1 {
		t.Errorf("unpaired overlays should be taken back, deleted %v", surface.deleted)
	}
}

func TestBatchCreate_ClearedOnSurfaceFailure(t *testing.T) {
	surface := &mockSurface{createFn: func([]domain.OverlayOptions) ([]ports.Overlay, error) {
		return nil, errors.New("surface gone")
	}}
	b := annotation.NewBatchCreate(domain.KindCircle, annotation.TapConfig{})
	_ = b.AddOptions(circle("#000000"))
	if _, err := b.Execute(context.Background(), surface); err == nil {
		t.Fatal("expected error")
	}
	if b.Len() != 0 {
		t.Error("accumulator must be cleared")
	}
	if err := b.AddOptions(circle("#000000")); !errors.Is(err, domain.ErrBatchSpent) {
		t.Errorf("expected ErrBatchSpent, got %v", err)
	}
}

// --- Batch remove ---

func TestBatchRemove_MarksControllersInert(t *testing.T) {
	surface := &mockSurface{}
	c1 := createOne(t, surface, annotation.TapConfig{})
	c2 := createOne(t, surface, annotation.TapConfig{})

	rm := annotation.NewBatchRemove(domain.KindCircle)
	_ = rm.AddHandle(c1)
	_ = rm.AddHandle(c2)
	ids, err := rm.Execute(context.Background(), surface)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || surface.deleteCalls != 1 {
		t.Errorf("ids=%v deleteCalls=%d", ids, surface.deleteCalls)
	}
	if !c1.Removed() || !c2.Removed() {
		t.Error("controllers should be inert")
	}
	if _, err := c1.Geometry(); err == nil {
		t.Error("expected StaleHandleError")
	}
}

// --- Controller ---

func TestController_ApplyOptionsTouchesOnlyPopulated(t *testing.T) {
	surface := &mockSurface{}
	c := createOne(t, surface, annotation.TapConfig{})

	delta := domain.NewOverlayOptions(domain.KindCircle).With("circleRadius", 12.0)
	if err := c.ApplyOptions(context.Background(), delta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts := c.Options()
	if r, _ := opts.Get("circleRadius"); r != 12.0 {
		t.Errorf("circleRadius = %v", r)
	}
	if col, _ := opts.Get("circleColor"); col != "#ff0000" {
		t.Errorf("circleColor changed to %v", col)
	}
	if opts.Has("circleOpacity") {
		t.Error("unset field became populated")
	}
	if surface.updateCalls != 1 {
		t.Errorf("updateCalls = %d, want 1", surface.updateCalls)
	}
}

func TestController_ApplyOptionsPartialFailure(t *testing.T) {
	surface := &mockSurface{}
	c := createOne(t, surface, annotation.TapConfig{})

	// Names are applied in sorted order: circleBlur before circleColor.
	delta := domain.NewOverlayOptions(domain.KindCircle).
		With("circleBlur", 0.5).
		With("circleColor", "not-a-color")
	err := c.ApplyOptions(context.Background(), delta)

	var inv *domain.InvalidPropertyError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidPropertyError, got %v", err)
	}
	if inv.Field != "circleColor" {
		t.Errorf("Field = %q", inv.Field)
	}
	if b, _ := c.Options().Get("circleBlur"); b != 0.5 {
		t.Error("earlier mutation should remain applied")
	}
	if col, _ := c.Options().Get("circleColor"); col != "#ff0000" {
		t.Errorf("rejected value must not be stored, got %v", col)
	}
}

func TestController_ColorFormats(t *testing.T) {
	surface := &mockSurface{}
	c := createOne(t, surface, annotation.TapConfig{})
	tests := []struct {
		color string
		ok    bool
	}{
		{"#fff", true},
		{"#A1B2C3", true},
		{"#a1b2c3d4", true},
		{"rgba(255, 0, 0, 0.5)", true},
		{"rgb(12,34,56)", true},
		{"#ggg", false},
		{"rgb(300,0,0)", false},
		{"red", false},
	}
	for _, tt := range tests {
		err := c.ApplyOptions(context.Background(), domain.NewOverlayOptions(domain.KindCircle).With("circleColor", tt.color))
		if (err == nil) != tt.ok {
			t.Errorf("color %q: err=%v, want ok=%v", tt.color, err, tt.ok)
		}
	}
}

func TestController_OnTap(t *testing.T) {
	surface := &mockSurface{}
	listener := &recordingListener{}
	c := createOne(t, surface, annotation.TapConfig{Consume: true, Listener: listener})

	if !c.OnTap() {
		t.Error("tap should be consumed")
	}
	if len(listener.taps) != 1 || listener.taps[0] != "circle#"+c.ID() {
		t.Errorf("listener saw %v", listener.taps)
	}

	c.SetConsumeTapEvents(false)
	if c.OnTap() {
		t.Error("tap should pass through")
	}
}

func TestController_RemoveTwiceIsStale(t *testing.T) {
	surface := &mockSurface{}
	c := createOne(t, surface, annotation.TapConfig{})

	if err := c.Remove(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stale *domain.StaleHandleError
	if err := c.Remove(context.Background()); !errors.As(err, &stale) {
		t.Errorf("expected StaleHandleError, got %v", err)
	}
	if err := c.ApplyOptions(context.Background(), circle("#000000")); !errors.As(err, &stale) {
		t.Errorf("expected StaleHandleError from apply, got %v", err)
	}
	if c.OnTap() {
		t.Error("inert controller must not consume taps")
	}
}
