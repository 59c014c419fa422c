// Package headless is an in-process map surface. It keeps overlay
// properties, hit-tests taps against overlay geometry and records the
// camera, which is all the engine needs from a renderer.
package headless

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// drawOrder lists kinds top-most first, as the surface stacks its layers.
var drawOrder = []domain.OverlayKind{domain.KindSymbol, domain.KindCircle, domain.KindLine, domain.KindFill}

// Surface implements ports.MapSurface in memory.
type Surface struct {
	mu     sync.Mutex
	next   uint64
	layers map[domain.OverlayKind]*layer
	camera domain.CameraTarget
	tap    func(domain.OverlayKind, domain.OverlayHandle) bool
}

type layer struct {
	byHandle map[domain.OverlayHandle]*Overlay
	order    []domain.OverlayHandle
}

// New creates an empty surface with the camera at zoom 0.
func New() *Surface {
	s := &Surface{layers: make(map[domain.OverlayKind]*layer, len(drawOrder))}
	for _, k := range drawOrder {
		s.layers[k] = &layer{byHandle: map[domain.OverlayHandle]*Overlay{}}
	}
	return s
}

// Overlay is one overlay held by the surface. Property writes are staged
// until the surface is asked to update the overlay.
type Overlay struct {
	handle domain.OverlayHandle
	kind   domain.OverlayKind

	mu        sync.Mutex
	committed map[string]any
	staged    map[string]any
}

// Handle implements ports.Overlay.
func (o *Overlay) Handle() domain.OverlayHandle { return o.handle }

// SetProperty implements ports.Overlay.
func (o *Overlay) SetProperty(name string, value any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.staged == nil {
		o.staged = map[string]any{}
	}
	o.staged[name] = value
	return nil
}

// Geometry implements ports.Overlay.
func (o *Overlay) Geometry() orb.Geometry {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, _ := o.committed[domain.GeometryKey].(orb.Geometry)
	return g
}

// Property returns a committed property value.
func (o *Overlay) Property(name string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.committed[name]
	return v, ok
}

func (o *Overlay) commit() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range o.staged {
		o.committed[k] = v
	}
	o.staged = nil
}

func (s *Surface) layerFor(kind domain.OverlayKind) (*layer, error) {
	l, ok := s.layers[kind]
	if !ok {
		return nil, fmt.Errorf("surface has no %q layer", kind)
	}
	return l, nil
}

// CreateOverlays implements ports.MapSurface. Handles are unique across
// every kind for the life of the surface.
func (s *Surface) CreateOverlays(ctx context.Context, kind domain.OverlayKind, opts []domain.OverlayOptions) ([]ports.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.layerFor(kind)
	if err != nil {
		return nil, err
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("empty %s batch", kind)
	}
	out := make([]ports.Overlay, len(opts))
	for i, o := range opts {
		s.next++
		ov := &Overlay{
			handle:    domain.OverlayHandle(fmt.Sprintf("%d", s.next)),
			kind:      kind,
			committed: make(map[string]any, o.Len()),
		}
		for _, name := range o.Names() {
			ov.committed[name], _ = o.Get(name)
		}
		l.byHandle[ov.handle] = ov
		l.order = append(l.order, ov.handle)
		out[i] = ov
	}
	return out, nil
}

// DeleteOverlays implements ports.MapSurface.
func (s *Surface) DeleteOverlays(ctx context.Context, kind domain.OverlayKind, overlays []ports.Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.layerFor(kind)
	if err != nil {
		return err
	}
	gone := make(map[domain.OverlayHandle]struct{}, len(overlays))
	for _, ov := range overlays {
		h := ov.Handle()
		if _, ok := l.byHandle[h]; !ok {
			return fmt.Errorf("%s overlay %s is not on the surface", kind, h)
		}
		gone[h] = struct{}{}
	}
	for h := range gone {
		delete(l.byHandle, h)
	}
	kept := l.order[:0]
	for _, h := range l.order {
		if _, ok := gone[h]; !ok {
			kept = append(kept, h)
		}
	}
	l.order = kept
	return nil
}

// UpdateOverlay implements ports.MapSurface.
func (s *Surface) UpdateOverlay(ctx context.Context, kind domain.OverlayKind, overlay ports.Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.layerFor(kind)
	if err != nil {
		return err
	}
	ov, ok := l.byHandle[overlay.Handle()]
	if !ok {
		return fmt.Errorf("%s overlay %s is not on the surface", kind, overlay.Handle())
	}
	ov.commit()
	return nil
}

// MoveCamera implements ports.MapSurface.
func (s *Surface) MoveCamera(ctx context.Context, target domain.CameraTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = target
	return nil
}

// Camera returns the current camera target.
func (s *Surface) Camera() domain.CameraTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// SetTapHandler implements ports.MapSurface.
func (s *Surface) SetTapHandler(fn func(domain.OverlayKind, domain.OverlayHandle) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tap = fn
}

// Lookup returns a live overlay by kind and handle.
func (s *Surface) Lookup(kind domain.OverlayKind, handle domain.OverlayHandle) (*Overlay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[kind]
	if !ok {
		return nil, false
	}
	ov, ok := l.byHandle[handle]
	return ov, ok
}

// Len returns the number of overlays of kind on the surface.
func (s *Surface) Len(kind domain.OverlayKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.layers[kind]; ok {
		return len(l.byHandle)
	}
	return 0
}
