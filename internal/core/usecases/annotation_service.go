package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/annotation"
	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// registry is the id -> controller namespace of one overlay kind.
type registry struct {
	byID  map[string]*annotation.Controller
	order []string
}

func (r *registry) add(id string, c *annotation.Controller) {
	r.byID[id] = c
	r.order = append(r.order, id)
}

func (r *registry) remove(ids []string) {
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		delete(r.byID, id)
		gone[id] = struct{}{}
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := gone[id]; !ok {
			kept = append(kept, id)
		}
	}
	r.order = kept
}

// AnnotationService keeps the overlay registries in step with the map
// surface and routes surface taps to controllers.
type AnnotationService struct {
	surface  ports.MapSurface
	listener ports.TapListener
	logger   *slog.Logger

	mu         sync.Mutex
	registries map[domain.OverlayKind]*registry
	consume    map[domain.OverlayKind]bool
}

// NewAnnotationService creates an AnnotationService and installs its tap
// handler on the surface. listener may be nil.
func NewAnnotationService(surface ports.MapSurface, listener ports.TapListener) *AnnotationService {
	s := &AnnotationService{
		surface:    surface,
		listener:   listener,
		logger:     slog.Default().With("component", "annotations"),
		registries: make(map[domain.OverlayKind]*registry, len(domain.OverlayKinds)),
		consume:    make(map[domain.OverlayKind]bool, len(domain.OverlayKinds)),
	}
	for _, k := range domain.OverlayKinds {
		s.registries[k] = &registry{byID: map[string]*annotation.Controller{}}
		s.consume[k] = true
	}
	surface.SetTapHandler(s.HandleTap)
	return s
}

func (s *AnnotationService) registryFor(kind domain.OverlayKind) (*registry, error) {
	r, ok := s.registries[kind]
	if !ok {
		return nil, &domain.DecodeError{Key: "kind", Reason: fmt.Sprintf("unknown overlay kind %q", kind)}
	}
	return r, nil
}

func (s *AnnotationService) lookup(kind domain.OverlayKind, id string) (*annotation.Controller, error) {
	r, err := s.registryFor(kind)
	if err != nil {
		return nil, err
	}
	c, ok := r.byID[id]
	if !ok {
		return nil, &domain.UnknownOverlayError{Kind: kind, ID: id}
	}
	return c, nil
}

// Create realizes every option record in a single surface call and returns
// the new ids in input order. Each record must carry geometry.
func (s *AnnotationService) Create(ctx context.Context, kind domain.OverlayKind, opts []domain.OverlayOptions) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.registryFor(kind)
	if err != nil {
		return nil, err
	}

	batch := annotation.NewBatchCreate(kind, annotation.TapConfig{Consume: s.consume[kind], Listener: s.listener})
	for i, o := range opts {
		if _, ok := o.Geometry(); !ok {
			return nil, &domain.DecodeError{Key: fmt.Sprintf("options[%d].geometry", i), Reason: "required"}
		}
		if err := annotation.ValidateOptions(o); err != nil {
			return nil, err
		}
		if err := batch.AddOptions(o); err != nil {
			return nil, err
		}
	}

	res, err := batch.Execute(ctx, s.surface)
	if err != nil {
		var mismatch *domain.BatchSizeMismatchError
		if errors.As(err, &mismatch) {
			s.logger.Error("surface returned a different overlay count",
				"kind", kind, "submitted", mismatch.Submitted, "returned", mismatch.Returned)
		}
		return nil, err
	}
	for _, id := range res.IDs {
		r.add(id, res.Controllers[id])
	}
	s.logger.Debug("overlays created", "kind", kind, "count", len(res.IDs))
	return res.IDs, nil
}

// Remove deletes the overlays named by ids in a single surface call. Every
// id is resolved before anything is deleted.
func (s *AnnotationService) Remove(ctx context.Context, kind domain.OverlayKind, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.registryFor(kind)
	if err != nil {
		return err
	}
	batch := annotation.NewBatchRemove(kind)
	for _, id := range ids {
		c, ok := r.byID[id]
		if !ok {
			return &domain.UnknownOverlayError{Kind: kind, ID: id}
		}
		if err := batch.AddHandle(c); err != nil {
			return err
		}
	}

	removed, err := batch.Execute(ctx, s.surface)
	if err != nil {
		return err
	}
	r.remove(removed)
	s.logger.Debug("overlays removed", "kind", kind, "count", len(removed))
	return nil
}

// Update applies a partial option record to one overlay.
func (s *AnnotationService) Update(ctx context.Context, kind domain.OverlayKind, id string, delta domain.OverlayOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(kind, id)
	if err != nil {
		return err
	}
	return c.ApplyOptions(ctx, delta)
}

// Geometry returns the current geometry of one overlay.
func (s *AnnotationService) Geometry(ctx context.Context, kind domain.OverlayKind, id string) (orb.Geometry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(kind, id)
	if err != nil {
		return nil, err
	}
	return c.Geometry()
}

// Options returns the options last applied to one overlay.
func (s *AnnotationService) Options(kind domain.OverlayKind, id string) (domain.OverlayOptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(kind, id)
	if err != nil {
		return domain.OverlayOptions{}, err
	}
	return c.Options(), nil
}

// IDs returns the registered ids of kind in creation order.
func (s *AnnotationService) IDs(kind domain.OverlayKind) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.registryFor(kind)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out, nil
}

// List returns summaries of every overlay of kind, in creation order.
func (s *AnnotationService) List(kind domain.OverlayKind, encode func(domain.OverlayOptions) map[string]any) ([]domain.OverlaySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.registryFor(kind)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OverlaySummary, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Summary(encode))
	}
	return out, nil
}

// Count returns the number of registered overlays of kind.
func (s *AnnotationService) Count(kind domain.OverlayKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.registries[kind]; ok {
		return len(r.byID)
	}
	return 0
}

// SetConsumeTapEvents makes taps on the listed kinds consumed and taps on
// every other kind pass through to the map.
func (s *AnnotationService) SetConsumeTapEvents(kinds []domain.OverlayKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make(map[domain.OverlayKind]bool, len(kinds))
	for _, k := range kinds {
		selected[k] = true
	}
	for kind, r := range s.registries {
		s.consume[kind] = selected[kind]
		for _, c := range r.byID {
			c.SetConsumeTapEvents(selected[kind])
		}
	}
}

// HandleTap routes a surface hit to its controller and reports whether
// the tap was consumed. Taps on handles with no controller are dropped.
func (s *AnnotationService) HandleTap(kind domain.OverlayKind, handle domain.OverlayHandle) bool {
	s.mu.Lock()
	var c *annotation.Controller
	if r, ok := s.registries[kind]; ok {
		c = r.byID[handle.ID()]
	}
	s.mu.Unlock()

	if c == nil {
		s.logger.Debug("tap on unknown overlay dropped", "kind", kind, "id", handle.ID())
		return false
	}
	return c.OnTap()
}

// Close removes every overlay from the surface and empties the registries.
func (s *AnnotationService) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, kind := range domain.OverlayKinds {
		r := s.registries[kind]
		if len(r.order) == 0 {
			continue
		}
		batch := annotation.NewBatchRemove(kind)
		for _, id := range r.order {
			_ = batch.AddHandle(r.byID[id])
		}
		if _, err := batch.Execute(ctx, s.surface); err != nil {
			errs = append(errs, err)
		}
		s.registries[kind] = &registry{byID: map[string]*annotation.Controller{}}
	}
	return errors.Join(errs...)
}
