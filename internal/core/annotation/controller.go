// Package annotation holds the per-overlay controller and the batch
// commands that create and remove overlays on the map surface.
package annotation

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// Controller owns one live overlay and the options last applied to it.
// The tap listener is borrowed; the controller never closes it.
type Controller struct {
	kind    domain.OverlayKind
	schema  *domain.Schema
	overlay ports.Overlay
	surface ports.MapSurface

	mu          sync.Mutex
	options     domain.OverlayOptions
	consumeTaps bool
	listener    ports.TapListener
	removed     bool
}

func newController(surface ports.MapSurface, overlay ports.Overlay, opts domain.OverlayOptions, consumeTaps bool, listener ports.TapListener) *Controller {
	schema, _ := domain.SchemaFor(opts.Kind())
	return &Controller{
		kind:        opts.Kind(),
		schema:      schema,
		overlay:     overlay,
		surface:     surface,
		options:     opts,
		consumeTaps: consumeTaps,
		listener:    listener,
	}
}

// ID returns the external identifier of the overlay.
func (c *Controller) ID() string { return c.overlay.Handle().ID() }

// Kind returns the overlay kind.
func (c *Controller) Kind() domain.OverlayKind { return c.kind }

// Handle returns the live overlay handle.
func (c *Controller) Handle() domain.OverlayHandle { return c.overlay.Handle() }

// Options returns the options applied so far.
func (c *Controller) Options() domain.OverlayOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options
}

// ApplyOptions pushes every populated field of delta onto the live overlay.
// The first rejected field stops the call with an InvalidPropertyError;
// fields applied before it stay applied.
func (c *Controller) ApplyOptions(ctx context.Context, delta domain.OverlayOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return c.stale()
	}

	applied := 0
	var applyErr error
	for _, name := range delta.Names() {
		v, _ := delta.Get(name)
		if err := c.setProperty(name, v); err != nil {
			applyErr = &domain.InvalidPropertyError{Kind: c.kind, Field: name, Err: err}
			break
		}
		c.options = c.options.With(name, v)
		applied++
	}
	if applied > 0 {
		if err := c.surface.UpdateOverlay(ctx, c.kind, c.overlay); err != nil && applyErr == nil {
			applyErr = fmt.Errorf("update %s overlay %s: %w", c.kind, c.ID(), err)
		}
	}
	return applyErr
}

func (c *Controller) setProperty(name string, v any) error {
	prop, ok := c.schema.Lookup(name)
	if !ok {
		return fmt.Errorf("not a %s property", c.kind)
	}
	if err := checkValue(prop, v); err != nil {
		return err
	}
	return c.overlay.SetProperty(name, v)
}

// Geometry returns the overlay's current geometry as reported by the surface.
func (c *Controller) Geometry() (orb.Geometry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return nil, c.stale()
	}
	return c.overlay.Geometry(), nil
}

// SetConsumeTapEvents sets whether taps on this overlay are consumed.
func (c *Controller) SetConsumeTapEvents(consume bool) {
	c.mu.Lock()
	c.consumeTaps = consume
	c.mu.Unlock()
}

// OnTap notifies the listener and reports whether the tap is consumed.
// An inert controller never consumes.
func (c *Controller) OnTap() bool {
	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		return false
	}
	listener, consume := c.listener, c.consumeTaps
	c.mu.Unlock()

	if listener != nil {
		listener.OnOverlayTap(c.kind, c.ID())
	}
	return consume
}

// Remove deletes the live overlay and marks the controller inert.
func (c *Controller) Remove(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return c.stale()
	}
	if err := c.surface.DeleteOverlays(ctx, c.kind, []ports.Overlay{c.overlay}); err != nil {
		return fmt.Errorf("delete %s overlay %s: %w", c.kind, c.ID(), err)
	}
	c.removed = true
	return nil
}

// Removed reports whether the controller is inert.
func (c *Controller) Removed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removed
}

func (c *Controller) markRemoved() {
	c.mu.Lock()
	c.removed = true
	c.mu.Unlock()
}

func (c *Controller) stale() error {
	return &domain.StaleHandleError{Kind: c.kind, ID: c.ID()}
}

// Summary returns a read view of the controller.
func (c *Controller) Summary(encode func(domain.OverlayOptions) map[string]any) domain.OverlaySummary {
	return domain.OverlaySummary{ID: c.ID(), Kind: c.kind, Options: encode(c.Options())}
}
