package annotation

import (
	"context"
	"fmt"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// TapConfig is what newly created controllers start with.
type TapConfig struct {
	Consume  bool
	Listener ports.TapListener
}

// BatchCreateCommand accumulates overlay creations for one surface call.
// It is single use: after Execute it is empty and rejects further adds.
type BatchCreateCommand struct {
	kind    domain.OverlayKind
	taps    TapConfig
	pending []domain.OverlayOptions
	spent   bool
}

// NewBatchCreate starts a creation batch for kind.
func NewBatchCreate(kind domain.OverlayKind, taps TapConfig) *BatchCreateCommand {
	return &BatchCreateCommand{kind: kind, taps: taps}
}

// AddOptions queues one overlay.
func (b *BatchCreateCommand) AddOptions(opts domain.OverlayOptions) error {
	if b.spent {
		return domain.ErrBatchSpent
	}
	if opts.Kind() != b.kind {
		return fmt.Errorf("cannot add %s options to a %s batch", opts.Kind(), b.kind)
	}
	b.pending = append(b.pending, opts)
	return nil
}

// Len returns the number of queued overlays.
func (b *BatchCreateCommand) Len() int { return len(b.pending) }

// CreateResult maps the ids assigned by one batch to their controllers.
type CreateResult struct {
	IDs         []string
	Controllers map[string]*Controller
}

// Execute realizes the queued overlays in one surface call and pairs the
// returned overlays with the queued options by position. The queue is
// cleared whatever the outcome.
func (b *BatchCreateCommand) Execute(ctx context.Context, surface ports.MapSurface) (CreateResult, error) {
	pending := b.pending
	b.pending = nil
	b.spent = true

	result := CreateResult{Controllers: map[string]*Controller{}}
	if len(pending) == 0 {
		return result, nil
	}

	overlays, err := surface.CreateOverlays(ctx, b.kind, pending)
	if err != nil {
		return result, fmt.Errorf("create %d %s overlays: %w", len(pending), b.kind, err)
	}
	if len(overlays) != len(pending) {
		if len(overlays) > 0 {
			// Nothing can own these; take them back off the surface.
			_ = surface.DeleteOverlays(ctx, b.kind, overlays)
		}
		return result, &domain.BatchSizeMismatchError{Kind: b.kind, Submitted: len(pending), Returned: len(overlays)}
	}

	result.IDs = make([]string, len(overlays))
	for i, ov := range overlays {
		c := newController(surface, ov, pending[i], b.taps.Consume, b.taps.Listener)
		result.IDs[i] = c.ID()
		result.Controllers[c.ID()] = c
	}
	return result, nil
}

// BatchRemoveCommand accumulates overlay removals for one surface call.
type BatchRemoveCommand struct {
	kind    domain.OverlayKind
	pending []*Controller
	spent   bool
}

// NewBatchRemove starts a removal batch for kind.
func NewBatchRemove(kind domain.OverlayKind) *BatchRemoveCommand {
	return &BatchRemoveCommand{kind: kind}
}

// AddHandle queues the overlay owned by c. Duplicates are not detected.
func (b *BatchRemoveCommand) AddHandle(c *Controller) error {
	if b.spent {
		return domain.ErrBatchSpent
	}
	b.pending = append(b.pending, c)
	return nil
}

// Len returns the number of queued removals.
func (b *BatchRemoveCommand) Len() int { return len(b.pending) }

// Execute deletes the queued overlays in one surface call, marks their
// controllers inert and returns the removed ids. The queue is cleared
// whatever the outcome.
func (b *BatchRemoveCommand) Execute(ctx context.Context, surface ports.MapSurface) ([]string, error) {
	pending := b.pending
	b.pending = nil
	b.spent = true

	if len(pending) == 0 {
		return nil, nil
	}

	overlays := make([]ports.Overlay, len(pending))
	ids := make([]string, len(pending))
	for i, c := range pending {
		overlays[i] = c.overlay
		ids[i] = c.ID()
	}
	if err := surface.DeleteOverlays(ctx, b.kind, overlays); err != nil {
		return nil, fmt.Errorf("delete %d %s overlays: %w", len(pending), b.kind, err)
	}
	for _, c := range pending {
		c.markRemoved()
	}
	return ids, nil
}
