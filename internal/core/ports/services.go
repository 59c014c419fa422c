package ports

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/domain"
)

// MapSurface is the rendering engine capability. It owns overlay storage,
// hit testing and the camera.
type MapSurface interface {
	// CreateOverlays realizes every option record in one call and returns
	// the new live overlays in the same order.
	CreateOverlays(ctx context.Context, kind domain.OverlayKind, opts []domain.OverlayOptions) ([]Overlay, error)
	// DeleteOverlays removes live overlays in one call.
	DeleteOverlays(ctx context.Context, kind domain.OverlayKind, overlays []Overlay) error
	// UpdateOverlay pushes property changes made through Overlay.SetProperty.
	UpdateOverlay(ctx context.Context, kind domain.OverlayKind, overlay Overlay) error
	// MoveCamera applies a camera target.
	MoveCamera(ctx context.Context, target domain.CameraTarget) error
	// SetTapHandler registers the single generic tap callback. The handler
	// returns whether the tap was consumed.
	SetTapHandler(fn func(kind domain.OverlayKind, handle domain.OverlayHandle) bool)
}

// Overlay is one live overlay object owned by the surface.
type Overlay interface {
	Handle() domain.OverlayHandle
	SetProperty(name string, value any) error
	Geometry() orb.Geometry
}

// TapListener receives taps that crossed back over the boundary.
type TapListener interface {
	OnOverlayTap(kind domain.OverlayKind, id string)
}

// EventSink delivers offline download events to the caller.
type EventSink interface {
	Send(ctx context.Context, event domain.DownloadEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
