package ports

import (
	"context"

	"github.com/paulmach/orb/maptile"

	"github.com/samirrijal/mapsync/internal/core/domain"
)

// OfflineStore downloads and persists offline regions. Observer callbacks
// arrive from the store's own goroutines.
type OfflineStore interface {
	CreateRegion(ctx context.Context, def domain.OfflineRegionDefinition, metadata []byte) (OfflineRegion, error)
	ListRegions(ctx context.Context) ([]OfflineRegion, error)
	SetTileCountLimit(limit int64)
}

// OfflineRegion is one region known to the offline store.
type OfflineRegion interface {
	ID() int64
	Definition() domain.OfflineRegionDefinition
	Metadata() []byte
	SetObserver(obs RegionObserver)
	// SetDownloadState starts (active=true) or stops the download.
	SetDownloadState(active bool)
	UpdateMetadata(ctx context.Context, metadata []byte) error
	Delete(ctx context.Context) error
}

// RegionObserver receives download callbacks for one region.
type RegionObserver interface {
	OnStatusChanged(status domain.RegionStatus)
	OnError(err *domain.DownloadObserverError)
	OnTileCountLimitExceeded(limit int64)
}

// StoredRegion is the persisted record behind an OfflineRegion.
type StoredRegion struct {
	ID         int64
	Definition domain.OfflineRegionDefinition
	Metadata   []byte
	Complete   bool
}

// RegionRepository persists offline region records.
type RegionRepository interface {
	Insert(ctx context.Context, def domain.OfflineRegionDefinition, metadata []byte) (int64, error)
	List(ctx context.Context) ([]StoredRegion, error)
	UpdateMetadata(ctx context.Context, id int64, metadata []byte) error
	MarkComplete(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// TileFetcher downloads one tile resource and returns its size in bytes.
type TileFetcher interface {
	Fetch(ctx context.Context, styleURL string, tile maptile.Tile, pixelRatio float64) (int, error)
}
