package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

const (
	catalogCacheKey = "mapsync:offline:regions"
	catalogCacheTTL = 30
)

// RegionRef addresses a region either by its position in the last listing
// or by its logical id. ID wins when both are set.
type RegionRef struct {
	Index int
	ID    string
}

func (r RegionRef) String() string {
	if r.ID != "" {
		return "id " + r.ID
	}
	return fmt.Sprintf("index %d", r.Index)
}

// CatalogService lists, deletes and frames persisted offline regions.
type CatalogService struct {
	store   ports.OfflineStore
	surface ports.MapSurface
	cache   ports.CacheService
	logger  *slog.Logger

	mu        sync.Mutex
	snapshot  []catalogEntry
	onDeleted func(storeID int64)
}

type catalogEntry struct {
	region ports.OfflineRegion
	data   domain.OfflineRegionData
}

// NewCatalogService creates a CatalogService. cache may be nil.
func NewCatalogService(store ports.OfflineStore, surface ports.MapSurface, cache ports.CacheService) *CatalogService {
	return &CatalogService{
		store:   store,
		surface: surface,
		cache:   cache,
		logger:  slog.Default().With("component", "catalog"),
	}
}

func (s *CatalogService) load(ctx context.Context) ([]catalogEntry, error) {
	regions, err := s.store.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offline regions: %w", err)
	}
	entries := make([]catalogEntry, 0, len(regions))
	for _, r := range regions {
		id, rest, err := domain.DecodeMetadata(r.Metadata())
		if err != nil {
			s.logger.Warn("skipping region with undecodable metadata", "store_id", r.ID(), "error", err)
			continue
		}
		entries = append(entries, catalogEntry{
			region: r,
			data: domain.OfflineRegionData{
				ID:         id,
				StoreID:    r.ID(),
				Definition: r.Definition(),
				Metadata:   rest,
			},
		})
	}
	return entries, nil
}

// List enumerates every region and records the listing as the snapshot
// that index-based Delete and Navigate refer to.
func (s *CatalogService) List(ctx context.Context) ([]domain.OfflineRegionData, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.snapshot = entries
	s.mu.Unlock()

	out := make([]domain.OfflineRegionData, len(entries))
	for i, e := range entries {
		out[i] = e.data
	}
	s.storeCache(ctx, out)
	return out, nil
}

// Cached returns the listing from the cache when present. It never touches
// the index snapshot.
func (s *CatalogService) Cached(ctx context.Context) ([]domain.OfflineRegionData, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, catalogCacheKey); err == nil && raw != nil {
			var out []domain.OfflineRegionData
			if json.Unmarshal(raw, &out) == nil {
				return out, nil
			}
		}
	}
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OfflineRegionData, len(entries))
	for i, e := range entries {
		out[i] = e.data
	}
	s.storeCache(ctx, out)
	return out, nil
}

func (s *CatalogService) storeCache(ctx context.Context, list []domain.OfflineRegionData) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, catalogCacheKey, raw, catalogCacheTTL); err != nil {
		s.logger.Debug("catalog cache write failed", "error", err)
	}
}

// Invalidate drops the cached listing.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, catalogCacheKey); err != nil {
		s.logger.Debug("catalog cache invalidation failed", "error", err)
	}
}

// resolve finds the region ref points at. Index refs read the snapshot
// taken by the last List; id refs read the store directly.
func (s *CatalogService) resolve(ctx context.Context, ref RegionRef) (catalogEntry, int, error) {
	if ref.ID != "" {
		entries, err := s.load(ctx)
		if err != nil {
			return catalogEntry{}, -1, err
		}
		for _, e := range entries {
			if e.data.ID == ref.ID {
				return e, s.snapshotIndex(e.data.StoreID), nil
			}
		}
		return catalogEntry{}, -1, fmt.Errorf("%w: %s", domain.ErrRegionNotFound, ref.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.Index < 0 || ref.Index >= len(s.snapshot) {
		return catalogEntry{}, -1, fmt.Errorf("%w: %d of %d", domain.ErrIndexOutOfRange, ref.Index, len(s.snapshot))
	}
	return s.snapshot[ref.Index], ref.Index, nil
}

func (s *CatalogService) snapshotIndex(storeID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.snapshot {
		if e.data.StoreID == storeID {
			return i
		}
	}
	return -1
}

// Delete removes a region from the store. The entry leaves the snapshot so
// later indexes match a caller that dropped it from its own copy.
func (s *CatalogService) Delete(ctx context.Context, ref RegionRef) error {
	entry, idx, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	entry.region.SetDownloadState(false)
	if err := entry.region.Delete(ctx); err != nil {
		return fmt.Errorf("delete region %s: %w", entry.data.ID, err)
	}

	s.mu.Lock()
	if idx >= 0 && idx < len(s.snapshot) && s.snapshot[idx].data.StoreID == entry.data.StoreID {
		s.snapshot = append(s.snapshot[:idx:idx], s.snapshot[idx+1:]...)
	}
	onDeleted := s.onDeleted
	s.mu.Unlock()

	if onDeleted != nil {
		onDeleted(entry.data.StoreID)
	}

	s.Invalidate(ctx)
	s.logger.Info("offline region deleted", "region", entry.data.ID, "ref", ref.String())
	return nil
}

func (s *CatalogService) setOnDeleted(fn func(storeID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDeleted = fn
}

// Navigate moves the camera to frame the whole region: the bounds center at
// the region's minimum zoom.
func (s *CatalogService) Navigate(ctx context.Context, ref RegionRef) (domain.CameraTarget, error) {
	entry, _, err := s.resolve(ctx, ref)
	if err != nil {
		return domain.CameraTarget{}, err
	}
	target := entry.data.Definition.CameraTarget()
	if err := s.surface.MoveCamera(ctx, target); err != nil {
		return domain.CameraTarget{}, fmt.Errorf("move camera: %w", err)
	}
	return target, nil
}

// UpdateMetadata replaces a region's caller metadata. The logical id is
// kept whatever the new metadata carries.
func (s *CatalogService) UpdateMetadata(ctx context.Context, id string, meta map[string]any) (domain.OfflineRegionData, error) {
	entry, idx, err := s.resolve(ctx, RegionRef{ID: id})
	if err != nil {
		return domain.OfflineRegionData{}, err
	}
	blob, err := domain.EncodeMetadata(id, meta)
	if err != nil {
		return domain.OfflineRegionData{}, err
	}
	if err := entry.region.UpdateMetadata(ctx, blob); err != nil {
		return domain.OfflineRegionData{}, fmt.Errorf("update metadata of %s: %w", id, err)
	}
	_, rest, err := domain.DecodeMetadata(blob)
	if err != nil {
		return domain.OfflineRegionData{}, err
	}
	entry.data.Metadata = rest

	s.mu.Lock()
	if idx >= 0 && idx < len(s.snapshot) && s.snapshot[idx].data.StoreID == entry.data.StoreID {
		s.snapshot[idx].data.Metadata = rest
	}
	s.mu.Unlock()

	s.Invalidate(ctx)
	return entry.data, nil
}
