// Package offlinestore downloads offline region tile pyramids and persists
// the region records through a RegionRepository.
package offlinestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
	"github.com/samirrijal/mapsync/internal/pkg/geospatial"
)

// MaxZoom is the deepest zoom level the store downloads.
const MaxZoom = 22

// Error reasons reported through RegionObserver.OnError.
const (
	ReasonConnection = "connection"
	ReasonServer     = "server"
	ReasonOther      = "other"
)

// Options tunes the download loop.
type Options struct {
	// Concurrency bounds in-flight tile fetches per region.
	Concurrency int
	// RatePerSecond caps tile fetches across all regions. Zero means unlimited.
	RatePerSecond float64
	// ProgressEvery reports progress after every n completed tiles.
	ProgressEvery int64
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 1
	}
	return o
}

// Store implements ports.OfflineStore.
type Store struct {
	repo    ports.RegionRepository
	fetcher ports.TileFetcher
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger

	tileLimit atomic.Int64

	mu      sync.Mutex
	regions map[int64]*Region
}

// New creates a Store. The tile count limit starts at domain.MaxTileCountLimit.
func New(repo ports.RegionRepository, fetcher ports.TileFetcher, opts Options) *Store {
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	s := &Store{
		repo:    repo,
		fetcher: fetcher,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Concurrency),
		logger:  slog.Default().With("component", "offlinestore"),
		regions: map[int64]*Region{},
	}
	s.tileLimit.Store(domain.MaxTileCountLimit)
	return s
}

// CreateRegion implements ports.OfflineStore. The download does not start
// until SetDownloadState(true).
func (s *Store) CreateRegion(ctx context.Context, def domain.OfflineRegionDefinition, metadata []byte) (ports.OfflineRegion, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if def.MaxZoom > MaxZoom {
		return nil, &domain.DecodeError{Key: "definition", Reason: fmt.Sprintf("maxZoom %.2f exceeds %d", def.MaxZoom, MaxZoom)}
	}
	id, err := s.repo.Insert(ctx, def, metadata)
	if err != nil {
		return nil, fmt.Errorf("insert region: %w", err)
	}
	return s.track(ports.StoredRegion{ID: id, Definition: def, Metadata: clone(metadata)}), nil
}

// ListRegions implements ports.OfflineStore.
func (s *Store) ListRegions(ctx context.Context) ([]ports.OfflineRegion, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	out := make([]ports.OfflineRegion, len(records))
	for i, rec := range records {
		out[i] = s.track(rec)
	}
	return out, nil
}

// SetTileCountLimit implements ports.OfflineStore. It applies to downloads
// started afterwards.
func (s *Store) SetTileCountLimit(limit int64) {
	s.tileLimit.Store(limit)
}

// TileCountLimit returns the current limit.
func (s *Store) TileCountLimit() int64 { return s.tileLimit.Load() }

// track returns the live Region for rec, creating it on first sight so
// that every listing hands out the same object for the same record.
func (s *Store) track(rec ports.StoredRegion) *Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.regions[rec.ID]; ok {
		r.refresh(rec)
		return r
	}
	r := &Region{store: s, rec: rec}
	s.regions[rec.ID] = r
	return r
}

func (s *Store) forget(id int64) {
	s.mu.Lock()
	delete(s.regions, id)
	s.mu.Unlock()
}

// Region implements ports.OfflineRegion.
type Region struct {
	store *Store

	mu       sync.Mutex
	rec      ports.StoredRegion
	observer ports.RegionObserver
	run      *download
	deleted  bool
}

type download struct {
	cancel context.CancelFunc
}

// ID implements ports.OfflineRegion.
func (r *Region) ID() int64 { return r.rec.ID }

// Definition implements ports.OfflineRegion.
func (r *Region) Definition() domain.OfflineRegionDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Definition
}

// Metadata implements ports.OfflineRegion.
func (r *Region) Metadata() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.rec.Metadata)
}

// Complete reports whether every tile has been downloaded.
func (r *Region) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Complete
}

// Downloading reports whether a download loop is running.
func (r *Region) Downloading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run != nil
}

func (r *Region) refresh(rec ports.StoredRegion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Metadata = clone(rec.Metadata)
	r.rec.Complete = r.rec.Complete || rec.Complete
}

// SetObserver implements ports.OfflineRegion.
func (r *Region) SetObserver(obs ports.RegionObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = obs
}

// SetDownloadState implements ports.OfflineRegion. Stopping never waits
// for the loop to exit, so observers may call it from their callbacks.
func (r *Region) SetDownloadState(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !active {
		if r.run != nil {
			r.run.cancel()
			r.run = nil
		}
		return
	}
	if r.run != nil || r.deleted {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &download{cancel: cancel}
	r.run = d
	go r.download(ctx, d, r.rec)
}

// UpdateMetadata implements ports.OfflineRegion.
func (r *Region) UpdateMetadata(ctx context.Context, metadata []byte) error {
	if err := r.store.repo.UpdateMetadata(ctx, r.rec.ID, metadata); err != nil {
		return fmt.Errorf("update region %d metadata: %w", r.rec.ID, err)
	}
	r.mu.Lock()
	r.rec.Metadata = clone(metadata)
	r.mu.Unlock()
	return nil
}

// Delete implements ports.OfflineRegion. A running download is stopped.
func (r *Region) Delete(ctx context.Context) error {
	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return domain.ErrRegionNotFound
	}
	r.deleted = true
	if r.run != nil {
		r.run.cancel()
		r.run = nil
	}
	r.mu.Unlock()

	r.store.forget(r.rec.ID)
	if err := r.store.repo.Delete(ctx, r.rec.ID); err != nil {
		return fmt.Errorf("delete region %d: %w", r.rec.ID, err)
	}
	return nil
}

func (r *Region) currentObserver() ports.RegionObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observer
}

func (r *Region) notify(fn func(ports.RegionObserver)) {
	if obs := r.currentObserver(); obs != nil {
		fn(obs)
	}
}

func (r *Region) finish(d *download) {
	r.mu.Lock()
	if r.run == d {
		r.run = nil
	}
	r.mu.Unlock()
	d.cancel()
}

// download walks the tile pyramid. Observer callbacks are made without
// holding r.mu.
func (r *Region) download(ctx context.Context, d *download, rec ports.StoredRegion) {
	defer r.finish(d)
	s := r.store
	def := rec.Definition
	bound := def.Bounds.Orb()
	required := geospatial.CountTiles(bound, def.MinZoom, def.MaxZoom)
	logger := s.logger.With("store_id", rec.ID)

	if rec.Complete {
		r.notify(func(o ports.RegionObserver) {
			o.OnStatusChanged(domain.RegionStatus{CompletedResourceCount: required, RequiredResourceCount: required, Complete: true})
		})
		return
	}
	if limit := s.tileLimit.Load(); limit > 0 && required > limit {
		logger.Warn("region exceeds tile count limit", "required", required, "limit", limit)
		r.notify(func(o ports.RegionObserver) { o.OnTileCountLimitExceeded(limit) })
		return
	}
	r.notify(func(o ports.RegionObserver) {
		o.OnStatusChanged(domain.RegionStatus{RequiredResourceCount: required})
	})

	var (
		progressMu sync.Mutex
		completed  int64
		size       int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	geospatial.EachTile(bound, def.MinZoom, def.MaxZoom, func(tile maptile.Tile) bool {
		if err := s.limiter.Wait(gctx); err != nil {
			return false
		}
		g.Go(func() error {
			n, err := s.fetcher.Fetch(gctx, def.StyleURL, tile, def.PixelRatio)
			if err != nil {
				return err
			}
			progressMu.Lock()
			defer progressMu.Unlock()
			completed++
			size += int64(n)
			if completed%s.opts.ProgressEvery == 0 && completed < required && gctx.Err() == nil {
				status := domain.RegionStatus{CompletedResourceCount: completed, RequiredResourceCount: required, CompletedResourceSize: size}
				r.notify(func(o ports.RegionObserver) { o.OnStatusChanged(status) })
			}
			return nil
		})
		return true
	})
	err := g.Wait()

	if ctx.Err() != nil {
		logger.Debug("download stopped", "completed", completed, "required", required)
		return
	}
	if err != nil {
		logger.Warn("tile download failed", "error", err)
		r.notify(func(o ports.RegionObserver) {
			o.OnError(&domain.DownloadObserverError{Reason: reasonFor(err), Message: err.Error()})
		})
		return
	}
	if err := s.repo.MarkComplete(ctx, rec.ID); err != nil {
		logger.Error("mark region complete", "error", err)
		r.notify(func(o ports.RegionObserver) {
			o.OnError(&domain.DownloadObserverError{Reason: ReasonOther, Message: err.Error()})
		})
		return
	}
	r.mu.Lock()
	r.rec.Complete = true
	r.mu.Unlock()

	logger.Info("region downloaded", "tiles", required, "bytes", size)
	r.notify(func(o ports.RegionObserver) {
		o.OnStatusChanged(domain.RegionStatus{
			CompletedResourceCount: required,
			RequiredResourceCount:  required,
			CompletedResourceSize:  size,
			Complete:               true,
		})
	})
}

func reasonFor(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, errConnection), errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		return ReasonConnection
	case errors.Is(err, errServerStatus):
		return ReasonServer
	default:
		return ReasonOther
	}
}

var (
	_ ports.OfflineStore  = (*Store)(nil)
	_ ports.OfflineRegion = (*Region)(nil)
)
