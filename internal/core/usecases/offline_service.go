package usecases

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// SessionInfo is a snapshot of one download session.
type SessionInfo struct {
	RegionID string               `json:"id"`
	StoreID  int64                `json:"storeId"`
	State    domain.DownloadState `json:"-"`
	StateTag string               `json:"state"`
	Progress float64              `json:"progress"`
}

// OfflineService drives offline region downloads. Store callbacks arrive on
// the store's goroutines; every session transition is taken under the
// session lock and guarded by a resolve-once flag.
type OfflineService struct {
	store   ports.OfflineStore
	events  ports.EventSink
	catalog *CatalogService
	logger  *slog.Logger
	newID   func() string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	sessions  map[int64]*downloadSession
	current   *downloadSession
	tileLimit int64
}

// NewOfflineService creates an OfflineService. catalog may be nil; when set
// its cached listing is invalidated whenever the set of regions changes, and
// deleting a region through it cancels that region's session.
func NewOfflineService(store ports.OfflineStore, events ports.EventSink, catalog *CatalogService, tileLimit int64) (*OfflineService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &OfflineService{
		store:    store,
		events:   events,
		catalog:  catalog,
		logger:   slog.Default().With("component", "offline"),
		newID:    uuid.NewString,
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[int64]*downloadSession{},
	}
	if err := s.SetTileLimit(tileLimit); err != nil {
		cancel()
		return nil, err
	}
	if catalog != nil {
		catalog.setOnDeleted(s.regionDeleted)
	}
	return s, nil
}

// Download creates the region in the store and starts downloading it.
// Progress and the terminal outcome are reported on the event stream. A
// creation failure is returned and also emitted as an error event.
func (s *OfflineService) Download(ctx context.Context, req domain.DownloadRequest) (domain.OfflineRegionData, error) {
	if err := req.Definition.Validate(); err != nil {
		return domain.OfflineRegionData{}, err
	}
	id := req.ID
	if id == "" {
		id = s.newID()
	}
	meta, err := domain.EncodeMetadata(id, req.Metadata)
	if err != nil {
		return domain.OfflineRegionData{}, err
	}

	region, err := s.store.CreateRegion(ctx, req.Definition, meta)
	if err != nil {
		s.emit(domain.ErrorEvent(id, domain.CodeInvalidRegionDefinition, err.Error()))
		return domain.OfflineRegionData{}, &domain.CreateRegionError{Err: err}
	}
	s.invalidateCatalog()

	sess := &downloadSession{svc: s, region: region, id: id}
	s.mu.Lock()
	s.sessions[region.ID()] = sess
	s.current = sess
	s.mu.Unlock()

	region.SetObserver(sess)
	sess.start()

	s.logger.Info("offline download started", "region", id, "store_id", region.ID(),
		"min_zoom", req.Definition.MinZoom, "max_zoom", req.Definition.MaxZoom)

	rest := make(map[string]any, len(req.Metadata))
	for k, v := range req.Metadata {
		if k != domain.MetadataIDKey {
			rest[k] = v
		}
	}
	return domain.OfflineRegionData{
		ID:         id,
		StoreID:    region.ID(),
		Definition: region.Definition(),
		Metadata:   rest,
	}, nil
}

// Cancel stops a download. An empty regionID selects the most recently
// started session.
func (s *OfflineService) Cancel(ctx context.Context, regionID string) error {
	s.mu.Lock()
	sess := s.current
	if regionID != "" {
		sess = nil
		for _, candidate := range s.sessions {
			if candidate.id == regionID {
				sess = candidate
				break
			}
		}
	}
	s.mu.Unlock()

	if sess == nil || !sess.cancel() {
		return domain.ErrNoActiveDownload
	}
	s.logger.Info("offline download cancelled", "region", sess.id)
	return nil
}

// SetTileLimit validates limit against (0, MaxTileCountLimit] and only then
// applies it to the store.
func (s *OfflineService) SetTileLimit(limit int64) error {
	if limit <= 0 || limit > domain.MaxTileCountLimit {
		return &domain.TileLimitExceededError{Limit: limit}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetTileCountLimit(limit)
	s.tileLimit = limit
	return nil
}

// TileLimit returns the limit currently applied to the store.
func (s *OfflineService) TileLimit() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tileLimit
}

// Sessions returns a snapshot of the sessions still in flight.
func (s *OfflineService) Sessions() []SessionInfo {
	s.mu.Lock()
	list := make([]*downloadSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()

	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, sess.info())
	}
	return out
}

// Close marks every session dead. Callbacks arriving afterwards are ignored.
func (s *OfflineService) Close() {
	s.cancel()
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = map[int64]*downloadSession{}
	s.current = nil
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.region.SetDownloadState(false)
	}
}

// regionDeleted resolves the session of a region removed from the store
// while it was downloading. No event is emitted, as with Cancel.
func (s *OfflineService) regionDeleted(storeID int64) {
	s.mu.Lock()
	sess := s.sessions[storeID]
	s.mu.Unlock()
	if sess != nil && sess.cancel() {
		s.logger.Info("offline download dropped with its region", "region", sess.id, "store_id", storeID)
	}
}

func (s *OfflineService) live() bool { return s.ctx.Err() == nil }

func (s *OfflineService) finished(sess *downloadSession) {
	s.mu.Lock()
	if cur, ok := s.sessions[sess.region.ID()]; ok && cur == sess {
		delete(s.sessions, sess.region.ID())
	}
	if s.current == sess {
		s.current = nil
	}
	s.mu.Unlock()
}

func (s *OfflineService) emit(event domain.DownloadEvent) {
	if err := s.events.Send(s.ctx, event); err != nil {
		s.logger.Debug("event not delivered", "status", event.Status, "region", event.RegionID, "error", err)
	}
}

func (s *OfflineService) invalidateCatalog() {
	if s.catalog != nil {
		s.catalog.Invalidate(s.ctx)
	}
}

// downloadSession observes one region download.
type downloadSession struct {
	svc    *OfflineService
	region ports.OfflineRegion
	id     string

	resolved atomic.Bool
	mu       sync.Mutex
	state    domain.DownloadState
	progress float64
}

func (d *downloadSession) start() {
	d.mu.Lock()
	d.state = domain.DownloadActive
	d.svc.emit(domain.StartEvent(d.id))
	d.mu.Unlock()
	d.region.SetDownloadState(true)
}

// resolve moves the session to a terminal state. It reports false when
// the session was already terminal. Callers hold d.mu.
func (d *downloadSession) resolve(state domain.DownloadState) bool {
	if !d.resolved.CompareAndSwap(false, true) {
		return false
	}
	d.state = state
	return true
}

func (d *downloadSession) info() SessionInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return SessionInfo{
		RegionID: d.id,
		StoreID:  d.region.ID(),
		State:    d.state,
		StateTag: d.state.String(),
		Progress: d.progress,
	}
}

func (d *downloadSession) ignored(what string) bool {
	if !d.svc.live() {
		return true
	}
	if d.resolved.Load() {
		d.svc.logger.Debug("callback after terminal state ignored", "region", d.id, "callback", what)
		return true
	}
	return false
}

// OnStatusChanged implements ports.RegionObserver.
func (d *downloadSession) OnStatusChanged(status domain.RegionStatus) {
	if status.Complete {
		d.region.SetDownloadState(false)
	}
	if d.ignored("status") {
		return
	}

	d.mu.Lock()
	if status.Complete {
		if !d.resolve(domain.DownloadComplete) {
			d.mu.Unlock()
			return
		}
		d.progress = 100
		d.svc.emit(domain.SuccessEvent(d.id))
		d.mu.Unlock()
		d.svc.finished(d)
		d.svc.invalidateCatalog()
		d.svc.logger.Info("offline download complete", "region", d.id)
		return
	}
	if d.resolved.Load() {
		d.mu.Unlock()
		return
	}
	d.progress = status.Percent()
	d.svc.emit(domain.ProgressEvent(d.id, d.progress))
	d.mu.Unlock()
}

// OnError implements ports.RegionObserver.
func (d *downloadSession) OnError(err *domain.DownloadObserverError) {
	d.region.SetDownloadState(false)
	if d.ignored("error") {
		return
	}

	d.mu.Lock()
	if !d.resolve(domain.DownloadErrored) {
		d.mu.Unlock()
		return
	}
	d.svc.emit(domain.ErrorEvent(d.id, domain.CodeDownloadError, err.Message))
	d.mu.Unlock()

	d.svc.finished(d)
	d.svc.logger.Warn("offline download failed", "region", d.id, "reason", err.Reason, "message", err.Message)
}

// OnTileCountLimitExceeded implements ports.RegionObserver. The partially
// downloaded region is deleted from the store.
func (d *downloadSession) OnTileCountLimitExceeded(limit int64) {
	d.region.SetDownloadState(false)
	if d.ignored("tile_limit") {
		return
	}

	d.mu.Lock()
	if !d.resolve(domain.DownloadErrored) {
		d.mu.Unlock()
		return
	}
	limitErr := &domain.TileCountLimitExceededError{Limit: limit}
	d.svc.emit(domain.ErrorEvent(d.id, domain.CodeTileCountLimitExceeded, limitErr.Error()))
	d.mu.Unlock()

	d.svc.finished(d)
	d.svc.logger.Warn("offline download exceeded tile limit", "region", d.id, "limit", limit)
	if err := d.region.Delete(d.svc.ctx); err != nil {
		d.svc.logger.Error("delete partial region", "region", d.id, "error", err)
	}
	d.svc.invalidateCatalog()
}

// cancel stops the download and reports whether this call resolved it.
func (d *downloadSession) cancel() bool {
	d.mu.Lock()
	ok := d.resolve(domain.DownloadCancelled)
	d.mu.Unlock()
	if !ok {
		return false
	}
	d.region.SetDownloadState(false)
	d.svc.finished(d)
	return true
}

var _ ports.RegionObserver = (*downloadSession)(nil)
