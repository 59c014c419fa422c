package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// --- Mock MapSurface ---

type mockOverlay struct {
	handle domain.OverlayHandle
	props  map[string]any
}

func (o *mockOverlay) Handle() domain.OverlayHandle { return o.handle }

func (o *mockOverlay) SetProperty(name string, v any) error {
	o.props[name] = v
	return nil
}

func (o *mockOverlay) Geometry() orb.Geometry {
	g, _ := o.props[domain.GeometryKey].(orb.Geometry)
	return g
}

type mockSurface struct {
	mu       sync.Mutex
	next     int
	createFn func(kind domain.OverlayKind, opts []domain.OverlayOptions) ([]ports.Overlay, error)
	tap      func(domain.OverlayKind, domain.OverlayHandle) bool
	camera   *domain.CameraTarget

	createCalls int
	deleteCalls int
}

func (m *mockSurface) CreateOverlays(ctx context.Context, kind domain.OverlayKind, opts []domain.OverlayOptions) ([]ports.Overlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(kind, opts)
	}
	out := make([]ports.Overlay, len(opts))
	for i, o := range opts {
		m.next++
		props := map[string]any{}
		for _, n := range o.Names() {
			props[n], _ = o.Get(n)
		}
		out[i] = &mockOverlay{handle: domain.OverlayHandle(fmt.Sprint(m.next)), props: props}
	}
	return out, nil
}

func (m *mockSurface) DeleteOverlays(ctx context.Context, kind domain.OverlayKind, overlays []ports.Overlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	return nil
}

func (m *mockSurface) UpdateOverlay(ctx context.Context, kind domain.OverlayKind, overlay ports.Overlay) error {
	return nil
}

func (m *mockSurface) MoveCamera(ctx context.Context, target domain.CameraTarget) error {
	m.camera = &target
	return nil
}

func (m *mockSurface) SetTapHandler(fn func(domain.OverlayKind, domain.OverlayHandle) bool) {
	m.tap = fn
}

type tapRecorder struct {
	mu   sync.Mutex
	taps []string
}

func (r *tapRecorder) OnOverlayTap(kind domain.OverlayKind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taps = append(r.taps, string(kind)+"#"+id)
}

// --- Mock offline store ---

type mockRegion struct {
	mu       sync.Mutex
	id       int64
	def      domain.OfflineRegionDefinition
	meta     []byte
	observer ports.RegionObserver
	active   bool
	deleted  bool
	store    *mockStore
}

func (r *mockRegion) ID() int64                                  { return r.id }
func (r *mockRegion) Definition() domain.OfflineRegionDefinition { return r.def }

func (r *mockRegion) Metadata() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

func (r *mockRegion) SetObserver(obs ports.RegionObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = obs
}

func (r *mockRegion) SetDownloadState(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
}

func (r *mockRegion) UpdateMetadata(ctx context.Context, metadata []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta = metadata
	return nil
}

func (r *mockRegion) Delete(ctx context.Context) error {
	r.mu.Lock()
	r.deleted = true
	r.mu.Unlock()
	r.store.remove(r.id)
	return nil
}

func (r *mockRegion) isActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *mockRegion) obs() ports.RegionObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observer
}

type mockStore struct {
	mu       sync.Mutex
	next     int64
	regions  []*mockRegion
	limit    int64
	createFn func(def domain.OfflineRegionDefinition, meta []byte) error
}

func (s *mockStore) CreateRegion(ctx context.Context, def domain.OfflineRegionDefinition, meta []byte) (ports.OfflineRegion, error) {
	if s.createFn != nil {
		if err := s.createFn(def, meta); err != nil {
			return nil, err
		}
	}
	return s.add(def, meta), nil
}

func (s *mockStore) add(def domain.OfflineRegionDefinition, meta []byte) *mockRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	r := &mockRegion{id: s.next, def: def, meta: meta, store: s}
	s.regions = append(s.regions, r)
	return r
}

func (s *mockStore) ListRegions(ctx context.Context) ([]ports.OfflineRegion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.OfflineRegion, len(s.regions))
	for i, r := range s.regions {
		out[i] = r
	}
	return out, nil
}

func (s *mockStore) SetTileCountLimit(limit int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
}

func (s *mockStore) remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.regions {
		if r.id == id {
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			return
		}
	}
}

func (s *mockStore) last() *mockRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regions[len(s.regions)-1]
}

// --- Recording event sink ---

type recordingSink struct {
	mu     sync.Mutex
	events []domain.DownloadEvent
}

func (s *recordingSink) Send(ctx context.Context, e domain.DownloadEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) all() []domain.DownloadEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DownloadEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) count(status domain.DownloadStatus) int {
	n := 0
	for _, e := range s.all() {
		if e.Status == status {
			n++
		}
	}
	return n
}

// --- Mock cache ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mockCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}
