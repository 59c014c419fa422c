package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/usecases"
)

func seedStore(t *testing.T, ids ...string) *mockStore {
	t.Helper()
	store := &mockStore{}
	for i, id := range ids {
		meta, err := domain.EncodeMetadata(id, map[string]any{"n": i})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		store.add(domain.OfflineRegionDefinition{
			StyleURL:   "style-" + id,
			Bounds:     domain.NewBounds(domain.GeoPoint{Lat: float64(i), Lon: 0}, domain.GeoPoint{Lat: float64(i) + 2, Lon: 4}),
			MinZoom:    float64(5 + i),
			MaxZoom:    15,
			PixelRatio: 1,
		}, meta)
	}
	return store
}

func TestCatalogService_ListSkipsUndecodable(t *testing.T) {
	store := seedStore(t, "a", "b")
	store.add(domain.OfflineRegionDefinition{StyleURL: "x"}, []byte(`{"no":"id"}`))
	svc := usecases.NewCatalogService(store, &mockSurface{}, nil)

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(list))
	}
	if list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("ids = %s, %s", list[0].ID, list[1].ID)
	}
	if _, ok := list[0].Metadata[domain.MetadataIDKey]; ok {
		t.Error("id must be stripped from metadata")
	}
}

func TestCatalogService_DeleteByIndex(t *testing.T) {
	store := seedStore(t, "a", "b", "c")
	svc := usecases.NewCatalogService(store, &mockSurface{}, nil)
	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}

	if err := svc.Delete(context.Background(), usecases.RegionRef{Index: 1}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ := svc.List(context.Background())
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "c" {
		t.Errorf("unexpected listing %+v", list)
	}

	if err := svc.Delete(context.Background(), usecases.RegionRef{Index: 5}); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestCatalogService_IndexNeedsListing(t *testing.T) {
	svc := usecases.NewCatalogService(seedStore(t, "a"), &mockSurface{}, nil)
	if err := svc.Delete(context.Background(), usecases.RegionRef{Index: 0}); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange before any listing, got %v", err)
	}
}

func TestCatalogService_DeleteByID(t *testing.T) {
	store := seedStore(t, "a", "b")
	svc := usecases.NewCatalogService(store, &mockSurface{}, nil)

	if err := svc.Delete(context.Background(), usecases.RegionRef{ID: "b"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(context.Background(), usecases.RegionRef{ID: "b"}); !errors.Is(err, domain.ErrRegionNotFound) {
		t.Errorf("expected ErrRegionNotFound, got %v", err)
	}
}

func TestCatalogService_NavigateUsesCenterAndMinZoom(t *testing.T) {
	surface := &mockSurface{}
	svc := usecases.NewCatalogService(seedStore(t, "a", "b"), surface, nil)
	_, _ = svc.List(context.Background())

	target, err := svc.Navigate(context.Background(), usecases.RegionRef{Index: 1})
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if surface.camera == nil {
		t.Fatal("camera was not moved")
	}
	if target.Zoom != 6 {
		t.Errorf("zoom = %v, want min zoom 6", target.Zoom)
	}
	if target.Center.Lat != 2 || target.Center.Lon != 2 {
		t.Errorf("center = %+v, want {2 2}", target.Center)
	}
	if target.StyleURL != "style-b" {
		t.Errorf("style = %q", target.StyleURL)
	}
}

func TestCatalogService_UpdateMetadataKeepsID(t *testing.T) {
	store := seedStore(t, "keep")
	svc := usecases.NewCatalogService(store, &mockSurface{}, nil)

	data, err := svc.UpdateMetadata(context.Background(), "keep", map[string]any{"id": "hijack", "label": "new"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if data.ID != "keep" || data.Metadata["label"] != "new" {
		t.Errorf("data = %+v", data)
	}
	id, _, err := domain.DecodeMetadata(store.last().Metadata())
	if err != nil || id != "keep" {
		t.Errorf("stored id = %q, %v", id, err)
	}
}

func TestCatalogService_CachedListing(t *testing.T) {
	store := seedStore(t, "a")
	cache := newMockCache()
	svc := usecases.NewCatalogService(store, &mockSurface{}, cache)

	list, err := svc.Cached(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("cached: %v, %v", list, err)
	}
	if !cache.has("mapsync:offline:regions") {
		t.Fatal("listing should be cached")
	}

	svc.Invalidate(context.Background())
	if cache.has("mapsync:offline:regions") {
		t.Error("invalidate should drop the cached listing")
	}
}

func TestEventStream_SingleSubscriber(t *testing.T) {
	stream := usecases.NewEventStream()
	ctx := context.Background()

	if err := stream.Send(ctx, domain.StartEvent("early")); !errors.Is(err, usecases.ErrNoSubscriber) {
		t.Errorf("expected ErrNoSubscriber, got %v", err)
	}

	first := &recordingSink{}
	detachFirst := stream.Attach(first)
	_ = stream.Send(ctx, domain.StartEvent("a"))

	second := &recordingSink{}
	detachSecond := stream.Attach(second)
	_ = stream.Send(ctx, domain.SuccessEvent("a"))

	if len(first.all()) != 1 || len(second.all()) != 1 {
		t.Errorf("first=%d second=%d", len(first.all()), len(second.all()))
	}

	detachFirst()
	if !stream.Attached() {
		t.Error("stale detach must not remove the newer subscriber")
	}
	detachSecond()
	if stream.Attached() {
		t.Error("subscriber should be detached")
	}
}
