package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/usecases"
)

func bilbaoRequest(id string) domain.DownloadRequest {
	return domain.DownloadRequest{
		ID: id,
		Definition: domain.OfflineRegionDefinition{
			StyleURL:   "mapbox://styles/mapbox/streets-v11",
			Bounds:     domain.NewBounds(domain.GeoPoint{Lat: 43.25, Lon: -2.95}, domain.GeoPoint{Lat: 43.27, Lon: -2.91}),
			MinZoom:    12,
			MaxZoom:    14,
			PixelRatio: 2,
		},
		Metadata: map[string]any{"name": "Bilbao"},
	}
}

func newOffline(t *testing.T) (*usecases.OfflineService, *mockStore, *recordingSink) {
	t.Helper()
	store := &mockStore{}
	sink := &recordingSink{}
	svc, err := usecases.NewOfflineService(store, sink, nil, 6000)
	if err != nil {
		t.Fatalf("new offline service: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, store, sink
}

func TestOfflineService_ProgressThenSingleSuccess(t *testing.T) {
	svc, store, sink := newOffline(t)

	data, err := svc.Download(context.Background(), bilbaoRequest("bilbao"))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if data.ID != "bilbao" {
		t.Errorf("id = %q", data.ID)
	}
	region := store.last()
	if !region.isActive() {
		t.Error("region should be downloading")
	}

	obs := region.obs()
	obs.OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 50, RequiredResourceCount: 200})
	obs.OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 200, RequiredResourceCount: 200, Complete: true})
	obs.OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 200, RequiredResourceCount: 200, Complete: true})
	obs.OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 10, RequiredResourceCount: 200})

	events := sink.all()
	if len(events) != 3 {
		t.Fatalf("expected start, progress, success; got %+v", events)
	}
	if events[0].Status != domain.StatusStart {
		t.Errorf("first event = %s", events[0].Status)
	}
	if events[1].Status != domain.StatusProgress || events[1].Progress == nil || *events[1].Progress != 25 {
		t.Errorf("progress event = %+v", events[1])
	}
	if events[2].Status != domain.StatusSuccess {
		t.Errorf("last event = %s", events[2].Status)
	}
	if region.isActive() {
		t.Error("download state should be inactive after completion")
	}
	if len(svc.Sessions()) != 0 {
		t.Error("terminal session should be released")
	}
}

func TestOfflineService_UnknownTotalReportsZero(t *testing.T) {
	svc, store, sink := newOffline(t)
	if _, err := svc.Download(context.Background(), bilbaoRequest("x")); err != nil {
		t.Fatalf("download: %v", err)
	}
	store.last().obs().OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 3, RequiredResourceCount: -1})

	events := sink.all()
	last := events[len(events)-1]
	if last.Progress == nil || *last.Progress != 0 {
		t.Errorf("progress = %v, want 0", last.Progress)
	}
}

func TestOfflineService_ConcurrentCompletionFiresOnce(t *testing.T) {
	svc, store, sink := newOffline(t)
	if _, err := svc.Download(context.Background(), bilbaoRequest("race")); err != nil {
		t.Fatalf("download: %v", err)
	}
	obs := store.last().obs()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs.OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 1, RequiredResourceCount: 1, Complete: true})
		}()
	}
	wg.Wait()

	if n := sink.count(domain.StatusSuccess); n != 1 {
		t.Errorf("success events = %d, want 1", n)
	}
}

func TestOfflineService_ObserverError(t *testing.T) {
	svc, store, sink := newOffline(t)
	if _, err := svc.Download(context.Background(), bilbaoRequest("err")); err != nil {
		t.Fatalf("download: %v", err)
	}
	region := store.last()
	region.obs().OnError(&domain.DownloadObserverError{Reason: "connection", Message: "timeout"})
	region.obs().OnStatusChanged(domain.RegionStatus{Complete: true})

	events := sink.all()
	last := events[len(events)-1]
	if last.Status != domain.StatusError || last.Code != domain.CodeDownloadError || last.Message != "timeout" {
		t.Errorf("unexpected last event %+v", last)
	}
	if sink.count(domain.StatusSuccess) != 0 {
		t.Error("completion after error must be ignored")
	}
	if region.isActive() {
		t.Error("download state should be inactive")
	}
}

func TestOfflineService_TileCountLimitDeletesRegion(t *testing.T) {
	svc, store, sink := newOffline(t)
	if _, err := svc.Download(context.Background(), bilbaoRequest("big")); err != nil {
		t.Fatalf("download: %v", err)
	}
	region := store.last()
	region.obs().OnTileCountLimitExceeded(6000)

	events := sink.all()
	last := events[len(events)-1]
	if last.Status != domain.StatusError || last.Code != domain.CodeTileCountLimitExceeded {
		t.Errorf("unexpected last event %+v", last)
	}
	if !region.deleted {
		t.Error("partial region should be deleted")
	}
	if regions, _ := store.ListRegions(context.Background()); len(regions) != 0 {
		t.Errorf("store still has %d regions", len(regions))
	}
}

func TestOfflineService_CreateFailure(t *testing.T) {
	svc, store, sink := newOffline(t)
	store.createFn = func(domain.OfflineRegionDefinition, []byte) error { return errors.New("invalid definition") }

	_, err := svc.Download(context.Background(), bilbaoRequest("bad"))
	var ce *domain.CreateRegionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CreateRegionError, got %v", err)
	}
	events := sink.all()
	if len(events) != 1 || events[0].Status != domain.StatusError || events[0].Code != domain.CodeInvalidRegionDefinition {
		t.Errorf("expected one error event, got %+v", events)
	}
}

func TestOfflineService_InvalidDefinitionTouchesNothing(t *testing.T) {
	svc, store, sink := newOffline(t)
	req := bilbaoRequest("inv")
	req.Definition.MinZoom = 18

	_, err := svc.Download(context.Background(), req)
	var de *domain.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if len(store.regions) != 0 || len(sink.all()) != 0 {
		t.Error("invalid definition must not reach the store or the stream")
	}
}

func TestOfflineService_CancelThenCompletionIgnored(t *testing.T) {
	svc, store, sink := newOffline(t)
	if _, err := svc.Download(context.Background(), bilbaoRequest("c")); err != nil {
		t.Fatalf("download: %v", err)
	}
	region := store.last()

	if err := svc.Cancel(context.Background(), ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if region.isActive() {
		t.Error("cancel should deactivate the download")
	}
	region.obs().OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 5, RequiredResourceCount: 5, Complete: true})
	if sink.count(domain.StatusSuccess) != 0 {
		t.Error("completion after cancel must be ignored")
	}

	if err := svc.Cancel(context.Background(), ""); !errors.Is(err, domain.ErrNoActiveDownload) {
		t.Errorf("expected ErrNoActiveDownload, got %v", err)
	}
}

func TestOfflineService_CancelByID(t *testing.T) {
	svc, _, _ := newOffline(t)
	_, _ = svc.Download(context.Background(), bilbaoRequest("first"))
	_, _ = svc.Download(context.Background(), bilbaoRequest("second"))

	if err := svc.Cancel(context.Background(), "first"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	sessions := svc.Sessions()
	if len(sessions) != 1 || sessions[0].RegionID != "second" {
		t.Errorf("remaining sessions = %+v", sessions)
	}
}

func TestOfflineService_CallbacksAfterCloseIgnored(t *testing.T) {
	store := &mockStore{}
	sink := &recordingSink{}
	svc, err := usecases.NewOfflineService(store, sink, nil, 100)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, _ = svc.Download(context.Background(), bilbaoRequest("gone"))
	before := len(sink.all())

	svc.Close()
	store.last().obs().OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 1, RequiredResourceCount: 2})
	if len(sink.all()) != before {
		t.Error("callbacks into a closed service must be ignored")
	}
}

func TestOfflineService_GeneratesIDAndRoundTripsMetadata(t *testing.T) {
	svc, store, _ := newOffline(t)
	data, err := svc.Download(context.Background(), bilbaoRequest(""))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if data.ID == "" {
		t.Fatal("an id should be generated")
	}
	id, rest, err := domain.DecodeMetadata(store.last().Metadata())
	if err != nil {
		t.Fatalf("decode stored metadata: %v", err)
	}
	if id != data.ID || rest["name"] != "Bilbao" {
		t.Errorf("stored id=%q rest=%v", id, rest)
	}
}

func TestOfflineService_SetTileLimit(t *testing.T) {
	svc, store, _ := newOffline(t)

	tests := []struct {
		limit int64
		ok    bool
	}{
		{1, true},
		{6000, true},
		{0, false},
		{6001, false},
		{-5, false},
	}
	for _, tt := range tests {
		before := svc.TileLimit()
		err := svc.SetTileLimit(tt.limit)
		if tt.ok {
			if err != nil {
				t.Errorf("limit %d rejected: %v", tt.limit, err)
			}
			if store.limit != tt.limit {
				t.Errorf("store limit = %d, want %d", store.limit, tt.limit)
			}
			continue
		}
		var tle *domain.TileLimitExceededError
		if !errors.As(err, &tle) {
			t.Errorf("limit %d: expected TileLimitExceededError, got %v", tt.limit, err)
		}
		if svc.TileLimit() != before || store.limit != before {
			t.Errorf("limit %d: prior limit changed to %d", tt.limit, store.limit)
		}
	}
}

func TestNewOfflineService_RejectsBadLimit(t *testing.T) {
	if _, err := usecases.NewOfflineService(&mockStore{}, &recordingSink{}, nil, 0); err == nil {
		t.Error("expected error for zero tile limit")
	}
}

func TestOfflineService_CatalogDeleteReleasesSession(t *testing.T) {
	store := &mockStore{}
	sink := &recordingSink{}
	catalog := usecases.NewCatalogService(store, &mockSurface{}, nil)
	svc, err := usecases.NewOfflineService(store, sink, catalog, 6000)
	if err != nil {
		t.Fatalf("new offline service: %v", err)
	}
	t.Cleanup(svc.Close)
	ctx := context.Background()

	if _, err := svc.Download(ctx, bilbaoRequest("bilbao")); err != nil {
		t.Fatalf("download: %v", err)
	}
	region := store.last()
	if _, err := catalog.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := catalog.Delete(ctx, usecases.RegionRef{Index: 0}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := svc.Sessions(); len(got) != 0 {
		t.Errorf("sessions after delete = %+v", got)
	}
	if region.isActive() {
		t.Error("deleted region still downloading")
	}
	if err := svc.Cancel(ctx, ""); !errors.Is(err, domain.ErrNoActiveDownload) {
		t.Errorf("cancel after delete = %v, want ErrNoActiveDownload", err)
	}

	// the store loop may still report after the delete
	region.obs().OnStatusChanged(domain.RegionStatus{CompletedResourceCount: 1, RequiredResourceCount: 1, Complete: true})
	if n := sink.count(domain.StatusSuccess); n != 0 {
		t.Errorf("success events after delete = %d", n)
	}
}
