package domain_test

import (
	"errors"
	"testing"

	"github.com/samirrijal/mapsync/internal/core/domain"
)

func TestNewBounds_Normalizes(t *testing.T) {
	b := domain.NewBounds(
		domain.GeoPoint{Lat: 43.30, Lon: -2.90},
		domain.GeoPoint{Lat: 43.20, Lon: -3.00},
	)
	if b.MinLat != 43.20 || b.MinLon != -3.00 {
		t.Errorf("south-west = (%v, %v), want (43.2, -3)", b.MinLat, b.MinLon)
	}
	if b.MaxLat != 43.30 || b.MaxLon != -2.90 {
		t.Errorf("north-east = (%v, %v), want (43.3, -2.9)", b.MaxLat, b.MaxLon)
	}
}

func TestBounds_Center(t *testing.T) {
	b := domain.NewBounds(domain.GeoPoint{Lat: 10, Lon: 20}, domain.GeoPoint{Lat: 20, Lon: 40})
	c := b.Center()
	if c.Lat != 15 || c.Lon != 30 {
		t.Errorf("center = %+v, want {15 30}", c)
	}
}

func TestRegionStatus_Percent(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.RegionStatus
		expected float64
	}{
		{"unknown total", domain.RegionStatus{CompletedResourceCount: 10, RequiredResourceCount: -1}, 0},
		{"zero total", domain.RegionStatus{CompletedResourceCount: 0, RequiredResourceCount: 0}, 0},
		{"quarter", domain.RegionStatus{CompletedResourceCount: 50, RequiredResourceCount: 200}, 25},
		{"done", domain.RegionStatus{CompletedResourceCount: 200, RequiredResourceCount: 200}, 100},
		{"overshoot", domain.RegionStatus{CompletedResourceCount: 250, RequiredResourceCount: 200}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Percent(); got != tt.expected {
				t.Errorf("Percent() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMetadata_RoundTrip(t *testing.T) {
	blob, err := domain.EncodeMetadata("bilbao-centre", map[string]any{"name": "Casco Viejo"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	id, rest, err := domain.DecodeMetadata(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != "bilbao-centre" {
		t.Errorf("id = %q", id)
	}
	if _, ok := rest[domain.MetadataIDKey]; ok {
		t.Error("id should be stripped from remaining metadata")
	}
	if rest["name"] != "Casco Viejo" {
		t.Errorf("name = %v", rest["name"])
	}
}

func TestMetadata_CallerIDIsOverwritten(t *testing.T) {
	blob, err := domain.EncodeMetadata("real", map[string]any{"id": "spoofed"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	id, _, err := domain.DecodeMetadata(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != "real" {
		t.Errorf("id = %q, want real", id)
	}
}

func TestDecodeMetadata_RejectsMissingID(t *testing.T) {
	for _, blob := range []string{`{"name":"x"}`, `{"id":""}`, `{"id":42}`, `not json`} {
		_, _, err := domain.DecodeMetadata([]byte(blob))
		var de *domain.DecodeError
		if !errors.As(err, &de) {
			t.Errorf("%s: expected DecodeError, got %v", blob, err)
		}
	}
}

func TestDefinition_Validate(t *testing.T) {
	ok := domain.OfflineRegionDefinition{
		StyleURL:   "mapbox://styles/mapbox/streets-v11",
		Bounds:     domain.NewBounds(domain.GeoPoint{Lat: 43.2, Lon: -3}, domain.GeoPoint{Lat: 43.3, Lon: -2.9}),
		MinZoom:    10,
		MaxZoom:    14,
		PixelRatio: 2,
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}

	bad := ok
	bad.MinZoom = 15
	if err := bad.Validate(); err == nil {
		t.Error("expected minZoom > maxZoom to be rejected")
	}
}

func TestDefinition_CameraTargetUsesMinZoom(t *testing.T) {
	def := domain.OfflineRegionDefinition{
		StyleURL: "style",
		Bounds:   domain.NewBounds(domain.GeoPoint{Lat: 0, Lon: 0}, domain.GeoPoint{Lat: 2, Lon: 4}),
		MinZoom:  6,
		MaxZoom:  12,
	}
	cam := def.CameraTarget()
	if cam.Zoom != 6 {
		t.Errorf("zoom = %v, want 6", cam.Zoom)
	}
	if cam.Center.Lat != 1 || cam.Center.Lon != 2 {
		t.Errorf("center = %+v", cam.Center)
	}
	if cam.StyleURL != "style" {
		t.Errorf("style = %q", cam.StyleURL)
	}
}

func TestParseOverlayKind(t *testing.T) {
	tests := []struct {
		in   string
		want domain.OverlayKind
		ok   bool
	}{
		{"circle", domain.KindCircle, true},
		{"AnnotationType.fill", domain.KindFill, true},
		{" symbol ", domain.KindSymbol, true},
		{"polygon", "", false},
	}
	for _, tt := range tests {
		got, ok := domain.ParseOverlayKind(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseOverlayKind(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestOverlayOptions_Immutable(t *testing.T) {
	base := domain.NewOverlayOptions(domain.KindCircle).With("circleColor", "#ff0000")
	next := base.With("circleRadius", 4.0)
	if base.Has("circleRadius") {
		t.Error("With mutated the receiver")
	}
	merged := base.Merge(domain.NewOverlayOptions(domain.KindCircle).With("circleColor", "#00ff00"))
	if v, _ := merged.Get("circleColor"); v != "#00ff00" {
		t.Errorf("merge did not override, got %v", v)
	}
	if v, _ := base.Get("circleColor"); v != "#ff0000" {
		t.Errorf("merge mutated receiver, got %v", v)
	}
	if next.Len() != 2 {
		t.Errorf("Len() = %d, want 2", next.Len())
	}
}
