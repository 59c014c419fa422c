package geospatial

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

var world = orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}

func TestCountTiles_World(t *testing.T) {
	if got := CountTiles(world, 0, 0); got != 1 {
		t.Errorf("z0 = %d, want 1", got)
	}
	if got := CountTiles(world, 0, 2); got != 1+4+16 {
		t.Errorf("z0..2 = %d, want 21", got)
	}
}

func TestCountTiles_MatchesEachTile(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-3.0, 43.2}, Max: orb.Point{-2.9, 43.3}}
	var n int64
	EachTile(b, 10, 13, func(maptile.Tile) bool {
		n++
		return true
	})
	if want := CountTiles(b, 10, 13); n != want {
		t.Errorf("EachTile visited %d, CountTiles says %d", n, want)
	}
}

func TestEachTile_StopsEarly(t *testing.T) {
	n := 0
	EachTile(world, 0, 3, func(maptile.Tile) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Errorf("visited %d tiles, want 3", n)
	}
}

func TestDistance(t *testing.T) {
	// Bilbao to Donostia, roughly 80 km.
	d := Distance(orb.Point{-2.9350, 43.2630}, orb.Point{-1.9812, 43.3183})
	if d < 75000 || d > 85000 {
		t.Errorf("distance = %.0f m", d)
	}
}

func TestDistanceToLine(t *testing.T) {
	ls := orb.LineString{{0, 0}, {0, 1}}
	d := DistanceToLine(orb.Point{0.001, 0.5}, ls)
	if math.Abs(d-111.3) > 2 {
		t.Errorf("distance = %.1f m, want about 111 m", d)
	}
}

func TestMetersPerPixel(t *testing.T) {
	got := MetersPerPixel(0, 0)
	if math.Abs(got-78271.5) > 1 {
		t.Errorf("equator z0 = %.1f", got)
	}
}

func TestBoundAround(t *testing.T) {
	p := orb.Point{-2.93, 43.26}
	b := BoundAround(p, 1000)
	if !b.Contains(p) {
		t.Fatalf("bound %v does not contain its center", b)
	}
	if h := b.Max.Lat() - b.Min.Lat(); math.Abs(h-0.018) > 0.001 {
		t.Errorf("latitude span = %f, want about 0.018", h)
	}
	if Distance(p, orb.Point{p.Lon(), b.Max.Lat()}) < 999 {
		t.Error("bound is smaller than the radius")
	}
}
