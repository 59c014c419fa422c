package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxMercatorLat is the latitude limit of the web mercator tile pyramid.
const MaxMercatorLat = 85.05112878

// TileRange returns the north-west and south-east tiles covering b at z.
func TileRange(b orb.Bound, z maptile.Zoom) (nw, se maptile.Tile) {
	north := clampLat(b.Max.Lat())
	south := clampLat(b.Min.Lat())
	nw = clampTile(maptile.At(orb.Point{b.Min.Lon(), north}, z))
	se = clampTile(maptile.At(orb.Point{b.Max.Lon(), south}, z))
	return nw, se
}

// CountTiles returns how many tiles cover b over the integer zooms in
// [floor(minZoom), ceil(maxZoom)].
func CountTiles(b orb.Bound, minZoom, maxZoom float64) int64 {
	var n int64
	for z := zoomFloor(minZoom); z <= zoomCeil(maxZoom); z++ {
		nw, se := TileRange(b, z)
		n += int64(se.X-nw.X+1) * int64(se.Y-nw.Y+1)
	}
	return n
}

// EachTile calls fn for every tile of the pyramid, lowest zoom first,
// stopping early when fn returns false.
func EachTile(b orb.Bound, minZoom, maxZoom float64, fn func(maptile.Tile) bool) {
	for z := zoomFloor(minZoom); z <= zoomCeil(maxZoom); z++ {
		nw, se := TileRange(b, z)
		for x := nw.X; x <= se.X; x++ {
			for y := nw.Y; y <= se.Y; y++ {
				if !fn(maptile.New(x, y, z)) {
					return
				}
			}
		}
	}
}

func zoomFloor(z float64) maptile.Zoom {
	if z < 0 {
		return 0
	}
	return maptile.Zoom(math.Floor(z))
}

func zoomCeil(z float64) maptile.Zoom {
	if z < 0 {
		return 0
	}
	return maptile.Zoom(math.Ceil(z))
}

func clampLat(lat float64) float64 {
	return math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, lat))
}

func clampTile(t maptile.Tile) maptile.Tile {
	last := uint32(1)<<uint32(t.Z) - 1
	if t.X > last {
		t.X = last
	}
	if t.Y > last {
		t.Y = last
	}
	return t
}
