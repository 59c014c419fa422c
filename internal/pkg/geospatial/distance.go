package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const earthCircumference = 40075016.686 // meters at the equator

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// BoundAround returns a bound enclosing a circle of radiusMeters around p.
func BoundAround(p orb.Point, radiusMeters float64) orb.Bound {
	return geo.NewBoundAroundPoint(p, radiusMeters)
}

// MetersPerPixel returns the ground resolution of a 512px tile pyramid at
// the given latitude and zoom.
func MetersPerPixel(lat, zoom float64) float64 {
	return earthCircumference * math.Cos(lat*math.Pi/180) / (512 * math.Pow(2, zoom))
}

// DistanceToLine returns the distance in meters from p to the closest
// vertex-interpolated point of ls.
func DistanceToLine(p orb.Point, ls orb.LineString) float64 {
	if len(ls) == 0 {
		return math.Inf(1)
	}
	if len(ls) == 1 {
		return Distance(p, ls[0])
	}
	best := math.Inf(1)
	for i := 0; i < len(ls)-1; i++ {
		if d := Distance(p, closestOnSegment(p, ls[i], ls[i+1])); d < best {
			best = d
		}
	}
	return best
}

// closestOnSegment projects p onto segment ab in an equirectangular frame
// scaled at p's latitude, which is accurate at hit-test distances.
func closestOnSegment(p, a, b orb.Point) orb.Point {
	k := math.Cos(p.Lat() * math.Pi / 180)
	ax, ay := a.Lon()*k, a.Lat()
	bx, by := b.Lon()*k, b.Lat()
	px, py := p.Lon()*k, p.Lat()

	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((px-ax)*dx + (py-ay)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a.Lon() + t*(b.Lon()-a.Lon()), a.Lat() + t*(b.Lat()-a.Lat())}
}
