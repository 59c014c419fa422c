package domain

import "github.com/paulmach/orb"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Orb converts the coordinate to an orb point (lon, lat order).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// PointFromOrb converts an orb point back into a GeoPoint.
func PointFromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// Bounds represents a geographic bounding box.
// A Bounds built with NewBounds is always normalized: Min is the
// south-west corner and Max the north-east corner.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// NewBounds builds normalized bounds from two corners given in any order.
func NewBounds(a, b GeoPoint) Bounds {
	bound := orb.MultiPoint{a.Orb(), b.Orb()}.Bound()
	return BoundsFromOrb(bound)
}

// BoundsFromOrb converts an orb bound.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}
}

// SouthWest returns the south-west corner.
func (b Bounds) SouthWest() GeoPoint { return GeoPoint{Lat: b.MinLat, Lon: b.MinLon} }

// NorthEast returns the north-east corner.
func (b Bounds) NorthEast() GeoPoint { return GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon} }

// Orb returns the bounds as an orb.Bound.
func (b Bounds) Orb() orb.Bound {
	return orb.Bound{Min: b.SouthWest().Orb(), Max: b.NorthEast().Orb()}
}

// Center returns the geometric center of the bounds.
func (b Bounds) Center() GeoPoint {
	return PointFromOrb(b.Orb().Center())
}

// CameraTarget is a camera position applied to the map surface.
type CameraTarget struct {
	Center   GeoPoint `json:"center"`
	Zoom     float64  `json:"zoom"`
	StyleURL string   `json:"style_url,omitempty"`
}
