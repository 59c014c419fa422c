package codec

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/domain"
)

// ToCoordinate reads a [lat, lng] pair.
func ToCoordinate(key string, v any) (orb.Point, error) {
	l, err := ToList(key, v)
	if err != nil {
		return orb.Point{}, err
	}
	if len(l) != 2 {
		return orb.Point{}, &domain.DecodeError{Key: key, Reason: fmt.Sprintf("coordinate needs [lat, lng], got %d values", len(l))}
	}
	lat, err := ToFloat(key, l[0])
	if err != nil {
		return orb.Point{}, err
	}
	lng, err := ToFloat(key, l[1])
	if err != nil {
		return orb.Point{}, err
	}
	if lat < -90 || lat > 90 {
		return orb.Point{}, &domain.DecodeError{Key: key, Reason: fmt.Sprintf("latitude %v out of range", lat)}
	}
	return orb.Point{lng, lat}, nil
}

// ToCoordinates reads a list of [lat, lng] pairs.
func ToCoordinates(key string, v any) (orb.LineString, error) {
	l, err := ToList(key, v)
	if err != nil {
		return nil, err
	}
	ls := make(orb.LineString, 0, len(l))
	for i, item := range l {
		p, err := ToCoordinate(fmt.Sprintf("%s[%d]", key, i), item)
		if err != nil {
			return nil, err
		}
		ls = append(ls, p)
	}
	return ls, nil
}

// ToRings reads a list of coordinate rings.
func ToRings(key string, v any) (orb.Polygon, error) {
	l, err := ToList(key, v)
	if err != nil {
		return nil, err
	}
	poly := make(orb.Polygon, 0, len(l))
	for i, item := range l {
		ls, err := ToCoordinates(fmt.Sprintf("%s[%d]", key, i), item)
		if err != nil {
			return nil, err
		}
		poly = append(poly, orb.Ring(ls))
	}
	return poly, nil
}

// ToBounds reads [[lat, lng], [lat, lng]] corners in any order and returns
// normalized bounds.
func ToBounds(key string, v any) (domain.Bounds, error) {
	ls, err := ToCoordinates(key, v)
	if err != nil {
		return domain.Bounds{}, err
	}
	if len(ls) != 2 {
		return domain.Bounds{}, &domain.DecodeError{Key: key, Reason: fmt.Sprintf("bounds need 2 corners, got %d", len(ls))}
	}
	return domain.NewBounds(domain.PointFromOrb(ls[0]), domain.PointFromOrb(ls[1])), nil
}

// EncodeGeometry converts a geometry into its reply form: points become
// {"latitude", "longitude"} maps, lines lists of them, fills lists of rings.
func EncodeGeometry(g orb.Geometry) any {
	switch t := g.(type) {
	case orb.Point:
		return encodePoint(t)
	case orb.LineString:
		return encodeLine(t)
	case orb.Ring:
		return encodeLine(orb.LineString(t))
	case orb.Polygon:
		out := make([]any, len(t))
		for i, r := range t {
			out[i] = encodeLine(orb.LineString(r))
		}
		return out
	default:
		return nil
	}
}

func encodePoint(p orb.Point) map[string]any {
	return map[string]any{"latitude": p.Lat(), "longitude": p.Lon()}
}

func encodeLine(ls orb.LineString) []any {
	out := make([]any, len(ls))
	for i, p := range ls {
		out[i] = encodePoint(p)
	}
	return out
}

// EncodeCoordinates converts a geometry back to its [lat, lng] wire form,
// the inverse of the property readers.
func EncodeCoordinates(g orb.Geometry) any {
	switch t := g.(type) {
	case orb.Point:
		return []any{t.Lat(), t.Lon()}
	case orb.LineString:
		return coordList(t)
	case orb.Ring:
		return coordList(orb.LineString(t))
	case orb.Polygon:
		out := make([]any, len(t))
		for i, r := range t {
			out[i] = coordList(orb.LineString(r))
		}
		return out
	default:
		return nil
	}
}

func coordList(ls orb.LineString) []any {
	out := make([]any, len(ls))
	for i, p := range ls {
		out[i] = []any{p.Lat(), p.Lon()}
	}
	return out
}

// EncodeBounds converts bounds to [[swLat, swLng], [neLat, neLng]].
func EncodeBounds(b domain.Bounds) []any {
	return []any{
		[]any{b.MinLat, b.MinLon},
		[]any{b.MaxLat, b.MaxLon},
	}
}
