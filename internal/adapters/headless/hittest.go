package headless

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/pkg/geospatial"
)

const (
	defaultCircleRadius = 5.0
	defaultLineWidth    = 1.0
	symbolHalfExtent    = 12.0
)

// TapResult describes what a tap hit.
type TapResult struct {
	Kind     domain.OverlayKind   `json:"kind,omitempty"`
	ID       domain.OverlayHandle `json:"id,omitempty"`
	Hit      bool                 `json:"hit"`
	Consumed bool                 `json:"consumed"`
}

// Tap hit-tests p against every overlay, top-most layer and newest overlay
// first, with a tolerance in screen pixels at the current camera zoom. The
// first hit is delivered to the tap handler.
func (s *Surface) Tap(p orb.Point, tolerancePx float64) TapResult {
	s.mu.Lock()
	mpp := geospatial.MetersPerPixel(p.Lat(), s.camera.Zoom)
	handler := s.tap
	var hit *Overlay
	for _, kind := range drawOrder {
		l := s.layers[kind]
		for i := len(l.order) - 1; i >= 0; i-- {
			ov := l.byHandle[l.order[i]]
			if ov.hits(p, tolerancePx, mpp) {
				hit = ov
				break
			}
		}
		if hit != nil {
			break
		}
	}
	s.mu.Unlock()

	if hit == nil {
		return TapResult{}
	}
	res := TapResult{Kind: hit.kind, ID: hit.handle, Hit: true}
	if handler != nil {
		res.Consumed = handler(hit.kind, hit.handle)
	}
	return res
}

func (o *Overlay) number(name string, def float64) float64 {
	if f, ok := o.committed[name].(float64); ok {
		return f
	}
	return def
}

func (o *Overlay) hits(p orb.Point, tolerancePx, mpp float64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch g := o.committed[domain.GeometryKey].(type) {
	case orb.Point:
		extent := symbolHalfExtent * o.number("iconSize", 1)
		if o.kind == domain.KindCircle {
			extent = o.number("circleRadius", defaultCircleRadius) + o.number("circleStrokeWidth", 0)
		}
		return geospatial.Distance(p, g) <= (extent+tolerancePx)*mpp
	case orb.LineString:
		reach := (o.number("lineWidth", defaultLineWidth)/2 + tolerancePx) * mpp
		if !geospatial.BoundAround(p, reach).Intersects(g.Bound()) {
			return false
		}
		return geospatial.DistanceToLine(p, g) <= reach
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	default:
		return false
	}
}
