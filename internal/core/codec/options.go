package codec

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/domain"
)

// DecodeOptions reads an option map against the kind's property schema.
// Absent and null keys leave the property unset. Keys the schema does not
// know are ignored.
func DecodeOptions(kind domain.OverlayKind, m map[string]any) (domain.OverlayOptions, error) {
	schema, ok := domain.SchemaFor(kind)
	if !ok {
		return domain.OverlayOptions{}, &domain.DecodeError{Key: "kind", Reason: fmt.Sprintf("unknown overlay kind %q", kind)}
	}
	opts := domain.NewOverlayOptions(kind)
	for name, raw := range m {
		if raw == nil {
			continue
		}
		prop, ok := schema.Lookup(name)
		if !ok {
			continue
		}
		v, err := DecodeProperty(prop, raw)
		if err != nil {
			return domain.OverlayOptions{}, err
		}
		opts = opts.With(name, v)
	}
	return opts, nil
}

// DecodeProperty converts a single wire value into the Go type of prop.
func DecodeProperty(prop domain.Property, raw any) (any, error) {
	switch prop.Type {
	case domain.PropNumber:
		return ToFloat(prop.Name, raw)
	case domain.PropInteger:
		return ToInt(prop.Name, raw)
	case domain.PropColor, domain.PropString:
		return ToString(prop.Name, raw)
	case domain.PropBool:
		return ToBool(prop.Name, raw)
	case domain.PropStringList:
		return ToStringList(prop.Name, raw)
	case domain.PropOffset:
		return ToOffset(prop.Name, raw)
	case domain.PropPoint:
		return ToCoordinate(prop.Name, raw)
	case domain.PropLineString:
		return ToCoordinates(prop.Name, raw)
	case domain.PropPolygon:
		return ToRings(prop.Name, raw)
	default:
		return nil, &domain.DecodeError{Key: prop.Name, Reason: "unsupported property type"}
	}
}

// EncodeOptions converts options back into an option map, the inverse of
// DecodeOptions.
func EncodeOptions(opts domain.OverlayOptions) map[string]any {
	out := make(map[string]any, opts.Len())
	for _, name := range opts.Names() {
		v, _ := opts.Get(name)
		switch t := v.(type) {
		case orb.Geometry:
			out[name] = EncodeCoordinates(t)
		case [2]float64:
			out[name] = []any{t[0], t[1]}
		default:
			out[name] = v
		}
	}
	return out
}

// DecodeRegion reads {id?, bounds, mapStyleUrl, minZoom, maxZoom,
// pixelRatio?, metadata?}. defaultPixelRatio fills an absent pixelRatio.
func DecodeRegion(a Args, defaultPixelRatio float64) (domain.DownloadRequest, error) {
	var req domain.DownloadRequest
	var err error

	if req.ID, err = a.OptString("id", ""); err != nil {
		return req, err
	}
	boundsRaw, err := a.required("bounds")
	if err != nil {
		return req, err
	}
	if req.Definition.Bounds, err = ToBounds("bounds", boundsRaw); err != nil {
		return req, err
	}
	if req.Definition.StyleURL, err = a.String("mapStyleUrl"); err != nil {
		return req, err
	}
	if req.Definition.MinZoom, err = a.Float("minZoom"); err != nil {
		return req, err
	}
	if req.Definition.MaxZoom, err = a.Float("maxZoom"); err != nil {
		return req, err
	}
	if req.Definition.PixelRatio, err = a.OptFloat("pixelRatio", defaultPixelRatio); err != nil {
		return req, err
	}
	if req.Metadata, err = a.OptMap("metadata"); err != nil {
		return req, err
	}
	if err := req.Definition.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// EncodeRegion builds the region summary {id, storeId, bounds, mapStyleUrl,
// minZoom, maxZoom, pixelRatio, metadata}.
func EncodeRegion(d domain.OfflineRegionData) map[string]any {
	meta := d.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return map[string]any{
		"id":          d.ID,
		"storeId":     d.StoreID,
		"bounds":      EncodeBounds(d.Definition.Bounds),
		"mapStyleUrl": d.Definition.StyleURL,
		"minZoom":     d.Definition.MinZoom,
		"maxZoom":     d.Definition.MaxZoom,
		"pixelRatio":  d.Definition.PixelRatio,
		"metadata":    meta,
	}
}

// EncodeCamera builds the reply of a camera move.
func EncodeCamera(t domain.CameraTarget) map[string]any {
	return map[string]any{
		"latitude":    t.Center.Lat,
		"longitude":   t.Center.Lon,
		"zoom":        t.Zoom,
		"mapStyleUrl": t.StyleURL,
	}
}
