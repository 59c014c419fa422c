package domain

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"
)

// OverlayKind names one overlay namespace. Identifiers are unique only
// within a kind.
type OverlayKind string

const (
	KindCircle OverlayKind = "circle"
	KindLine   OverlayKind = "line"
	KindFill   OverlayKind = "fill"
	KindSymbol OverlayKind = "symbol"
)

// OverlayKinds lists every supported kind in a stable order.
var OverlayKinds = []OverlayKind{KindCircle, KindLine, KindFill, KindSymbol}

// ParseOverlayKind accepts "circle" as well as the "AnnotationType.circle"
// spelling used by older clients.
func ParseOverlayKind(s string) (OverlayKind, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "AnnotationType.")
	for _, k := range OverlayKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// OverlayHandle is the opaque identifier the map surface issues for a live
// overlay. Its string form is the external overlay id.
type OverlayHandle string

// ID returns the external identifier for the handle.
func (h OverlayHandle) ID() string { return string(h) }

// PropertyType tells the codec how to read a property and the controller
// how to validate it before mutation.
type PropertyType int

const (
	PropNumber PropertyType = iota
	PropInteger
	PropColor
	PropString
	PropBool
	PropStringList
	PropOffset     // [dx, dy]
	PropPoint      // orb.Point
	PropLineString // orb.LineString
	PropPolygon    // orb.Polygon
)

func (t PropertyType) String() string {
	switch t {
	case PropNumber:
		return "number"
	case PropInteger:
		return "integer"
	case PropColor:
		return "color"
	case PropString:
		return "string"
	case PropBool:
		return "bool"
	case PropStringList:
		return "string list"
	case PropOffset:
		return "offset"
	case PropPoint:
		return "coordinate"
	case PropLineString:
		return "coordinate list"
	case PropPolygon:
		return "ring list"
	default:
		return "unknown"
	}
}

// IsGeometry reports whether the type carries overlay geometry.
func (t PropertyType) IsGeometry() bool {
	return t == PropPoint || t == PropLineString || t == PropPolygon
}

// Property is one entry of a kind's property schema.
type Property struct {
	Name string
	Type PropertyType
}

// GeometryKey is the wire name of the geometry property for every kind.
const GeometryKey = "geometry"

// Schema is the property set recognized for one overlay kind.
type Schema struct {
	kind  OverlayKind
	props []Property
	index map[string]int
}

func newSchema(kind OverlayKind, props ...Property) *Schema {
	s := &Schema{kind: kind, props: props, index: make(map[string]int, len(props))}
	for i, p := range props {
		s.index[p.Name] = i
	}
	return s
}

// Kind returns the overlay kind this schema describes.
func (s *Schema) Kind() OverlayKind { return s.kind }

// Properties returns the schema's properties in declaration order.
func (s *Schema) Properties() []Property {
	out := make([]Property, len(s.props))
	copy(out, s.props)
	return out
}

// Lookup finds a property by wire name.
func (s *Schema) Lookup(name string) (Property, bool) {
	i, ok := s.index[name]
	if !ok {
		return Property{}, false
	}
	return s.props[i], true
}

// Geometry returns the geometry property of the kind.
func (s *Schema) Geometry() Property {
	p, _ := s.Lookup(GeometryKey)
	return p
}

var schemas = map[OverlayKind]*Schema{
	KindCircle: newSchema(KindCircle,
		Property{"circleRadius", PropNumber},
		Property{"circleColor", PropColor},
		Property{"circleBlur", PropNumber},
		Property{"circleOpacity", PropNumber},
		Property{"circleStrokeWidth", PropNumber},
		Property{"circleStrokeColor", PropColor},
		Property{"circleStrokeOpacity", PropNumber},
		Property{GeometryKey, PropPoint},
		Property{"draggable", PropBool},
	),
	KindLine: newSchema(KindLine,
		Property{"lineJoin", PropString},
		Property{"lineOpacity", PropNumber},
		Property{"lineColor", PropColor},
		Property{"lineWidth", PropNumber},
		Property{"lineGapWidth", PropNumber},
		Property{"lineOffset", PropNumber},
		Property{"lineBlur", PropNumber},
		Property{"linePattern", PropString},
		Property{GeometryKey, PropLineString},
		Property{"draggable", PropBool},
	),
	KindFill: newSchema(KindFill,
		Property{"fillOpacity", PropNumber},
		Property{"fillColor", PropColor},
		Property{"fillOutlineColor", PropColor},
		Property{"fillPattern", PropString},
		Property{GeometryKey, PropPolygon},
		Property{"draggable", PropBool},
	),
	KindSymbol: newSchema(KindSymbol,
		Property{"iconSize", PropNumber},
		Property{"iconImage", PropString},
		Property{"iconRotate", PropNumber},
		Property{"iconOffset", PropOffset},
		Property{"iconAnchor", PropString},
		Property{"fontNames", PropStringList},
		Property{"textField", PropString},
		Property{"textSize", PropNumber},
		Property{"textMaxWidth", PropNumber},
		Property{"textLetterSpacing", PropNumber},
		Property{"textJustify", PropString},
		Property{"textAnchor", PropString},
		Property{"textRotate", PropNumber},
		Property{"textTransform", PropString},
		Property{"textOffset", PropOffset},
		Property{"iconOpacity", PropNumber},
		Property{"iconColor", PropColor},
		Property{"iconHaloColor", PropColor},
		Property{"iconHaloWidth", PropNumber},
		Property{"iconHaloBlur", PropNumber},
		Property{"textOpacity", PropNumber},
		Property{"textColor", PropColor},
		Property{"textHaloColor", PropColor},
		Property{"textHaloWidth", PropNumber},
		Property{"textHaloBlur", PropNumber},
		Property{GeometryKey, PropPoint},
		Property{"zIndex", PropInteger},
		Property{"draggable", PropBool},
	),
}

// SchemaFor returns the property schema of a kind.
func SchemaFor(kind OverlayKind) (*Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}

// OverlayOptions holds the populated properties of one overlay. Unset
// properties are absent, never zeroed, so the surface keeps its defaults.
// Values are immutable: With and Merge return new records.
type OverlayOptions struct {
	kind   OverlayKind
	values map[string]any
}

// NewOverlayOptions returns an empty record for kind.
func NewOverlayOptions(kind OverlayKind) OverlayOptions {
	return OverlayOptions{kind: kind}
}

// Kind returns the overlay kind of the record.
func (o OverlayOptions) Kind() OverlayKind { return o.kind }

// With returns a copy with name set to v.
func (o OverlayOptions) With(name string, v any) OverlayOptions {
	next := make(map[string]any, len(o.values)+1)
	for k, val := range o.values {
		next[k] = val
	}
	next[name] = v
	return OverlayOptions{kind: o.kind, values: next}
}

// Get returns a populated value.
func (o OverlayOptions) Get(name string) (any, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Has reports whether name is populated.
func (o OverlayOptions) Has(name string) bool {
	_, ok := o.values[name]
	return ok
}

// Len returns the number of populated properties.
func (o OverlayOptions) Len() int { return len(o.values) }

// Names returns the populated property names, sorted.
func (o OverlayOptions) Names() []string {
	names := make([]string, 0, len(o.values))
	for k := range o.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Merge overlays delta's populated fields on top of o.
func (o OverlayOptions) Merge(delta OverlayOptions) OverlayOptions {
	next := make(map[string]any, len(o.values)+len(delta.values))
	for k, v := range o.values {
		next[k] = v
	}
	for k, v := range delta.values {
		next[k] = v
	}
	return OverlayOptions{kind: o.kind, values: next}
}

// Geometry returns the geometry property if populated.
func (o OverlayOptions) Geometry() (orb.Geometry, bool) {
	v, ok := o.values[GeometryKey]
	if !ok {
		return nil, false
	}
	g, ok := v.(orb.Geometry)
	return g, ok
}

// OverlaySummary is a read view of one registered overlay.
type OverlaySummary struct {
	ID      string         `json:"id"`
	Kind    OverlayKind    `json:"kind"`
	Options map[string]any `json:"options"`
}
