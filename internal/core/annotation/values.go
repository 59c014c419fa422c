package annotation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/samirrijal/mapsync/internal/core/domain"
)

var errBadColor = errors.New("malformed color")

// checkValue verifies that v has the Go type the codec produces for prop
// and that its content is acceptable to the surface.
func checkValue(prop domain.Property, v any) error {
	switch prop.Type {
	case domain.PropNumber:
		f, ok := v.(float64)
		if !ok {
			return typeErr(prop, v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%v is not a finite number", f)
		}
	case domain.PropInteger:
		if _, ok := v.(int64); !ok {
			return typeErr(prop, v)
		}
	case domain.PropColor:
		s, ok := v.(string)
		if !ok {
			return typeErr(prop, v)
		}
		if err := parseColor(s); err != nil {
			return fmt.Errorf("%w: %q", err, s)
		}
	case domain.PropString:
		if _, ok := v.(string); !ok {
			return typeErr(prop, v)
		}
	case domain.PropBool:
		if _, ok := v.(bool); !ok {
			return typeErr(prop, v)
		}
	case domain.PropStringList:
		if _, ok := v.([]string); !ok {
			return typeErr(prop, v)
		}
	case domain.PropOffset:
		if _, ok := v.([2]float64); !ok {
			return typeErr(prop, v)
		}
	case domain.PropPoint:
		if _, ok := v.(orb.Point); !ok {
			return typeErr(prop, v)
		}
	case domain.PropLineString:
		if _, ok := v.(orb.LineString); !ok {
			return typeErr(prop, v)
		}
	case domain.PropPolygon:
		poly, ok := v.(orb.Polygon)
		if !ok {
			return typeErr(prop, v)
		}
		for i, r := range poly {
			if len(r) < 3 {
				return fmt.Errorf("ring %d has %d vertices, need at least 3", i, len(r))
			}
		}
	}
	return nil
}

func typeErr(prop domain.Property, v any) error {
	return fmt.Errorf("expected %s, got %T", prop.Type, v)
}

// parseColor accepts #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(r,g,b) and
// rgba(r,g,b,a).
func parseColor(s string) error {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case strings.HasPrefix(s, "#"):
		hex := s[1:]
		switch len(hex) {
		case 3, 4, 6, 8:
		default:
			return errBadColor
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return errBadColor
		}
		return nil
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseChannels(s[5:len(s)-1], 4)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseChannels(s[4:len(s)-1], 3)
	default:
		return errBadColor
	}
}

func parseChannels(body string, n int) error {
	parts := strings.Split(body, ",")
	if len(parts) != n {
		return errBadColor
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return errBadColor
		}
		limit := 255.0
		if i == 3 {
			limit = 1
		}
		if f < 0 || f > limit {
			return errBadColor
		}
	}
	return nil
}

// ValidateOptions checks every populated field of opts against the kind's
// schema without touching any overlay.
func ValidateOptions(opts domain.OverlayOptions) error {
	schema, ok := domain.SchemaFor(opts.Kind())
	if !ok {
		return fmt.Errorf("unknown overlay kind %q", opts.Kind())
	}
	for _, name := range opts.Names() {
		prop, ok := schema.Lookup(name)
		if !ok {
			return &domain.InvalidPropertyError{Kind: opts.Kind(), Field: name, Err: fmt.Errorf("not a %s property", opts.Kind())}
		}
		v, _ := opts.Get(name)
		if err := checkValue(prop, v); err != nil {
			return &domain.InvalidPropertyError{Kind: opts.Kind(), Field: name, Err: err}
		}
	}
	return nil
}
