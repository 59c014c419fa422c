// Package codec converts untyped wire values (maps, lists, scalars) into the
// typed values the engine works with. Every function is pure.
package codec

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/samirrijal/mapsync/internal/core/domain"
)

// Args is a presence-aware view over a command's argument map.
type Args struct {
	m map[string]any
}

// NewArgs wraps a decoded argument value. A nil value yields empty args.
func NewArgs(v any) (Args, error) {
	switch t := v.(type) {
	case nil:
		return Args{m: map[string]any{}}, nil
	case map[string]any:
		return Args{m: t}, nil
	default:
		return Args{}, &domain.DecodeError{Reason: fmt.Sprintf("arguments must be a map, got %s", typeName(v))}
	}
}

// ArgsOf wraps an argument map directly.
func ArgsOf(m map[string]any) Args {
	if m == nil {
		m = map[string]any{}
	}
	return Args{m: m}
}

// Raw returns the underlying map.
func (a Args) Raw() map[string]any { return a.m }

// Lookup returns the value stored under key and whether the key was present
// at all. A present key may still hold an explicit null.
func (a Args) Lookup(key string) (any, bool) {
	v, ok := a.m[key]
	return v, ok
}

// Has reports whether key is present with a non-null value.
func (a Args) Has(key string) bool {
	v, ok := a.m[key]
	return ok && v != nil
}

// IsNull reports whether key is present and explicitly null.
func (a Args) IsNull(key string) bool {
	v, ok := a.m[key]
	return ok && v == nil
}

func (a Args) required(key string) (any, error) {
	v, ok := a.m[key]
	if !ok {
		return nil, &domain.DecodeError{Key: key, Reason: "required"}
	}
	if v == nil {
		return nil, &domain.DecodeError{Key: key, Reason: "must not be null"}
	}
	return v, nil
}

// String reads a required string.
func (a Args) String(key string) (string, error) {
	v, err := a.required(key)
	if err != nil {
		return "", err
	}
	return ToString(key, v)
}

// OptString reads an optional string, returning def when absent or null.
func (a Args) OptString(key, def string) (string, error) {
	if !a.Has(key) {
		return def, nil
	}
	return ToString(key, a.m[key])
}

// Int reads a required integer.
func (a Args) Int(key string) (int64, error) {
	v, err := a.required(key)
	if err != nil {
		return 0, err
	}
	return ToInt(key, v)
}

// OptInt reads an optional integer.
func (a Args) OptInt(key string, def int64) (int64, error) {
	if !a.Has(key) {
		return def, nil
	}
	return ToInt(key, a.m[key])
}

// Float reads a required number.
func (a Args) Float(key string) (float64, error) {
	v, err := a.required(key)
	if err != nil {
		return 0, err
	}
	return ToFloat(key, v)
}

// OptFloat reads an optional number.
func (a Args) OptFloat(key string, def float64) (float64, error) {
	if !a.Has(key) {
		return def, nil
	}
	return ToFloat(key, a.m[key])
}

// Bool reads a required boolean.
func (a Args) Bool(key string) (bool, error) {
	v, err := a.required(key)
	if err != nil {
		return false, err
	}
	return ToBool(key, v)
}

// List reads a required list.
func (a Args) List(key string) ([]any, error) {
	v, err := a.required(key)
	if err != nil {
		return nil, err
	}
	return ToList(key, v)
}

// Map reads a required nested map.
func (a Args) Map(key string) (map[string]any, error) {
	v, err := a.required(key)
	if err != nil {
		return nil, err
	}
	return ToMap(key, v)
}

// OptMap reads an optional nested map; absent or null yields nil.
func (a Args) OptMap(key string) (map[string]any, error) {
	if !a.Has(key) {
		return nil, nil
	}
	return ToMap(key, a.m[key])
}

// Kind reads a required overlay kind.
func (a Args) Kind(key string) (domain.OverlayKind, error) {
	s, err := a.String(key)
	if err != nil {
		return "", err
	}
	k, ok := domain.ParseOverlayKind(s)
	if !ok {
		return "", &domain.DecodeError{Key: key, Reason: fmt.Sprintf("unknown overlay kind %q", s)}
	}
	return k, nil
}

// StringList reads a required list of strings.
func (a Args) StringList(key string) ([]string, error) {
	v, err := a.required(key)
	if err != nil {
		return nil, err
	}
	return ToStringList(key, v)
}

// ToString converts a wire value to a string.
func ToString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", mismatch(key, "string", v)
	}
	return s, nil
}

// ToBool converts a wire value to a boolean.
func ToBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, mismatch(key, "bool", v)
	}
	return b, nil
}

// ToFloat widens any numeric wire type to float64.
func ToFloat(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, &domain.DecodeError{Key: key, Reason: err.Error()}
		}
		return f, nil
	default:
		return 0, mismatch(key, "number", v)
	}
}

// ToInt reads any numeric wire type as an integer. Values with a fractional
// part or outside the int64 range are rejected rather than truncated.
func ToInt(key string, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt(key, uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt(key, n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, &domain.DecodeError{Key: key, Reason: err.Error()}
		}
		return floatToInt(key, f)
	case float32:
		return floatToInt(key, float64(n))
	case float64:
		return floatToInt(key, n)
	default:
		return 0, mismatch(key, "integer", v)
	}
}

func uintToInt(key string, n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, &domain.DecodeError{Key: key, Reason: fmt.Sprintf("%d overflows int64", n)}
	}
	return int64(n), nil
}

func floatToInt(key string, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, &domain.DecodeError{Key: key, Reason: fmt.Sprintf("%v is not an integer", f)}
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, &domain.DecodeError{Key: key, Reason: fmt.Sprintf("%v overflows int64", f)}
	}
	return int64(f), nil
}

// ToList converts a wire value to a list.
func ToList(key string, v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, nil
	case []float64:
		out := make([]any, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, nil
	default:
		return nil, mismatch(key, "list", v)
	}
}

// ToMap converts a wire value to a map.
func ToMap(key string, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(key, "map", v)
	}
	return m, nil
}

// ToStringList converts a wire list of strings.
func ToStringList(key string, v any) ([]string, error) {
	l, err := ToList(key, v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(l))
	for i, item := range l {
		s, err := ToString(fmt.Sprintf("%s[%d]", key, i), item)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// ToOffset converts a two-element numeric list into an [dx, dy] offset.
func ToOffset(key string, v any) ([2]float64, error) {
	l, err := ToList(key, v)
	if err != nil {
		return [2]float64{}, err
	}
	if len(l) != 2 {
		return [2]float64{}, &domain.DecodeError{Key: key, Reason: fmt.Sprintf("offset needs 2 numbers, got %d", len(l))}
	}
	dx, err := ToFloat(key+"[0]", l[0])
	if err != nil {
		return [2]float64{}, err
	}
	dy, err := ToFloat(key+"[1]", l[1])
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{dx, dy}, nil
}

func mismatch(key, want string, v any) error {
	return &domain.DecodeError{Key: key, Reason: fmt.Sprintf("expected %s, got %s", want, typeName(v))}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
