// Package metadata flattens document metadata into the primitive-only shape
// that vector store records can carry.
package metadata

import (
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Well-known keys.
const (
	// KeySource identifies the originating file.
	KeySource = "source"
	// KeyLoc holds loader location data before normalization.
	KeyLoc = "loc"
	// KeyPageNumber is the flattened form of loc.pageNumber.
	KeyPageNumber = "loc_pageNumber"
	// KeySection is the markdown header path of a section unit.
	KeySection = "section"
)

// Flat is normalized metadata. Every value is a string, int64, float64 or bool.
// Normalize is the only function that should construct one from raw input.
type Flat map[string]any

// Normalize flattens raw into a Flat map.
//
// Primitive top-level values are kept. Maps and slices are expanded exactly one
// level as "<key>_<child>" entries holding primitive children only; anything
// nested deeper is dropped. Nil values are omitted at every level. A flattened
// key never overwrites an explicit top-level key of the same name.
func Normalize(raw map[string]any) Flat {
	out := make(Flat, len(raw))

	keys := sortedKeys(raw)

	for _, key := range keys {
		if v, ok := primitive(raw[key]); ok {
			out[key] = v
		}
	}

	for _, key := range keys {
		value := raw[key]
		if _, ok := primitive(value); ok {
			continue
		}
		eachChild(value, func(child string, nested any) {
			v, ok := primitive(nested)
			if !ok {
				return
			}
			flatKey := key + "_" + child
			if _, taken := out[flatKey]; taken {
				return
			}
			out[flatKey] = v
		})
	}

	return out
}

// String returns the value for key when it is a string.
func (f Flat) String(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}

// Int returns the value for key when it is an integer, accepting integral floats
// that came back from JSON-based stores.
func (f Flat) Int(key string) (int64, bool) {
	switch v := f[key].(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	}
	return 0, false
}

// Clone returns a shallow copy.
func (f Flat) Clone() Flat {
	out := make(Flat, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// primitive converts v to one of the Flat value types.
func primitive(v any) (any, bool) {
	if v == nil {
		return nil, false
	}

	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return t, true
	case int64:
		return t, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, false
		}
		return t, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return float64(u), true
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		return primitive(rv.Float())
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		return primitive(rv.Elem().Interface())
	}
	return nil, false
}

// eachChild visits the entries of a string-keyed map, or the elements of a
// slice keyed by index. Other values have no children.
func eachChild(v any, fn func(key string, value any)) {
	if v == nil {
		return
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, k := range keys {
			fn(k, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		for i := 0; i < rv.Len(); i++ {
			fn(strconv.Itoa(i), rv.Index(i).Interface())
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
