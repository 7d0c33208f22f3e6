package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// MaxKeys is the maximum number of keys in a filter map.
const MaxKeys = 32

// Filters is an opaque key/value constraint map. Values are arbitrary JSON.
//
// On writes the filters are stamped into the stored metadata; on reads a
// document matches when every key is present in its metadata with an equal
// value. Array values match by membership in either direction.
type Filters map[string]any

// Parse decodes a JSON object into Filters. An empty string yields nil.
func Parse(s string) (Filters, error) {
	if s == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var f Filters
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse filters: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// IsEmpty reports whether there are no constraints.
func (f Filters) IsEmpty() bool { return len(f) == 0 }

// Keys returns the filter keys in sorted order.
func (f Filters) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Validate checks key count and key names.
func (f Filters) Validate() error {
	if len(f) > MaxKeys {
		return fmt.Errorf("too many filter keys (max %d)", MaxKeys)
	}
	for k := range f {
		if k == "" {
			return fmt.Errorf("filter key must not be empty")
		}
	}
	return nil
}

// Clone returns a shallow copy. JSON values are treated as immutable.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	return maps.Clone(f)
}

// Apply returns a copy of meta with every filter key stamped into it.
func (f Filters) Apply(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+len(f))
	maps.Copy(out, meta)
	maps.Copy(out, f)
	return out
}

// Matches reports whether meta satisfies every constraint.
func (f Filters) Matches(meta map[string]any) bool {
	for k, want := range f {
		got, ok := meta[k]
		if !ok || !valueMatches(got, want) {
			return false
		}
	}
	return true
}

func valueMatches(got, want any) bool {
	gotArr, gotIsArr := got.([]any)
	wantArr, wantIsArr := want.([]any)
	switch {
	case gotIsArr && !wantIsArr:
		return slices.ContainsFunc(gotArr, func(v any) bool { return Equal(v, want) })
	case wantIsArr && !gotIsArr:
		return slices.ContainsFunc(wantArr, func(v any) bool { return Equal(got, v) })
	default:
		return Equal(got, want)
	}
}

// Equal compares two JSON values by canonical encoding.
func Equal(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Scalar renders a scalar JSON value as a string for backends that index
// filter values as tags. Arrays and objects are not scalars.
func Scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "null", true
	case map[string]any, []any:
		return "", false
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
