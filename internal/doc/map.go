package doc

import (
	"slices"
	"unicode/utf16"
)

// Map is an ordered association of string keys to values.
//
// Keys keep insertion order; setting an existing key keeps its position.
// A nil *Map is a valid, empty, read-only map.
type Map struct {
	keys []string
	vals map[string]Value
}

// Pair is a key-value pair for ordered Map construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewMap(P("id", Int(1)), P("slice", String("first")))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewMap creates a Map from pairs, in order. A repeated key keeps its first
// position and its last value.
func NewMap(pairs ...Pair) *Map {
	m := &Map{vals: make(map[string]Value, len(pairs))}
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Lookup returns the value for key, or Null when absent.
func (m *Map) Lookup(key string) Value {
	if v, ok := m.Get(key); ok && v != nil {
		return v
	}
	return Null{}
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set inserts or replaces key. A nil value is stored as Null.
func (m *Map) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return []string{}
	}
	return slices.Clone(m.keys)
}

// Range calls fn for each key in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Clone returns a deep copy. Cloning nil returns nil.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	out := &Map{
		keys: slices.Clone(m.keys),
		vals: make(map[string]Value, len(m.vals)),
	}
	for k, v := range m.vals {
		out.vals[k] = cloneValue(v)
	}
	return out
}

// Equal reports whether both maps hold the same keys with equal values.
// Key order is ignored; compare Keys() when order matters. nil equals empty.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for _, k := range m.Keys() {
		ov, ok := o.Get(k)
		if !ok {
			return false
		}
		mv, _ := m.Get(k)
		if !Equal(mv, ov) {
			return false
		}
	}
	return true
}

// ToAny converts the map into a plain map[string]any.
func (m *Map) ToAny() map[string]any {
	out := make(map[string]any, m.Len())
	m.Range(func(k string, v Value) bool {
		out[k] = ToAny(v)
		return true
	})
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs outside the BMP.
func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case *Map:
		return val.Clone()
	default:
		return v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as RFC 8785 requires.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
