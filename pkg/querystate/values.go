// Package querystate keeps filter state in a URL query string.
//
// The query string is the only durable store for filter values. Reads take a
// snapshot of the current query; writes go through Store, which normalizes a
// batch of changes and commits it as a single navigation.
package querystate

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies one filter dimension in the query string.
type Key string

// String returns the query parameter name
func (k Key) String() string {
	return string(k)
}

// PageKey is the pagination parameter reset by every filter change.
const PageKey Key = "page"

// All is the sentinel value equivalent to an absent key.
const All = "all"

// Changes is a batch of key updates. An empty value clears the key.
type Changes map[Key]string

// Keys returns the changed keys in a stable order
func (c Changes) Keys() []Key {
	keys := make([]Key, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}


// Values is a normalized snapshot of the query string: one value per key,
// no unset keys.
type Values map[Key]string

// Get returns the value for key, "" when unset
func (v Values) Get(key Key) string {
	if v == nil {
		return ""
	}
	return v[key]
}

// Has reports whether key holds a value
func (v Values) Has(key Key) bool {
	return v.Get(key) != ""
}

// Clone returns a copy of v
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Equal reports whether both snapshots hold the same key/value set
func (v Values) Equal(other Values) bool {
	if len(v) != len(other) {
		return false
	}
	for k, val := range v {
		if other[k] != val {
			return false
		}
	}
	return true
}

// URLValues converts the snapshot back to url.Values
func (v Values) URLValues() url.Values {
	out := make(url.Values, len(v))
	for k, val := range v {
		out.Set(string(k), val)
	}
	return out
}

// Encode returns the canonical query string (keys sorted)
func (v Values) Encode() string {
	return v.URLValues().Encode()
}

// IsUnset reports whether a raw value means "no filter applied".
func IsUnset(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || value == All
}

// NormalizeValue maps the unset aliases to "" and trims whitespace.
func NormalizeValue(value string) string {
	if IsUnset(value) {
		return ""
	}
	return strings.TrimSpace(value)
}

// FromURL builds a normalized snapshot from url.Values. Only the first value
// of a repeated key is kept.
func FromURL(q url.Values) Values {
	out := make(Values, len(q))
	for k, vals := range q {
		if len(vals) == 0 {
			continue
		}
		if v := NormalizeValue(vals[0]); v != "" {
			out[Key(k)] = v
		}
	}
	return out
}

// Parse builds a normalized snapshot from a raw query string. Malformed pairs
// are skipped the same way the browser would ignore them.
func Parse(rawQuery string) Values {
	q, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil && q == nil {
		return Values{}
	}
	return FromURL(q)
}

// Apply returns current with changes merged in. When resetPage is true the
// page key is dropped as well.
func Apply(current Values, changes Changes, resetPage bool) Values {
	next := current.Clone()
	for k, raw := range changes {
		if v := NormalizeValue(raw); v != "" {
			next[k] = v
		} else {
			delete(next, k)
		}
	}
	if resetPage {
		delete(next, PageKey)
	}
	return next
}
