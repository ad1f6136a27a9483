// Package cascade keeps dependent filters consistent: when a parent filter
// changes, every filter below it in the same hierarchy is cleared in the
// same store update.
package cascade

import (
	"collections/pkg/errors"
	"collections/pkg/querystate"
)

// Level is one filter in a hierarchy. Parent is empty for the root.
type Level struct {
	Key    querystate.Key
	Parent querystate.Key
	// Independent levels can be selected without their parent, through a
	// search endpoint that does not need the ancestor chain. Selecting one
	// does not back-fill ancestors.
	Independent bool
}

// Hierarchy is an ordered chain (or tree) of dependent filters.
type Hierarchy struct {
	name     string
	levels   []Level
	index    map[querystate.Key]int
	children map[querystate.Key][]querystate.Key
}

// NewHierarchy validates levels and builds the descendant index. Parents
// must be declared before their children.
func NewHierarchy(name string, levels ...Level) (*Hierarchy, error) {
	if len(levels) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidHierarchy, "%s: no levels", name)
	}

	h := &Hierarchy{
		name:     name,
		levels:   make([]Level, 0, len(levels)),
		index:    make(map[querystate.Key]int, len(levels)),
		children: make(map[querystate.Key][]querystate.Key),
	}

	for i, lvl := range levels {
		if lvl.Key == "" {
			return nil, errors.Wrapf(errors.ErrInvalidHierarchy, "%s: level %d has no key", name, i)
		}
		if _, dup := h.index[lvl.Key]; dup {
			return nil, errors.Wrapf(errors.ErrInvalidHierarchy, "%s: duplicate key %s", name, lvl.Key)
		}
		if lvl.Parent != "" {
			if _, ok := h.index[lvl.Parent]; !ok {
				return nil, errors.Wrapf(errors.ErrInvalidHierarchy, "%s: parent %s of %s is not declared before it", name, lvl.Parent, lvl.Key)
			}
			h.children[lvl.Parent] = append(h.children[lvl.Parent], lvl.Key)
		}
		h.index[lvl.Key] = i
		h.levels = append(h.levels, lvl)
	}

	return h, nil
}

// MustHierarchy is NewHierarchy for static definitions
func MustHierarchy(name string, levels ...Level) *Hierarchy {
	h, err := NewHierarchy(name, levels...)
	if err != nil {
		panic(err)
	}
	return h
}

// Name returns the hierarchy name
func (h *Hierarchy) Name() string {
	return h.name
}

// Levels returns the levels in declaration order
func (h *Hierarchy) Levels() []Level {
	out := make([]Level, len(h.levels))
	copy(out, h.levels)
	return out
}

// Keys returns every key of the hierarchy in declaration order
func (h *Hierarchy) Keys() []querystate.Key {
	keys := make([]querystate.Key, len(h.levels))
	for i, lvl := range h.levels {
		keys[i] = lvl.Key
	}
	return keys
}

// Contains reports whether key belongs to the hierarchy
func (h *Hierarchy) Contains(key querystate.Key) bool {
	_, ok := h.index[key]
	return ok
}

// Level returns the level definition for key
func (h *Hierarchy) Level(key querystate.Key) (Level, bool) {
	i, ok := h.index[key]
	if !ok {
		return Level{}, false
	}
	return h.levels[i], true
}

// Parent returns the parent key, "" for roots and unknown keys
func (h *Hierarchy) Parent(key querystate.Key) querystate.Key {
	lvl, _ := h.Level(key)
	return lvl.Parent
}

// Descendants returns every key strictly below key, in declaration order.
func (h *Hierarchy) Descendants(key querystate.Key) []querystate.Key {
	if !h.Contains(key) {
		return nil
	}
	below := make(map[querystate.Key]bool)
	stack := append([]querystate.Key(nil), h.children[key]...)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if below[k] {
			continue
		}
		below[k] = true
		stack = append(stack, h.children[k]...)
	}

	out := make([]querystate.Key, 0, len(below))
	for _, lvl := range h.levels {
		if below[lvl.Key] {
			out = append(out, lvl.Key)
		}
	}
	return out
}

// Change expands a new value for key into the combined update that also
// clears every descendant. It returns false when the value is unchanged,
// in which case nothing downstream is cleared.
func (h *Hierarchy) Change(current querystate.Values, key querystate.Key, value string) (querystate.Changes, bool) {
	if !h.Contains(key) {
		return nil, false
	}
	value = querystate.NormalizeValue(value)
	if current.Get(key) == value {
		return nil, false
	}

	changes := querystate.Changes{key: value}
	for _, d := range h.Descendants(key) {
		changes[d] = ""
	}
	return changes, true
}

// Enabled reports whether the control for key can be used with the given
// state: roots and independent levels always, others once their parent is
// effectively set.
func (h *Hierarchy) Enabled(values querystate.Values, key querystate.Key) bool {
	lvl, ok := h.Level(key)
	if !ok {
		return false
	}
	if lvl.Parent == "" || lvl.Independent {
		return true
	}
	return h.effectiveValue(values, lvl.Parent) != ""
}

// Prerequisite returns the parent key that keeps key disabled, or "" when
// key is enabled.
func (h *Hierarchy) Prerequisite(values querystate.Values, key querystate.Key) querystate.Key {
	if h.Enabled(values, key) {
		return ""
	}
	return h.Parent(key)
}

// Effective returns values with orphaned hierarchy keys removed: a child
// value whose parent is unset is ignored until the parent is set again.
// Keys outside the hierarchy pass through untouched.
func (h *Hierarchy) Effective(values querystate.Values) querystate.Values {
	out := values.Clone()
	for _, lvl := range h.levels {
		if out.Get(lvl.Key) == "" {
			continue
		}
		if lvl.Parent != "" && !lvl.Independent && out.Get(lvl.Parent) == "" {
			delete(out, lvl.Key)
		}
	}
	return out
}

func (h *Hierarchy) effectiveValue(values querystate.Values, key querystate.Key) string {
	return h.Effective(values).Get(key)
}
