package cascade

import (
	"collections/pkg/errors"
	"collections/pkg/querystate"
)

// Writer is the part of the query store the controller needs
type Writer interface {
	Values() querystate.Values
	Update(changes querystate.Changes) bool
}

// Controller applies level changes of several hierarchies to one store.
// Keys outside every hierarchy are written as plain single-key updates.
type Controller struct {
	store       Writer
	hierarchies []*Hierarchy
}

// NewController binds hierarchies to a store. A key may belong to at most
// one hierarchy.
func NewController(store Writer, hierarchies ...*Hierarchy) (*Controller, error) {
	seen := make(map[querystate.Key]string)
	for _, h := range hierarchies {
		for _, k := range h.Keys() {
			if other, dup := seen[k]; dup {
				return nil, errors.Wrapf(errors.ErrInvalidHierarchy, "key %s is in both %s and %s", k, other, h.Name())
			}
			seen[k] = h.Name()
		}
	}
	return &Controller{store: store, hierarchies: hierarchies}, nil
}

// Hierarchy returns the hierarchy that owns key
func (c *Controller) Hierarchy(key querystate.Key) (*Hierarchy, bool) {
	return Find(c.hierarchies, key)
}

// Plan returns the update Set would commit for the current state, and false
// when it would be a no-op.
func (c *Controller) Plan(key querystate.Key, value string) (querystate.Changes, bool) {
	return Plan(c.hierarchies, c.store.Values(), key, value)
}

// Set changes key and clears its descendants in one store update. It reports
// whether the store navigated.
func (c *Controller) Set(key querystate.Key, value string) bool {
	changes, ok := c.Plan(key, value)
	if !ok {
		return false
	}
	return c.store.Update(changes)
}

// Find returns the hierarchy containing key
func Find(hierarchies []*Hierarchy, key querystate.Key) (*Hierarchy, bool) {
	for _, h := range hierarchies {
		if h.Contains(key) {
			return h, true
		}
	}
	return nil, false
}

// Plan computes the combined update for key without a store: the
// hierarchy's cascade for hierarchical keys, a single-key change otherwise.
func Plan(hierarchies []*Hierarchy, current querystate.Values, key querystate.Key, value string) (querystate.Changes, bool) {
	if h, ok := Find(hierarchies, key); ok {
		return h.Change(current, key, value)
	}
	value = querystate.NormalizeValue(value)
	if current.Get(key) == value {
		return nil, false
	}
	return querystate.Changes{key: value}, true
}

// Effective drops orphaned values of every hierarchy
func Effective(hierarchies []*Hierarchy, values querystate.Values) querystate.Values {
	out := values
	for _, h := range hierarchies {
		out = h.Effective(out)
	}
	return out
}
