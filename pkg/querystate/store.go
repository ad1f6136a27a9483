package querystate

import (
	"strconv"
	"sync"
)

// Navigation is one committed change of the query string.
type Navigation struct {
	Generation uint64
	Values     Values
	Query      string
}

// Navigator receives committed navigations (HTTP redirect, live push, ...).
type Navigator interface {
	Navigate(nav Navigation)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(nav Navigation)

// Navigate implements Navigator
func (f NavigatorFunc) Navigate(nav Navigation) {
	f(nav)
}

// Store is the single writer of filter state. Every call that changes the
// query string produces exactly one Navigation; calls that would leave it
// unchanged produce none.
type Store struct {
	writeMu    sync.Mutex // serializes writers so navigations arrive in commit order
	mu         sync.Mutex
	current    Values
	generation uint64
	navigator  Navigator
}

// NewStore creates a store seeded with the current query snapshot
func NewStore(current Values, navigator Navigator) *Store {
	if current == nil {
		current = Values{}
	}
	return &Store{
		current:   current.Clone(),
		navigator: navigator,
	}
}

// Values returns a snapshot of the current state
func (s *Store) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Get returns the current value for key
func (s *Store) Get(key Key) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Get(key)
}

// Generation returns the number of navigations committed so far
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Update merges a batch of filter changes and resets pagination. It reports
// whether a navigation was committed.
func (s *Store) Update(changes Changes) bool {
	if len(changes) == 0 {
		return false
	}
	return s.commit(func(cur Values) Values {
		return Apply(cur, changes, true)
	})
}

// SetPage changes only the page key. Pages <= 1 remove it.
func (s *Store) SetPage(page int) bool {
	value := ""
	if page > 1 {
		value = strconv.Itoa(page)
	}
	return s.commit(func(cur Values) Values {
		return Apply(cur, Changes{PageKey: value}, false)
	})
}

// Clear removes every listed key and resets pagination
func (s *Store) Clear(keys ...Key) bool {
	changes := make(Changes, len(keys))
	for _, k := range keys {
		changes[k] = ""
	}
	return s.commit(func(cur Values) Values {
		return Apply(cur, changes, true)
	})
}

// Sync replaces the current state without navigating. It is used when the
// URL changed outside the store (browser back/forward).
func (s *Store) Sync(values Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if values == nil {
		values = Values{}
	}
	s.current = values.Clone()
}

func (s *Store) commit(next func(Values) Values) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	updated := next(s.current)
	if updated.Equal(s.current) {
		s.mu.Unlock()
		return false
	}
	s.current = updated
	s.generation++
	nav := Navigation{
		Generation: s.generation,
		Values:     updated.Clone(),
		Query:      updated.Encode(),
	}
	navigator := s.navigator
	s.mu.Unlock()

	if navigator != nil {
		navigator.Navigate(nav)
	}
	return true
}
