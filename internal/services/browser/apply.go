package browser

import (
	"context"
	"strconv"

	"golang.org/x/text/language"

	"collections/internal/domain/collection"
	"collections/internal/events"
	"collections/internal/metrics"
	"collections/pkg/cascade"
	"collections/pkg/errors"
	"collections/pkg/querystate"
	"collections/pkg/smartfilter"
)

// Result is the outcome of one interaction
type Result struct {
	// Changed is false when the interaction left the query as it was.
	Changed    bool               `json:"changed"`
	Changes    querystate.Changes `json:"changes,omitempty"`
	Values     querystate.Values  `json:"-"`
	Query      string             `json:"query"`
	Generation uint64             `json:"generation,omitempty"`
}

// Apply runs one interaction against the query in values. Changes to a
// hierarchy level clear every level below it in the same navigation.
func (s *Service) Apply(ctx context.Context, values querystate.Values, key querystate.Key, in smartfilter.Input, tag language.Tag) (Result, error) {
	store, result := s.detachedStore(values)
	ctrl, err := cascade.NewController(store, s.hierarchies...)
	if err != nil {
		return Result{}, err
	}

	changes, err := s.change(ctx, store, ctrl, key, in, tag, nil, events.SourceHTTP)
	if err != nil {
		return Result{}, err
	}
	return result.finish(store, changes), nil
}

// Clear removes every filter, keeping display keys such as the view.
func (s *Service) Clear(ctx context.Context, values querystate.Values) Result {
	store, result := s.detachedStore(values)
	removed := s.clear(ctx, store, events.SourceHTTP)
	return result.finish(store, removed)
}

// SetPage moves to another result page without touching filters
func (s *Service) SetPage(values querystate.Values, page int) Result {
	store, result := s.detachedStore(values)
	if !store.SetPage(page) {
		metrics.RecordNoop(events.SourceHTTP)
		return result.finish(store, nil)
	}
	metrics.RecordNavigation(events.SourceHTTP, []string{querystate.PageKey.String()})
	return result.finish(store, querystate.Changes{querystate.PageKey: store.Get(querystate.PageKey)})
}

type pending struct {
	nav *querystate.Navigation
}

func (p *pending) finish(store *querystate.Store, changes querystate.Changes) Result {
	values := store.Values()
	r := Result{
		Changed: p.nav != nil,
		Values:  values,
		Query:   values.Encode(),
	}
	if p.nav != nil {
		r.Changes = changes
		r.Generation = p.nav.Generation
	}
	return r
}

// detachedStore wraps a request's query in a store whose navigation is
// captured instead of delivered.
func (s *Service) detachedStore(values querystate.Values) (*querystate.Store, *pending) {
	p := &pending{}
	store := querystate.NewStore(values, querystate.NavigatorFunc(func(nav querystate.Navigation) {
		p.nav = &nav
	}))
	return store, p
}

// change dispatches in to the filter's kind and commits the resulting
// cascade as one update. It returns nil changes for a no-op.
func (s *Service) change(
	ctx context.Context,
	store *querystate.Store,
	ctrl *cascade.Controller,
	key querystate.Key,
	in smartfilter.Input,
	tag language.Tag,
	lv *live,
	transport string,
) (querystate.Changes, error) {
	f, err := lookup(key)
	if err != nil {
		return nil, err
	}
	p, err := s.props(ctx, f, store.Values(), tag, lv)
	if err != nil {
		return nil, err
	}

	var next string
	p.OnChange = func(value string) { next = value }
	if err := s.dispatcher.Handle(ctx, p, in); err != nil {
		return nil, err
	}

	changes, ok := ctrl.Plan(key, next)
	if !ok || !store.Update(changes) {
		metrics.RecordNoop(transport)
		s.log.Debugw("Filter change left query unchanged", "filter", key, "transport", transport)
		return nil, nil
	}

	keys := make([]string, 0, len(changes))
	var cleared []string
	for _, k := range changes.Keys() {
		keys = append(keys, k.String())
		if k != key {
			cleared = append(cleared, k.String())
		}
	}
	metrics.RecordNavigation(transport, keys)

	sessionID, _ := errors.SessionIDFrom(ctx)
	_ = s.publisher.PublishFilterChanged(ctx, events.FilterChangedEvent{
		BaseEvent:  events.NewBaseEvent(events.TypeFilterChanged, transport, sessionID),
		Key:        key.String(),
		Value:      changes[key],
		Cleared:    cleared,
		Query:      store.Values().Encode(),
		Generation: store.Generation(),
	})
	return changes, nil
}

// clear removes every filter key present in store
func (s *Service) clear(ctx context.Context, store *querystate.Store, transport string) querystate.Changes {
	current := store.Values()
	removed := querystate.Changes{}
	for _, k := range collection.FilterKeys() {
		if current.Has(k) {
			removed[k] = ""
		}
	}

	if !store.Clear(collection.FilterKeys()...) {
		metrics.RecordNoop(transport)
		return nil
	}

	keys := make([]string, 0, len(removed))
	for _, k := range removed.Keys() {
		keys = append(keys, k.String())
	}
	metrics.RecordNavigation(transport, keys)

	sessionID, _ := errors.SessionIDFrom(ctx)
	_ = s.publisher.PublishFiltersCleared(ctx, events.FiltersClearedEvent{
		BaseEvent: events.NewBaseEvent(events.TypeFiltersCleared, transport, sessionID),
		Removed:   keys,
		Query:     store.Values().Encode(),
	})
	return removed
}

// ParsePage reads a page parameter, defaulting to 1
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
