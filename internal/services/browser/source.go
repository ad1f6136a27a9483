package browser

import (
	"context"
	"sync"

	"golang.org/x/text/language"

	"collections/internal/domain/collection"
	"collections/pkg/options"
	"collections/pkg/querystate"
	"collections/pkg/search"
	"collections/pkg/smartfilter"
)

// live ties a render to the session searcher of the same filter
type live struct {
	searcher *search.Searcher
	// resolved, when set, receives a selection resolved after the render
	// returned instead of blocking it.
	resolved func([]options.Option)
}

func (l *live) visible() []options.Option {
	if l == nil || l.searcher == nil {
		return nil
	}
	return l.searcher.Options()
}

// listSource backs a remote filter for one render. The page it loads is
// remembered so the selected option resolves without another request when
// it is on that page.
type listSource struct {
	svc    *Service
	filter collection.Filter
	values querystate.Values
	tag    language.Tag
	live   *live

	mu     sync.Mutex
	loaded []options.Entity
}

var _ smartfilter.Source = (*listSource)(nil)

func (s *Service) source(f collection.Filter, values querystate.Values, tag language.Tag, lv *live) *listSource {
	return &listSource{
		svc:    s,
		filter: f,
		values: values,
		tag:    tag,
		live:   lv,
	}
}

// Page implements smartfilter.Source. A live searcher that already holds
// the list answers without a request, and one that does not is seeded with
// the page fetched here.
func (l *listSource) Page(ctx context.Context) options.Page {
	var sr *search.Searcher
	if l.live != nil {
		sr = l.live.searcher
	}
	if sr != nil {
		if page, ok := sr.Current(); ok {
			return page
		}
	}

	page, loaded, err := l.svc.fetchPage(ctx, l.filter, l.values, "", 1, l.svc.cfg.PageSize, l.tag)
	if err != nil {
		l.svc.log.Warnw("Failed to load first option page",
			"filter", l.filter.Key,
			"error", err,
		)
		return options.Page{Options: []options.Option{}, Page: 1}
	}

	l.mu.Lock()
	l.loaded = loaded
	l.mu.Unlock()
	if sr != nil {
		sr.Seed(page)
	}
	return page
}

// Selected implements smartfilter.Source
func (l *listSource) Selected(ctx context.Context, id string) []options.Option {
	l.mu.Lock()
	loaded := l.loaded
	l.mu.Unlock()

	lookup := options.Lookup{
		Kind:    l.filter.Entity.Name,
		ID:      id,
		Fetch:   l.svc.fetchByID(l.filter),
		Loaded:  loaded,
		Visible: l.live.visible(),
		Label:   options.LocalizedLabel(l.tag),
	}
	if l.live != nil && l.live.resolved != nil {
		return l.svc.resolver.ResolveAsync(ctx, lookup, l.live.resolved)
	}
	return l.svc.resolver.Resolve(ctx, lookup)
}
