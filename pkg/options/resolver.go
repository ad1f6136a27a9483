package options

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"collections/pkg/errors"
	"collections/pkg/logger"
)

// FetchByID loads a single entity from the data service
type FetchByID func(ctx context.Context, id string) (Entity, error)

// Source tells where a resolved option came from, for metrics.
type Source string

const (
	SourceLoaded   Source = "loaded"
	SourceCache    Source = "cache"
	SourceFetch    Source = "fetch"
	SourceDegraded Source = "degraded"
)

// Observer receives resolution outcomes
type Observer interface {
	Resolved(kind string, source Source)
}

type nopObserver struct{}

func (nopObserver) Resolved(string, Source) {}

// Lookup describes the selection to resolve.
type Lookup struct {
	Kind string
	ID   string
	// Fetch is used only when the id is neither loaded nor cached.
	Fetch FetchByID
	// Loaded is the page of entities already fetched for display.
	Loaded []Entity
	// Visible are options already rendered (e.g. a live searcher's list).
	Visible []Option
	Label   Labeler
}

// Resolver produces the option to display for the current selection,
// preferring data already on screen and falling back to a cached, shared
// fetch by id.
type Resolver struct {
	cache    Cache
	group    singleflight.Group
	timeout  time.Duration
	observer Observer
	log      *logger.Logger
}

// ResolverConfig configures a Resolver
type ResolverConfig struct {
	Cache    Cache
	Timeout  time.Duration
	Observer Observer
}

// NewResolver creates a resolver. A nil cache falls back to memory.
func NewResolver(cfg ResolverConfig, log *logger.Logger) *Resolver {
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Resolver{
		cache:    cfg.Cache,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		log:      log.Component("option_resolver"),
	}
}

// Resolve returns zero or one option for l.ID, blocking on a fetch when
// needed. Failures degrade to the raw id as label.
func (r *Resolver) Resolve(ctx context.Context, l Lookup) []Option {
	if opt, ok := r.local(ctx, l); ok {
		return opt
	}
	id := strings.TrimSpace(l.ID)

	e, err := r.fetch(ctx, l.Kind, id, l.Fetch)
	if err != nil {
		r.log.Warnw("Failed to resolve selected option",
			"kind", l.Kind,
			"id", id,
			"error", err,
		)
		r.observer.Resolved(l.Kind, SourceDegraded)
		return []Option{{Label: id, Value: id}}
	}
	r.observer.Resolved(l.Kind, SourceFetch)
	return []Option{FromEntity(e, l.Label)}
}

// ResolveAsync returns the option immediately when it is loaded or cached.
// Otherwise it returns an empty slice and calls done once the fetch settles.
// Concurrent calls for the same (kind, id) share one fetch.
func (r *Resolver) ResolveAsync(ctx context.Context, l Lookup, done func([]Option)) []Option {
	if opt, ok := r.local(ctx, l); ok {
		return opt
	}
	go func() {
		opts := r.Resolve(context.WithoutCancel(ctx), l)
		if done != nil {
			done(opts)
		}
	}()
	return []Option{}
}

// local answers from the loaded page, the visible options, or the cache.
func (r *Resolver) local(ctx context.Context, l Lookup) ([]Option, bool) {
	id := strings.TrimSpace(l.ID)
	if id == "" {
		return []Option{}, true
	}
	if e, ok := FindEntity(l.Loaded, id); ok {
		r.observer.Resolved(l.Kind, SourceLoaded)
		return []Option{FromEntity(e, l.Label)}, true
	}
	if o, ok := FindOption(l.Visible, id); ok {
		r.observer.Resolved(l.Kind, SourceLoaded)
		return []Option{o}, true
	}
	e, ok, err := r.cache.Get(ctx, l.Kind, id)
	if err != nil {
		r.log.Debugw("Entity cache read failed", "kind", l.Kind, "id", id, "error", err)
	}
	if ok {
		r.observer.Resolved(l.Kind, SourceCache)
		return []Option{FromEntity(e, l.Label)}, true
	}
	return nil, false
}

func (r *Resolver) fetch(ctx context.Context, kind, id string, fetch FetchByID) (Entity, error) {
	if fetch == nil {
		return Entity{}, errors.Wrapf(errors.ErrInvalidInput, "no fetcher for %s", kind)
	}

	v, err, _ := r.group.Do(CacheKey(kind, id), func() (interface{}, error) {
		// Shared by every waiter, so it must not die with the first caller.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		e, err := fetch(fctx, id)
		if err != nil {
			return Entity{}, errors.Wrapf(err, "fetch %s %s", kind, id)
		}
		if e.ID == "" {
			e.ID = ID(id)
		}
		if err := r.cache.Set(fctx, kind, id, e); err != nil {
			r.log.Debugw("Entity cache write failed", "kind", kind, "id", id, "error", err)
		}
		return e, nil
	})
	if err != nil {
		return Entity{}, err
	}
	return v.(Entity), nil
}
