package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"collections/pkg/errors"
	"collections/pkg/logger"
	"collections/pkg/options"
)

// Query is one list request
type Query struct {
	Text     string
	Page     int
	PageSize int
}

// Fetch loads one page of options
type Fetch func(ctx context.Context, q Query) (options.Page, error)

// Observer receives request outcomes for metrics
type Observer interface {
	Issued(key string)
	Stale(key string)
	Failed(key string)
}

type nopObserver struct{}

func (nopObserver) Issued(string) {}
func (nopObserver) Stale(string)  {}
func (nopObserver) Failed(string) {}

// State is what the option list shows
type State struct {
	Text        string           `json:"text"`
	Page        int              `json:"page"`
	Options     []options.Option `json:"options"`
	HasMore     bool             `json:"hasMore"`
	Total       int              `json:"total,omitempty"`
	Loading     bool             `json:"loading"`
	CanLoadMore bool             `json:"canLoadMore"`
}

// Config configures a Searcher
type Config struct {
	// Key names the filter slot in logs and metrics.
	Key      string
	Fetch    Fetch
	Delay    time.Duration
	Timeout  time.Duration
	PageSize int
	// Listener is called after every applied change, outside the lock.
	Listener  func(State)
	Observer  Observer
	AfterFunc AfterFunc
}

// Searcher turns keystrokes into debounced, paginated list requests.
// Only the response of the latest request is ever applied.
type Searcher struct {
	key      string
	fetch    Fetch
	timeout  time.Duration
	pageSize int
	listener func(State)
	observer Observer
	log      *logger.Logger

	debouncer *Debouncer
	root      context.Context
	stop      context.CancelFunc

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	typed      string
	text       string
	page       int
	opts       []options.Option
	hasMore    bool
	total      int
	loading    bool
	populated  bool
	closed     bool
}

// NewSearcher creates a searcher for one filter slot
func NewSearcher(cfg Config, log *logger.Logger) *Searcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	root, stop := context.WithCancel(context.Background())
	return &Searcher{
		key:       cfg.Key,
		fetch:     cfg.Fetch,
		timeout:   cfg.Timeout,
		pageSize:  cfg.PageSize,
		listener:  cfg.Listener,
		observer:  cfg.Observer,
		log:       log.With("component", "searcher", "filter", cfg.Key),
		debouncer: NewDebouncer(cfg.Delay, cfg.AfterFunc),
		root:      root,
		stop:      stop,
		opts:      []options.Option{},
	}
}

// Search schedules a first-page request for text once typing pauses.
// Any request already in flight is superseded immediately.
func (s *Searcher) Search(text string) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.typed = text
	s.supersede()
	s.mu.Unlock()

	s.debouncer.Trigger(func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.issue(s.typed, 1, false)
		s.mu.Unlock()
		s.notify()
	})
	s.notify()
}

// LoadMore requests the next page for the current text. It is ignored
// when there is nothing more, a request is pending, or typing is in progress.
func (s *Searcher) LoadMore() bool {
	s.mu.Lock()
	if !s.canLoadMore() {
		s.mu.Unlock()
		return false
	}
	s.issue(s.text, s.page+1, true)
	s.mu.Unlock()

	s.notify()
	return true
}

// Seed populates the first page from data already fetched for display.
func (s *Searcher) Seed(page options.Page) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.supersede()
	s.debouncer.Stop()
	s.typed, s.text = "", ""
	s.page = page.Page
	if s.page < 1 {
		s.page = 1
	}
	s.opts = append([]options.Option{}, page.Options...)
	s.hasMore = page.HasMore
	s.total = page.Total
	s.loading = false
	s.populated = true
	s.mu.Unlock()

	s.notify()
}

// Prime fetches the first page unless the list is already populated or loading.
func (s *Searcher) Prime() bool {
	s.mu.Lock()
	if s.closed || s.populated || s.loading {
		s.mu.Unlock()
		return false
	}
	s.issue(s.typed, 1, false)
	s.mu.Unlock()

	s.notify()
	return true
}

// Reset drops every cached option and any request in flight.
func (s *Searcher) Reset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.clear()
	s.mu.Unlock()

	s.notify()
}

// Close cancels everything. The searcher is unusable afterwards.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.clear()
	s.closed = true
	s.stop()
}

// State returns a snapshot
func (s *Searcher) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Options returns the visible options
func (s *Searcher) Options() []options.Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]options.Option{}, s.opts...)
}

// Current returns the list as a page. It reports false while nothing has
// been loaded or requested, so the caller knows to fetch it.
func (s *Searcher) Current() (options.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.populated && !s.loading {
		return options.Page{}, false
	}
	page := s.page
	if page < 1 {
		page = 1
	}
	return options.Page{
		Options: append([]options.Option{}, s.opts...),
		HasMore: s.hasMore,
		Page:    page,
		Total:   s.total,
	}, true
}

// Generation returns the id of the latest request slot
func (s *Searcher) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// clear must be called with mu held
func (s *Searcher) clear() {
	s.supersede()
	s.debouncer.Stop()
	s.typed, s.text = "", ""
	s.page = 0
	s.opts = []options.Option{}
	s.hasMore = false
	s.total = 0
	s.loading = false
	s.populated = false
}

// supersede invalidates the request in flight. Must be called with mu held.
func (s *Searcher) supersede() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loading = false
}

// issue starts a request for the next generation. Must be called with mu held.
func (s *Searcher) issue(text string, page int, appendPage bool) {
	s.supersede()
	gen := s.generation

	ctx, cancel := context.WithTimeout(s.root, s.timeout)
	s.cancel = cancel
	s.loading = true
	if !appendPage {
		s.text = text
	}
	s.observer.Issued(s.key)

	q := Query{Text: text, Page: page, PageSize: s.pageSize}
	go s.run(ctx, cancel, gen, q, appendPage)
}

func (s *Searcher) run(ctx context.Context, cancel context.CancelFunc, gen uint64, q Query, appendPage bool) {
	defer cancel()

	var (
		page options.Page
		err  error
	)
	if s.fetch == nil {
		err = errors.Wrapf(errors.ErrInvalidInput, "no fetch configured for %s", s.key)
	} else {
		page, err = s.fetch(ctx, q)
	}

	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		s.observer.Stale(s.key)
		s.log.Debugw("Discarded stale option page",
			"generation", gen,
			"text", q.Text,
			"page", q.Page,
		)
		return
	}

	s.cancel = nil
	s.loading = false
	if err != nil {
		if !appendPage {
			s.opts = []options.Option{}
			s.hasMore = false
			s.page = 1
		}
		s.populated = true
		s.mu.Unlock()

		s.observer.Failed(s.key)
		s.log.Warnw("Failed to load options",
			"text", q.Text,
			"page", q.Page,
			"error", err,
		)
		s.notify()
		return
	}

	if appendPage {
		s.opts = append(s.opts, page.Options...)
	} else {
		s.opts = append([]options.Option{}, page.Options...)
	}
	s.page = q.Page
	s.hasMore = page.HasMore
	s.total = page.Total
	s.populated = true
	s.mu.Unlock()

	s.notify()
}

// canLoadMore must be called with mu held
func (s *Searcher) canLoadMore() bool {
	return !s.closed && s.hasMore && !s.loading && !s.debouncer.Pending() && s.typed == s.text
}

// snapshot must be called with mu held
func (s *Searcher) snapshot() State {
	return State{
		Text:        s.typed,
		Page:        s.page,
		Options:     append([]options.Option{}, s.opts...),
		HasMore:     s.hasMore,
		Total:       s.total,
		Loading:     s.loading || s.debouncer.Pending(),
		CanLoadMore: s.canLoadMore(),
	}
}

func (s *Searcher) notify() {
	if s.listener == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	st := s.snapshot()
	s.mu.Unlock()
	s.listener(st)
}
