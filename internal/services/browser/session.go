package browser

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"collections/internal/domain/collection"
	"collections/internal/events"
	"collections/internal/metrics"
	"collections/pkg/cascade"
	"collections/pkg/errors"
	"collections/pkg/logger"
	"collections/pkg/options"
	"collections/pkg/querystate"
	"collections/pkg/search"
	"collections/pkg/smartfilter"
)

// Inbound message types
const (
	MsgSearch = "search"
	MsgMore   = "more"
	MsgOpen   = "open"
	MsgRender = "render"
	MsgChange = "change"
	MsgClear  = "clear"
	MsgPage   = "page"
	MsgSync   = "sync"
)

// Outbound message types
const (
	MsgState    = "state"
	MsgFilter   = "filter"
	MsgNavigate = "navigate"
	MsgError    = "error"
)

// Inbound is a message from the browser tab
type Inbound struct {
	Type   string             `json:"type"`
	Key    querystate.Key     `json:"key,omitempty"`
	Text   string             `json:"text,omitempty"`
	Action smartfilter.Action `json:"action,omitempty"`
	Value  string             `json:"value,omitempty"`
	Page   int                `json:"page,omitempty"`
	// Query is the URL after back/forward navigation (sync).
	Query string `json:"query,omitempty"`
}

// Outbound is a message pushed to the browser tab
type Outbound struct {
	Type       string             `json:"type"`
	Key        querystate.Key     `json:"key,omitempty"`
	State      *search.State      `json:"state,omitempty"`
	View       *smartfilter.View  `json:"view,omitempty"`
	Query      *string            `json:"query,omitempty"`
	Generation uint64             `json:"generation,omitempty"`
	Changes    querystate.Changes `json:"changes,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Session is one browser tab's live filter panel. Typing is debounced
// here, stale option pages are dropped, and every committed change is
// pushed back as a navigation for the tab to apply to its history.
type Session struct {
	id    string
	svc   *Service
	tag   language.Tag
	ctx   context.Context
	store *querystate.Store
	ctrl  *cascade.Controller
	send  func(Outbound)
	log   *logger.Logger

	searchers map[querystate.Key]*search.Searcher
	// typing holds free-text changes until the user pauses.
	typing map[querystate.Key]*search.Debouncer

	// writes serializes commits from the read loop and typing timers.
	writes sync.Mutex

	mu     sync.Mutex
	prev   querystate.Values
	closed bool
}

// NewSession opens a live session over values. send must be safe for
// concurrent use: searchers push from their own goroutines.
func (s *Service) NewSession(ctx context.Context, values querystate.Values, tag language.Tag, send func(Outbound)) (*Session, error) {
	id := uuid.NewString()
	sess := &Session{
		id:        id,
		svc:       s,
		tag:       tag,
		ctx:       errors.WithSessionID(ctx, id),
		send:      send,
		log:       s.log.With("session_id", id),
		searchers: make(map[querystate.Key]*search.Searcher),
		typing:    make(map[querystate.Key]*search.Debouncer),
		prev:      cascade.Effective(s.hierarchies, values),
	}
	sess.store = querystate.NewStore(values, querystate.NavigatorFunc(sess.navigated))

	ctrl, err := cascade.NewController(sess.store, s.hierarchies...)
	if err != nil {
		return nil, err
	}
	sess.ctrl = ctrl

	for _, f := range collection.Filters() {
		switch {
		case f.Remote():
			sess.searchers[f.Key] = sess.newSearcher(f)
		case f.Kind == smartfilter.KindText:
			sess.typing[f.Key] = search.NewDebouncer(s.cfg.TextDelay, nil)
		}
	}

	metrics.LiveSessions.Inc()
	sess.log.Debugw("Live session opened", "query", values.Encode())
	return sess, nil
}

func (sess *Session) newSearcher(f collection.Filter) *search.Searcher {
	svc := sess.svc
	return search.NewSearcher(search.Config{
		Key: f.Key.String(),
		Fetch: func(ctx context.Context, q search.Query) (options.Page, error) {
			page, _, err := svc.fetchPage(ctx, f, sess.effective(), q.Text, q.Page, q.PageSize, sess.tag)
			return page, err
		},
		Delay:    svc.cfg.SearchDelay,
		Timeout:  svc.cfg.RequestTimeout,
		PageSize: svc.cfg.PageSize,
		Listener: func(st search.State) {
			sess.push(Outbound{Type: MsgState, Key: f.Key, State: &st})
		},
		Observer: metrics.SearchObserver{},
	}, sess.log)
}

// ID returns the session id
func (sess *Session) ID() string {
	return sess.id
}

// Context carries the session id for error tracking
func (sess *Session) Context() context.Context {
	return sess.ctx
}

// Values returns the session's current query
func (sess *Session) Values() querystate.Values {
	return sess.store.Values()
}

// Start loads the first page of every enabled remote filter
func (sess *Session) Start() {
	values := sess.store.Values()
	for key, sr := range sess.searchers {
		f, _ := collection.Lookup(key)
		if ok, _ := sess.svc.enabled(sess.tag, f, values); ok {
			sr.Prime()
		}
	}
}

// Handle applies one inbound message
func (sess *Session) Handle(in Inbound) error {
	if sess.isClosed() {
		return errors.Wrapf(errors.ErrSessionClosed, "session %s", sess.id)
	}

	switch in.Type {
	case MsgSearch:
		sr, err := sess.searcher(in.Key)
		if err != nil {
			return err
		}
		sr.Search(in.Text)
	case MsgMore:
		sr, err := sess.searcher(in.Key)
		if err != nil {
			return err
		}
		sr.LoadMore()
	case MsgOpen:
		sr, err := sess.searcher(in.Key)
		if err != nil {
			return err
		}
		if !sr.Prime() {
			st := sr.State()
			sess.push(Outbound{Type: MsgState, Key: in.Key, State: &st})
		}
	case MsgRender:
		return sess.render(in.Key)
	case MsgChange:
		if d, ok := sess.typing[in.Key]; ok {
			if in.Action != smartfilter.ActionClear {
				d.Trigger(func() { sess.commitTyped(in) })
				return nil
			}
			d.Stop()
		}
		return sess.commit(in)
	case MsgClear:
		sess.stopTyping()
		sess.writes.Lock()
		sess.svc.clear(sess.ctx, sess.store, events.SourceLive)
		sess.writes.Unlock()
	case MsgPage:
		sess.writes.Lock()
		if sess.store.SetPage(in.Page) {
			metrics.RecordNavigation(events.SourceLive, []string{querystate.PageKey.String()})
		} else {
			metrics.RecordNoop(events.SourceLive)
		}
		sess.writes.Unlock()
	case MsgSync:
		sess.stopTyping()
		values := querystate.Parse(in.Query)
		sess.writes.Lock()
		sess.store.Sync(values)
		sess.refresh(values)
		sess.writes.Unlock()
	default:
		return errors.Wrapf(errors.ErrUnsupportedAction, "message %q", in.Type)
	}
	return nil
}

// Close stops every searcher. Safe to call more than once.
func (sess *Session) Close() {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true
	sess.mu.Unlock()

	sess.stopTyping()
	for _, sr := range sess.searchers {
		sr.Close()
	}
	metrics.LiveSessions.Dec()
	sess.log.Debugw("Live session closed")
}

// commit applies one change as a navigation
func (sess *Session) commit(in Inbound) error {
	sess.writes.Lock()
	defer sess.writes.Unlock()

	_, err := sess.svc.change(sess.ctx, sess.store, sess.ctrl, in.Key,
		smartfilter.Input{Action: in.Action, Value: in.Value}, sess.tag,
		sess.live(in.Key, nil), events.SourceLive)
	return err
}

// commitTyped runs when typing pauses; nobody waits for its error.
func (sess *Session) commitTyped(in Inbound) {
	if err := sess.commit(in); err != nil {
		sess.log.Debugw("Typed filter change rejected", "filter", in.Key, "error", err)
		sess.push(Outbound{Type: MsgError, Key: in.Key, Error: err.Error()})
	}
}

func (sess *Session) stopTyping() {
	for _, d := range sess.typing {
		d.Stop()
	}
}

func (sess *Session) live(key querystate.Key, resolved func([]options.Option)) *live {
	return &live{searcher: sess.searchers[key], resolved: resolved}
}

// render pushes the view of one filter. The list comes from the searcher
// when it holds one; a selection that needs a fetch follows in a second
// filter message.
func (sess *Session) render(key querystate.Key) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}

	late := &lateSelection{}
	p, err := sess.svc.props(sess.ctx, f, sess.store.Values(), sess.tag, sess.live(key, func(opts []options.Option) {
		if v := late.resolve(opts); v != nil {
			sess.push(Outbound{Type: MsgFilter, Key: key, View: v})
		}
	}))
	if err != nil {
		return err
	}
	v, err := sess.svc.dispatcher.Render(sess.ctx, p)
	if err != nil {
		return err
	}
	sess.push(Outbound{Type: MsgFilter, Key: key, View: late.rendered(v)})
	return nil
}

// lateSelection merges a selection resolved in the background into the
// view it belongs to, whichever of the two finishes first.
type lateSelection struct {
	mu       sync.Mutex
	view     *smartfilter.View
	selected []options.Option
	resolved bool
}

func (l *lateSelection) rendered(v smartfilter.View) *smartfilter.View {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved {
		v.Selected = l.selected
	}
	l.view = &v
	return &v
}

// resolve returns the updated view, or nil while the render is running
func (l *lateSelection) resolve(opts []options.Option) *smartfilter.View {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected, l.resolved = opts, true
	if l.view == nil {
		return nil
	}
	v := *l.view
	v.Selected = opts
	return &v
}

func (sess *Session) searcher(key querystate.Key) (*search.Searcher, error) {
	if _, err := lookup(key); err != nil {
		return nil, err
	}
	sr, ok := sess.searchers[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedAction, "%s is not searchable", key)
	}
	f, _ := collection.Lookup(key)
	if ok, reason := sess.svc.enabled(sess.tag, f, sess.store.Values()); !ok {
		return nil, errors.Wrapf(errors.ErrPrerequisiteMissing, "%s: %s", key, reason)
	}
	return sr, nil
}

// navigated runs after the store commits
func (sess *Session) navigated(nav querystate.Navigation) {
	query := nav.Query
	sess.push(Outbound{
		Type:       MsgNavigate,
		Query:      &query,
		Generation: nav.Generation,
	})
	sess.refresh(nav.Values)
}

// refresh resets every searcher whose scope changed and reloads the ones
// that are usable under the new values.
func (sess *Session) refresh(values querystate.Values) {
	next := cascade.Effective(sess.svc.hierarchies, values)

	sess.mu.Lock()
	prev := sess.prev
	sess.prev = next
	sess.mu.Unlock()

	for key, sr := range sess.searchers {
		f, _ := collection.Lookup(key)
		parent := f.Entity.ParentKey
		if parent == "" || prev.Get(parent) == next.Get(parent) {
			continue
		}
		sr.Reset()
		if ok, _ := sess.svc.enabled(sess.tag, f, values); ok {
			sr.Prime()
		}
	}
}

func (sess *Session) effective() querystate.Values {
	return cascade.Effective(sess.svc.hierarchies, sess.store.Values())
}

func (sess *Session) isClosed() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.closed
}

func (sess *Session) push(msg Outbound) {
	if sess.isClosed() || sess.send == nil {
		return
	}
	sess.send(msg)
}
