package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections/pkg/logger"
	"collections/pkg/options"
)

// manualClock fires scheduled funcs only when advanced
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// call is one fetch the test releases by hand
type call struct {
	q       Query
	release chan options.Page
}

type scriptedFetch struct {
	calls chan call
	count atomic.Int32
}

func newScriptedFetch() *scriptedFetch {
	return &scriptedFetch{calls: make(chan call, 16)}
}

func (f *scriptedFetch) fetch(_ context.Context, q Query) (options.Page, error) {
	f.count.Add(1)
	c := call{q: q, release: make(chan options.Page, 1)}
	f.calls <- c
	return <-c.release, nil
}

func (f *scriptedFetch) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(time.Second):
		t.Fatal("expected a fetch")
		return call{}
	}
}

type countingObserver struct {
	issued, stale, failed atomic.Int32
}

func (o *countingObserver) Issued(string) { o.issued.Add(1) }
func (o *countingObserver) Stale(string)  { o.stale.Add(1) }
func (o *countingObserver) Failed(string) { o.failed.Add(1) }

func page(prefix string, n, pageNo int, more bool) options.Page {
	opts := make([]options.Option, 0, n)
	for i := 0; i < n; i++ {
		v := fmt.Sprintf("%s%d", prefix, i)
		opts = append(opts, options.Option{Label: v, Value: v})
	}
	return options.Page{Options: opts, Page: pageNo, HasMore: more}
}

type harness struct {
	clock    *manualClock
	fetch    *scriptedFetch
	observer *countingObserver
	states   chan State
	searcher *Searcher
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		clock:    &manualClock{},
		fetch:    newScriptedFetch(),
		observer: &countingObserver{},
		states:   make(chan State, 64),
	}
	h.searcher = NewSearcher(Config{
		Key:       "speciesId",
		Fetch:     h.fetch.fetch,
		Observer:  h.observer,
		AfterFunc: h.clock.AfterFunc,
		Listener:  func(s State) { h.states <- s },
	}, logger.Nop())
	t.Cleanup(h.searcher.Close)
	return h
}

// settled waits until the searcher reports a state with no pending work
func (h *harness) settled(t *testing.T) State {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case s := <-h.states:
			if !s.Loading {
				return s
			}
		case <-deadline:
			t.Fatal("searcher did not settle")
			return State{}
		}
	}
}

func TestSearchCoalescesKeystrokes(t *testing.T) {
	h := newHarness(t)

	h.searcher.Search("a")
	h.clock.Advance(100 * time.Millisecond)
	h.searcher.Search("am")
	h.clock.Advance(100 * time.Millisecond)
	h.searcher.Search("amp")
	h.clock.Advance(299 * time.Millisecond)
	assert.Equal(t, int32(0), h.fetch.count.Load())

	h.clock.Advance(time.Millisecond)
	c := h.fetch.next(t)
	assert.Equal(t, Query{Text: "amp", Page: 1, PageSize: 20}, c.q)

	c.release <- page("amp", 2, 1, false)
	st := h.settled(t)
	assert.Len(t, st.Options, 2)
	assert.Equal(t, int32(1), h.fetch.count.Load())
}

func TestSearchDiscardsSupersededResponse(t *testing.T) {
	h := newHarness(t)

	h.searcher.Search("am")
	h.clock.Advance(DefaultDelay)
	first := h.fetch.next(t)

	h.searcher.Search("amp")
	h.clock.Advance(DefaultDelay)
	second := h.fetch.next(t)
	assert.Equal(t, "amp", second.q.Text)

	second.release <- page("amp", 1, 1, false)
	st := h.settled(t)
	assert.Equal(t, "amp0", st.Options[0].Value)

	first.release <- page("am", 5, 1, true)
	require.Eventually(t, func() bool { return h.observer.stale.Load() == 1 }, time.Second, 5*time.Millisecond)

	got := h.searcher.State()
	assert.Equal(t, []options.Option{{Label: "amp0", Value: "amp0"}}, got.Options)
	assert.False(t, got.HasMore)
}

func TestLoadMoreAppendsAndSearchReplaces(t *testing.T) {
	h := newHarness(t)

	h.searcher.Seed(page("p1-", 3, 1, true))
	st := h.settled(t)
	require.True(t, st.CanLoadMore)

	require.True(t, h.searcher.LoadMore())
	assert.False(t, h.searcher.LoadMore(), "second load more while pending is ignored")

	c := h.fetch.next(t)
	assert.Equal(t, Query{Text: "", Page: 2, PageSize: 20}, c.q)
	c.release <- page("p2-", 2, 2, false)

	st = h.settled(t)
	assert.Len(t, st.Options, 5)
	assert.Equal(t, 2, st.Page)
	assert.False(t, st.HasMore)
	assert.False(t, h.searcher.LoadMore())

	h.searcher.Search("bu")
	h.clock.Advance(DefaultDelay)
	c = h.fetch.next(t)
	assert.Equal(t, 1, c.q.Page)
	c.release <- page("bu", 1, 1, true)

	st = h.settled(t)
	assert.Equal(t, []options.Option{{Label: "bu0", Value: "bu0"}}, st.Options)
	assert.Equal(t, 1, st.Page)
	assert.True(t, st.CanLoadMore)
}

func TestLoadMoreHiddenWhileFirstPagePending(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.searcher.Prime())
	assert.False(t, h.searcher.Prime(), "prime while loading is ignored")

	st := h.searcher.State()
	assert.True(t, st.Loading)
	assert.False(t, st.CanLoadMore)
	assert.False(t, h.searcher.LoadMore())

	h.fetch.next(t).release <- page("x", 1, 1, true)
	st = h.settled(t)
	assert.True(t, st.CanLoadMore)
	assert.False(t, h.searcher.Prime(), "populated list is not refetched")
}

func TestCurrentReflectsSeededPage(t *testing.T) {
	h := newHarness(t)

	_, ok := h.searcher.Current()
	assert.False(t, ok, "nothing loaded yet")

	seeded := page("c", 2, 1, true)
	seeded.Total = 40
	h.searcher.Seed(seeded)

	got, ok := h.searcher.Current()
	require.True(t, ok)
	assert.Equal(t, seeded, got)
	assert.False(t, h.searcher.Prime(), "seeded list is not refetched")
	assert.Equal(t, int32(0), h.fetch.count.Load())

	h.searcher.Reset()
	_, ok = h.searcher.Current()
	assert.False(t, ok)
}

func TestLoadMoreIgnoredWhileTyping(t *testing.T) {
	h := newHarness(t)
	h.searcher.Seed(page("s", 2, 1, true))

	h.searcher.Search("new")
	assert.False(t, h.searcher.LoadMore())
	assert.False(t, h.searcher.State().CanLoadMore)
}

func TestResetClearsOptionsAndDropsInFlight(t *testing.T) {
	h := newHarness(t)

	h.searcher.Seed(page("d", 3, 1, true))
	require.True(t, h.searcher.LoadMore())
	c := h.fetch.next(t)

	h.searcher.Reset()
	c.release <- page("late", 3, 2, true)
	require.Eventually(t, func() bool { return h.observer.stale.Load() == 1 }, time.Second, 5*time.Millisecond)

	st := h.searcher.State()
	assert.Empty(t, st.Options)
	assert.False(t, st.HasMore)
	assert.Equal(t, 0, st.Page)
	assert.True(t, h.searcher.Prime(), "a reset list can be primed again")
}

func TestSearchFailureFallsBackToEmptyList(t *testing.T) {
	fetchErr := fmt.Errorf("data service unavailable")
	obs := &countingObserver{}
	states := make(chan State, 8)
	s := NewSearcher(Config{
		Key:      "genusId",
		Observer: obs,
		Fetch: func(context.Context, Query) (options.Page, error) {
			return options.Page{}, fetchErr
		},
		Listener: func(st State) { states <- st },
	}, logger.Nop())
	defer s.Close()

	s.Seed(page("g", 2, 1, true))
	<-states

	s.Search("zz")
	require.True(t, s.debouncer.Flush())

	require.Eventually(t, func() bool { return obs.failed.Load() == 1 }, time.Second, 5*time.Millisecond)
	st := s.State()
	assert.Empty(t, st.Options)
	assert.False(t, st.Loading)
}

func TestClosedSearcherIgnoresCalls(t *testing.T) {
	h := newHarness(t)
	h.searcher.Close()

	h.searcher.Search("x")
	h.clock.Advance(time.Second)
	assert.False(t, h.searcher.Prime())
	assert.False(t, h.searcher.LoadMore())
	assert.Equal(t, int32(0), h.fetch.count.Load())
}
