package collections

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections/internal/adapters/dataservice"
	"collections/internal/events"
	"collections/internal/services/browser"
	"collections/internal/testsupport"
	"collections/pkg/errors"
	"collections/pkg/logger"
	"collections/pkg/options"
	"collections/pkg/templates"
)

func newTestServer(t *testing.T) (*httptest.Server, *testsupport.FakeDataService) {
	t.Helper()
	fake := testsupport.NewFakeDataService(t)

	client, err := dataservice.New(dataservice.Config{BaseURL: fake.URL, Timeout: 2 * time.Second}, logger.Nop())
	require.NoError(t, err)

	svc := browser.NewService(
		client,
		options.NewResolver(options.ResolverConfig{}, logger.Nop()),
		templates.NewCopy(templates.Get(), "en", logger.Nop()),
		events.NewPublisher(nil, logger.Nop()),
		browser.Config{SearchDelay: 10 * time.Millisecond},
		logger.Nop(),
	)

	mux := http.NewServeMux()
	New(svc, Config{BasePath: "/collections/"}, logger.Nop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, fake
}

// noRedirect keeps the 303 visible to the test
func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func post(t *testing.T, srv *httptest.Server, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := noRedirect().PostForm(srv.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestChangeRedirectsToNormalizedURL(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv, "/collections/filters/countryId?page=2", url.Values{"value": {"PE"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/collections?countryId=PE", resp.Header.Get("Location"))

	resp = post(t, srv, "/collections/filters/departmentId?countryId=PE", url.Values{"value": {"7"}})
	assert.Equal(t, "/collections?countryId=PE&departmentId=7", resp.Header.Get("Location"))

	resp = post(t, srv, "/collections/filters/countryId?countryId=PE&departmentId=7", url.Values{"value": {"BR"}})
	assert.Equal(t, "/collections?countryId=BR", resp.Header.Get("Location"))
}

func TestChangeWithoutEffectIsNoContent(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv, "/collections/filters/searchTerm?searchTerm=rana", url.Values{"value": {" rana "}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestChangeErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv, "/collections/filters/colourId", url.Values{"value": {"red"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv, "/collections/filters/sexId", url.Values{"value": {"9"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv, "/collections/filters/departmentId", url.Values{"value": {"7"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestChangeAnswersJSONWhenAsked(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/collections/filters/hasEggs?classId=42",
		strings.NewReader(url.Values{"action": {"toggle"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result browser.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Changed)
	assert.Equal(t, "classId=42&hasEggs=1", result.Query)
}

func TestClearAndPage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv, "/collections/filters/clear?countryId=PE&view=grid", nil)
	assert.Equal(t, "/collections?view=grid", resp.Header.Get("Location"))

	resp = post(t, srv, "/collections/filters/clear", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = post(t, srv, "/collections/filters/page?countryId=PE", url.Values{"page": {"4"}})
	assert.Equal(t, "/collections?countryId=PE&page=4", resp.Header.Get("Location"))
}

func TestPanelAndOptions(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/collections/filters?countryId=PE&locale=es")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var panel browser.Panel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&panel))
	assert.Equal(t, "es", panel.Locale)
	assert.Equal(t, "countryId=PE", panel.Query, "locale is not page state")

	resp, err = http.Get(srv.URL + "/collections/options/departmentId?countryId=PE&q=lor&page=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var page options.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, []options.Option{{Label: "Loreto", Value: "7"}}, page.Options)
}

func TestOptionsSurviveOutage(t *testing.T) {
	srv, fake := newTestServer(t)
	fake.Fail("countries", true)

	resp, err := http.Get(srv.URL + "/collections/options/countryId")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var page options.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Empty(t, page.Options)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.Wrap(errors.ErrUnknownFilter, "x")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.NewValidationError("id", "empty", "")))
	assert.Equal(t, http.StatusConflict, StatusFor(errors.ErrPrerequisiteMissing))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(errors.ErrUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestOriginChecker(t *testing.T) {
	assert.Nil(t, originChecker(nil))

	check := originChecker([]string{"https://portal.example.org/"})
	r := httptest.NewRequest(http.MethodGet, "/collections/live", nil)
	r.Header.Set("Origin", "https://portal.example.org")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))

	assert.True(t, originChecker([]string{"*"})(r))
}

func TestLiveSession(t *testing.T) {
	srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/collections/live?countryId=PE"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(browser.Inbound{Type: browser.MsgChange, Key: "departmentId", Value: "7"}))
	require.NoError(t, conn.WriteJSON(browser.Inbound{Type: "shout"}))

	var navigated, rejected bool
	deadline := time.Now().Add(3 * time.Second)
	for !(navigated && rejected) && time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg browser.Outbound
		require.NoError(t, conn.ReadJSON(&msg))

		switch msg.Type {
		case browser.MsgNavigate:
			require.NotNil(t, msg.Query)
			assert.Equal(t, "countryId=PE&departmentId=7", *msg.Query)
			navigated = true
		case browser.MsgError:
			assert.Contains(t, msg.Error, "shout")
			rejected = true
		}
	}
	assert.True(t, navigated, "navigation pushed")
	assert.True(t, rejected, "bad message answered with an error")
}

func TestLiveConnSendReturnsAfterWriterFails(t *testing.T) {
	conns := make(chan *liveConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- newLiveConn(conn, logger.Nop())
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	lc := <-conns
	require.NoError(t, lc.conn.UnderlyingConn().Close())

	sent := make(chan struct{})
	go func() {
		for i := 0; i < liveSendBuffer*2; i++ {
			lc.send(browser.Outbound{Type: browser.MsgState})
		}
		close(sent)
	}()

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked after the writer stopped")
	}
	lc.close(websocket.CloseNormalClosure)
}
