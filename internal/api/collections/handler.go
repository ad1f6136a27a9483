package collections

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"golang.org/x/text/language"

	"collections/internal/services/browser"
	"collections/pkg/errors"
	"collections/pkg/logger"
	"collections/pkg/querystate"
	"collections/pkg/smartfilter"
)

// Control parameters that ride along with the filter query but are not
// part of the page state.
const (
	localeParam = "locale"
	textParam   = "q"
)

// Config configures the handler
type Config struct {
	// BasePath is where the collections page lives, e.g. "/collections".
	BasePath string
	// AllowedOrigins for the live endpoint. Empty means same origin only;
	// "*" allows any origin.
	AllowedOrigins []string
}

// Handler serves the filter panel over HTTP and WebSocket
type Handler struct {
	svc      *browser.Service
	base     string
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// New creates the collections handler
func New(svc *browser.Service, cfg Config, log *logger.Logger) *Handler {
	base := "/" + strings.Trim(cfg.BasePath, "/")
	h := &Handler{
		svc:  svc,
		base: base,
		log:  log.Component("collections_api"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// Register mounts every route under the base path
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+h.base+"/filters", h.HandlePanel)
	mux.HandleFunc("POST "+h.base+"/filters/clear", h.HandleClear)
	mux.HandleFunc("POST "+h.base+"/filters/page", h.HandlePage)
	mux.HandleFunc("POST "+h.base+"/filters/{key}", h.HandleChange)
	mux.HandleFunc("GET "+h.base+"/filters/{key}", h.HandleFilter)
	mux.HandleFunc("GET "+h.base+"/options/{key}", h.HandleOptions)
	mux.HandleFunc("GET "+h.base+"/live", h.HandleLive)
}

// HandlePanel returns the whole filter panel for the query
func (h *Handler) HandlePanel(w http.ResponseWriter, r *http.Request) {
	panel, err := h.svc.Panel(r.Context(), state(r), h.locale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, panel)
}

// HandleFilter returns one filter view
func (h *Handler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	key := querystate.Key(r.PathValue("key"))
	view, err := h.svc.Filter(r.Context(), state(r), key, h.locale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleChange applies one interaction. It redirects to the new page URL,
// or answers 204 when the query would not change.
func (h *Handler) HandleChange(w http.ResponseWriter, r *http.Request) {
	key := querystate.Key(r.PathValue("key"))
	in := smartfilter.Input{
		Action: smartfilter.Action(r.PostFormValue("action")),
		Value:  r.PostFormValue("value"),
	}

	result, err := h.svc.Apply(r.Context(), state(r), key, in, h.locale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.navigate(w, r, result)
}

// HandleClear removes every filter
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.svc.Clear(r.Context(), state(r)))
}

// HandlePage changes the result page only
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	page := browser.ParsePage(r.PostFormValue("page"))
	h.navigate(w, r, h.svc.SetPage(state(r), page))
}

// HandleOptions returns one page of options. Data service failures give an
// empty page rather than an error.
func (h *Handler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	key := querystate.Key(r.PathValue("key"))
	q := r.URL.Query()
	page := browser.ParsePage(q.Get(string(querystate.PageKey)))

	values := state(r)
	delete(values, textParam)
	delete(values, querystate.PageKey)

	opts, err := h.svc.Options(r.Context(), values, key, q.Get(textParam), page, h.locale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, result browser.Result) {
	if !result.Changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, h.pageURL(result.Query), http.StatusSeeOther)
}

func (h *Handler) pageURL(query string) string {
	if query == "" {
		return h.base
	}
	return h.base + "?" + query
}

func (h *Handler) locale(r *http.Request) language.Tag {
	return h.svc.Locale(r.URL.Query().Get(localeParam), r.Header.Get("Accept-Language"))
}

// fail maps domain errors to status codes. Anything unexpected is reported.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorWithContext(r.Context(), err, map[string]string{"path": r.URL.Path})
	} else {
		h.log.Debugw("Rejected filter request", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// StatusFor returns the HTTP status for err
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrUnknownFilter), errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrPrerequisiteMissing):
		return http.StatusConflict
	case errors.Is(err, errors.ErrInvalidInput),
		errors.Is(err, errors.ErrInvalidChoice),
		errors.Is(err, errors.ErrUnsupportedAction),
		errors.Is(err, errors.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUnavailable), errors.Is(err, errors.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// state is the page's filter query without control parameters
func state(r *http.Request) querystate.Values {
	values := querystate.FromURL(r.URL.Query())
	delete(values, localeParam)
	return values
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}
