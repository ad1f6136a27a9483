package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Record is one entity served by FakeDataService
type Record struct {
	ID     interface{}       `json:"id"`
	Name   string            `json:"name"`
	Names  map[string]string `json:"names,omitempty"`
	Parent string            `json:"-"`
}

// FakeDataService is an in-memory stand-in for the collection data service.
// It serves GET /{path} and GET /{path}/{id} with the same envelope.
type FakeDataService struct {
	URL string

	mu      sync.Mutex
	records map[string][]Record
	lists   map[string]int
	gets    map[string]int
	failing map[string]bool
	queries []string
}

// NewFakeDataService starts a server loaded with DefaultCatalog
func NewFakeDataService(t *testing.T) *FakeDataService {
	t.Helper()

	f := &FakeDataService{
		records: DefaultCatalog(),
		lists:   make(map[string]int),
		gets:    make(map[string]int),
		failing: make(map[string]bool),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	f.URL = srv.URL
	return f
}

// DefaultCatalog is a small catalog covering every hierarchy
func DefaultCatalog() map[string][]Record {
	return map[string][]Record{
		"countries": {
			{ID: "PE", Name: "Peru", Names: map[string]string{"es": "Perú"}},
			{ID: "BR", Name: "Brazil", Names: map[string]string{"es": "Brasil"}},
			{ID: "CO", Name: "Colombia"},
		},
		"departments": {
			{ID: 7, Name: "Loreto", Parent: "PE"},
			{ID: 8, Name: "Cusco", Parent: "PE"},
			{ID: 20, Name: "Amazonas", Parent: "BR"},
		},
		"provinces": {
			{ID: 70, Name: "Maynas", Parent: "7"},
			{ID: 71, Name: "Alto Amazonas", Parent: "7"},
		},
		"districts": {
			{ID: 700, Name: "Iquitos", Parent: "70"},
		},
		"localities": {
			{ID: 9001, Name: "Allpahuayo-Mishana", Parent: "700"},
		},
		"classes": {
			{ID: 42, Name: "Amphibia", Names: map[string]string{"es": "Anfibios"}},
			{ID: 2, Name: "Aves"},
		},
		"orders": {
			{ID: 5, Name: "Anura", Parent: "42"},
			{ID: 99, Name: "Caudata", Parent: "42"},
			{ID: 6, Name: "Passeriformes", Parent: "2"},
		},
		"families": {
			{ID: 9, Name: "Bufonidae", Parent: "5"},
		},
		"genera": {
			{ID: 31, Name: "Rhinella", Parent: "9"},
		},
		"species": {
			{ID: 501, Name: "Rhinella marina", Parent: "31"},
			{ID: 502, Name: "Rhinella poeppigii", Parent: "31"},
		},
		"institutions": {
			{ID: 1, Name: "Universidad Nacional Mayor de San Marcos"},
		},
		"museums": {
			{ID: 11, Name: "Museo de Historia Natural", Parent: "1"},
		},
		"sexes": {
			{ID: 1, Name: "Male", Names: map[string]string{"es": "Macho"}},
			{ID: 2, Name: "Female", Names: map[string]string{"es": "Hembra"}},
		},
		"forest-types": {
			{ID: 1, Name: "Varzea"},
			{ID: 2, Name: "Terra firme"},
		},
	}
}

// Add appends records to path
func (f *FakeDataService) Add(path string, records ...Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[path] = append(f.records[path], records...)
}

// Fail makes every request to path answer 503
func (f *FakeDataService) Fail(path string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[path] = failing
}

// ListCalls returns how many list requests path received
func (f *FakeDataService) ListCalls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists[path]
}

// GetCalls returns how many by-id requests path received
func (f *FakeDataService) GetCalls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[path]
}

// Queries returns the raw query strings of every list request
func (f *FakeDataService) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.queries...)
}

func (f *FakeDataService) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	path := parts[0]

	f.mu.Lock()
	records, known := f.records[path]
	failing := f.failing[path]
	if len(parts) > 1 {
		f.gets[path]++
	} else {
		f.lists[path]++
		f.queries = append(f.queries, r.URL.RawQuery)
	}
	records = append([]Record{}, records...)
	f.mu.Unlock()

	if failing {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if !known {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if len(parts) > 1 {
		for _, rec := range records {
			if recordID(rec) == parts[1] {
				_ = json.NewEncoder(w).Encode(rec)
				return
			}
		}
		http.NotFound(w, r)
		return
	}

	_ = json.NewEncoder(w).Encode(list(records, r))
}

func list(records []Record, r *http.Request) map[string]interface{} {
	q := r.URL.Query()
	text := strings.ToLower(q.Get("name") + q.Get("searchTerm"))

	parent := ""
	for key, vals := range q {
		if strings.HasSuffix(key, "Id") && len(vals) > 0 {
			parent = vals[0]
		}
	}

	matched := make([]Record, 0, len(records))
	for _, rec := range records {
		if text != "" && !strings.Contains(strings.ToLower(rec.Name), text) {
			continue
		}
		if parent != "" && rec.Parent != parent {
			continue
		}
		matched = append(matched, rec)
	}

	page := atoi(q.Get("page"), 1)
	size := atoi(q.Get("pageSize"), 20)
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	totalPages := (len(matched) + size - 1) / size

	return map[string]interface{}{
		"data":        matched[start:end],
		"currentPage": page,
		"totalPages":  totalPages,
		"totalItems":  len(matched),
	}
}

func recordID(r Record) string {
	switch id := r.ID.(type) {
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	default:
		b, _ := json.Marshal(id)
		return string(b)
	}
}

func atoi(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
