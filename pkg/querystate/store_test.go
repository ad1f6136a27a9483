package querystate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	navs []Navigation
}

func (r *recorder) Navigate(nav Navigation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navs = append(r.navs, nav)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.navs)
}

func TestParseNormalizesUnsetAliases(t *testing.T) {
	v := Parse("?countryId=PE&classId=all&orderId=&searchTerm=%20frog%20")

	assert.Equal(t, Values{"countryId": "PE", "searchTerm": "frog"}, v)
	assert.Equal(t, "countryId=PE&searchTerm=frog", v.Encode())
}

func TestStoreUpdate(t *testing.T) {
	t.Run("sets values and drops page", func(t *testing.T) {
		rec := &recorder{}
		s := NewStore(Values{"page": "4", "countryId": "PE"}, rec)

		changed := s.Update(Changes{"departmentId": "7"})

		require.True(t, changed)
		require.Equal(t, 1, rec.count())
		assert.Equal(t, "countryId=PE&departmentId=7", rec.navs[0].Query)
		assert.Equal(t, uint64(1), rec.navs[0].Generation)
		assert.False(t, s.Values().Has(PageKey))
	})

	t.Run("all and empty delete the key", func(t *testing.T) {
		for _, unset := range []string{"", "all", "  "} {
			rec := &recorder{}
			s := NewStore(Values{"sexId": "2", "hasEggs": "1"}, rec)

			s.Update(Changes{"sexId": unset})

			assert.Equal(t, Values{"hasEggs": "1"}, s.Values(), "unset alias %q", unset)
		}
	})

	t.Run("same update twice navigates once", func(t *testing.T) {
		rec := &recorder{}
		s := NewStore(Values{}, rec)
		changes := Changes{"classId": "3", "orderId": ""}

		assert.True(t, s.Update(changes))
		first := s.Values()
		assert.False(t, s.Update(changes))

		assert.Equal(t, first, s.Values())
		assert.Equal(t, 1, rec.count())
	})

	t.Run("no-op after normalization does not navigate", func(t *testing.T) {
		rec := &recorder{}
		s := NewStore(Values{"countryId": "PE"}, rec)

		assert.False(t, s.Update(Changes{"countryId": " PE ", "departmentId": "all"}))
		assert.False(t, s.Update(Changes{}))
		assert.Equal(t, 0, rec.count())
		assert.Equal(t, uint64(0), s.Generation())
	})

	t.Run("multi-key change is one navigation", func(t *testing.T) {
		rec := &recorder{}
		s := NewStore(Values{"countryId": "PE", "departmentId": "7", "provinceId": "12"}, rec)

		s.Update(Changes{"countryId": "BR", "departmentId": "", "provinceId": "", "districtId": "", "localityId": ""})

		require.Equal(t, 1, rec.count())
		assert.Equal(t, "countryId=BR", rec.navs[0].Query)
	})
}

func TestStoreSetPageKeepsFilters(t *testing.T) {
	rec := &recorder{}
	s := NewStore(Values{"classId": "2"}, rec)

	assert.True(t, s.SetPage(3))
	assert.Equal(t, "classId=2&page=3", rec.navs[0].Query)

	assert.True(t, s.SetPage(1))
	assert.Equal(t, "classId=2", rec.navs[1].Query)

	assert.False(t, s.SetPage(0))
}

func TestStoreClear(t *testing.T) {
	rec := &recorder{}
	s := NewStore(Values{"classId": "2", "hasEggs": "1", "view": "grid", "page": "2"}, rec)

	assert.True(t, s.Clear("classId", "hasEggs"))
	assert.Equal(t, Values{"view": "grid"}, s.Values())
}

func TestStoreSyncDoesNotNavigate(t *testing.T) {
	rec := &recorder{}
	s := NewStore(nil, rec)

	s.Sync(Values{"countryId": "PE"})

	assert.Equal(t, "PE", s.Get("countryId"))
	assert.Equal(t, 0, rec.count())
}

func TestStoreConcurrentWritersSerialize(t *testing.T) {
	rec := &recorder{}
	s := NewStore(Values{}, rec)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.SetPage(n + 2)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int(s.Generation()), rec.count())
	for i, nav := range rec.navs {
		assert.Equal(t, uint64(i+1), nav.Generation)
	}
}
