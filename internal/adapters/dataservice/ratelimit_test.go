package dataservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections/internal/domain/collection"
	"collections/internal/metrics"
	"collections/pkg/errors"
	"collections/pkg/logger"
)

func TestLimiterKeepsCallerCancellation(t *testing.T) {
	l := NewLimiter("test", 0.001, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, errors.ErrRateLimitExceeded)

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), errors.ErrRateLimitExceeded)
}

func TestSupersededCallIsNotCountedAsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"currentPage":1,"totalPages":1,"totalItems":0}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, RateLimit: 0.001, Burst: 1}, logger.Nop())
	require.NoError(t, err)

	limited := metrics.DataServiceCalls.WithLabelValues(collection.Genus.Name, "list", "rate_limited")
	before := testutil.ToFloat64(limited)

	_, err = c.List(context.Background(), collection.Genus, collection.ListQuery{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.List(ctx, collection.Genus, collection.ListQuery{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, testutil.ToFloat64(limited))

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.List(ctx, collection.Genus, collection.ListQuery{})
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)
	assert.Equal(t, before+1, testutil.ToFloat64(limited))
}
