package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"collections/pkg/logger"
)

// EntityCounter reports how many entities a cache holds
type EntityCounter interface {
	Count(ctx context.Context) (int64, error)
}

// CustomCollector reports gauges computed at scrape time
type CustomCollector struct {
	log   *logger.Logger
	cache EntityCounter

	cachedEntities *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector
func NewCustomCollector(log *logger.Logger, cache EntityCounter) *CustomCollector {
	return &CustomCollector{
		log:   log,
		cache: cache,

		cachedEntities: prometheus.NewDesc(
			"collections_entity_cache_entries",
			"Entities held by the selected option cache",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cachedEntities
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectCachedEntities(ctx, ch)
}

func (c *CustomCollector) collectCachedEntities(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.cache == nil {
		return
	}
	count, err := c.cache.Count(ctx)
	if err != nil {
		c.log.Errorw("Failed to collect entity cache size", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.cachedEntities,
		prometheus.GaugeValue,
		float64(count),
	)
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
