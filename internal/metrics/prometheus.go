package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"collections/pkg/options"
)

var (
	// Data service metrics
	DataServiceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_data_service_calls_total",
			Help: "Total number of data service calls",
		},
		[]string{"kind", "operation", "status"}, // status: success|error|rate_limited
	)

	DataServiceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collections_data_service_latency_seconds",
			Help:    "Data service call latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"kind", "operation"},
	)

	// Option search metrics
	SearchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_search_requests_total",
			Help: "Option list requests issued by live searchers",
		},
		[]string{"filter"},
	)

	SearchStale = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_search_stale_responses_total",
			Help: "Option pages discarded because a newer request superseded them",
		},
		[]string{"filter"},
	)

	SearchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_search_failures_total",
			Help: "Option list requests that failed",
		},
		[]string{"filter"},
	)

	// Selected option resolution
	OptionResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_option_resolutions_total",
			Help: "Selected option resolutions by source",
		},
		[]string{"kind", "source"}, // source: loaded|cache|fetch|degraded
	)

	// Navigation metrics
	Navigations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_filter_navigations_total",
			Help: "Committed filter navigations",
		},
		[]string{"key", "transport"}, // transport: http|live
	)

	NoopUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_filter_noop_updates_total",
			Help: "Filter updates suppressed because the query did not change",
		},
		[]string{"transport"},
	)

	// Live session metrics
	LiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "collections_live_sessions",
			Help: "Open live filter sessions",
		},
	)

	LiveMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_live_messages_total",
			Help: "Live session messages by type and direction",
		},
		[]string{"type", "direction"}, // direction: in|out
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_kafka_messages_total",
			Help: "Total Kafka messages published",
		},
		[]string{"topic", "status"},
	)
)

func init() {
	prometheus.MustRegister(DataServiceCalls)
	prometheus.MustRegister(DataServiceLatency)

	prometheus.MustRegister(SearchRequests)
	prometheus.MustRegister(SearchStale)
	prometheus.MustRegister(SearchFailures)
	prometheus.MustRegister(OptionResolutions)

	prometheus.MustRegister(Navigations)
	prometheus.MustRegister(NoopUpdates)

	prometheus.MustRegister(LiveSessions)
	prometheus.MustRegister(LiveMessages)
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDataServiceCall records a data service call
func RecordDataServiceCall(kind, operation string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DataServiceCalls.WithLabelValues(kind, operation, status).Inc()
	DataServiceLatency.WithLabelValues(kind, operation).Observe(latency.Seconds())
}

// RecordRateLimited records a call rejected by the client side limiter
func RecordRateLimited(kind, operation string) {
	DataServiceCalls.WithLabelValues(kind, operation, "rate_limited").Inc()
}

// RecordNavigation records a committed navigation for every changed key
func RecordNavigation(transport string, keys []string) {
	for _, k := range keys {
		Navigations.WithLabelValues(k, transport).Inc()
	}
}

// RecordNoop records a suppressed update
func RecordNoop(transport string) {
	NoopUpdates.WithLabelValues(transport).Inc()
}

// RecordKafkaMessage records a publish attempt
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}

// SearchObserver feeds searcher outcomes into the search counters
type SearchObserver struct{}

func (SearchObserver) Issued(filter string) { SearchRequests.WithLabelValues(filter).Inc() }
func (SearchObserver) Stale(filter string)  { SearchStale.WithLabelValues(filter).Inc() }
func (SearchObserver) Failed(filter string) { SearchFailures.WithLabelValues(filter).Inc() }

// ResolverObserver feeds resolution sources into OptionResolutions
type ResolverObserver struct{}

func (ResolverObserver) Resolved(kind string, source options.Source) {
	OptionResolutions.WithLabelValues(kind, string(source)).Inc()
}
