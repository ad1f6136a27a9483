package kafka

// Topic definitions for Kafka event streaming
const (
	// Filter navigation analytics
	TopicFilterChanged  = "collections.filter_changed"
	TopicFiltersCleared = "collections.filters_cleared"
)

// Topics lists every topic the portal writes to
func Topics() []string {
	return []string{TopicFilterChanged, TopicFiltersCleared}
}
