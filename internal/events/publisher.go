package events

import (
	"context"

	"collections/internal/adapters/kafka"
	"collections/pkg/errors"
	"collections/pkg/logger"
)

// Producer is the part of the Kafka producer the publisher needs
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// FilterChangedEvent records one committed filter navigation
type FilterChangedEvent struct {
	BaseEvent
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	// Cleared lists descendant filters removed by the cascade.
	Cleared    []string `json:"cleared,omitempty"`
	Query      string   `json:"query"`
	Generation uint64   `json:"generation,omitempty"`
}

// FiltersClearedEvent records a "clear all"
type FiltersClearedEvent struct {
	BaseEvent
	Removed []string `json:"removed"`
	Query   string   `json:"query"`
}

// Publisher publishes navigation events to Kafka. A nil producer turns
// every publish into a no-op.
type Publisher struct {
	producer Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log,
	}
}

// Enabled reports whether events go anywhere
func (p *Publisher) Enabled() bool {
	return p != nil && p.producer != nil
}

// PublishFilterChanged publishes a filter changed event
func (p *Publisher) PublishFilterChanged(ctx context.Context, event FilterChangedEvent) error {
	event.Value = SanitizeUTF8(event.Value)
	return p.publish(ctx, kafka.TopicFilterChanged, event.Key, event)
}

// PublishFiltersCleared publishes a filters cleared event
func (p *Publisher) PublishFiltersCleared(ctx context.Context, event FiltersClearedEvent) error {
	return p.publish(ctx, kafka.TopicFiltersCleared, event.SessionID, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if !p.Enabled() {
		return nil
	}

	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Errorw("Failed to publish event",
			"topic", topic,
			"error", err,
		)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published", "topic", topic, "key", key)
	return nil
}
