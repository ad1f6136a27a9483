package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeFilterChanged  = "filter.changed"
	TypeFiltersCleared = "filters.cleared"
)

// Sources
const (
	SourceHTTP = "http"
	SourceLive = "live"
)

// BaseEvent carries the envelope shared by every event
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	SessionID string    `json:"session_id,omitempty"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a new base event with defaults
func NewBaseEvent(eventType, source, sessionID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		SessionID: sessionID,
		Version:   "1.0",
	}
}

// SanitizeUTF8 drops invalid UTF-8 from user typed text before it is
// written to a topic.
func SanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
