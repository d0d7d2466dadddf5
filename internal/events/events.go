// Package events defines the outbound notification/audit event model and the
// publish-only Sink capability the core uses to emit terminal events. The
// core never blocks on, or depends on, delivery.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	ShareCreated       EventType = "share.created"
	ShareRevoked       EventType = "share.revoked"
	ShareAccepted      EventType = "share.accepted"
	ShareRejected      EventType = "share.rejected"
	FileUploaded       EventType = "file.uploaded"
	FileVersionCreated EventType = "file.version.created"
)

// Event is the wire envelope published to the sink.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
}

func NewEvent(eventType EventType, source string, data map[string]any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Data:      data,
	}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Sink is a publish-only capability. Implementations must be safe for
// concurrent use. Errors are advisory; callers fire and forget.
type Sink interface {
	Publish(ctx context.Context, event *Event) error
}
