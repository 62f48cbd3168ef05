// Package notify carries activity events and watches the transcript drop
// directory.
package notify

import "time"

// Event types published on the activity feed.
const (
	EventMemoryAdded      = "memory_added"
	EventMemoryDeleted    = "memory_deleted"
	EventConsolidationRun = "consolidation_run"
	EventTranscriptImport = "transcript_imported"
)

// Event is one activity feed entry.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, userID, detail string) Event {
	return Event{Type: eventType, UserID: userID, Detail: detail, Timestamp: time.Now()}
}

// Sink receives activity events. The websocket hub implements this.
type Sink interface {
	Publish(evt Event)
}

// NopSink drops all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}
