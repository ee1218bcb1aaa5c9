package livewall

import "time"

// EventType is the kind of change an Event reports.
type EventType string

const (
	EventAdd    EventType = "add"
	EventDelete EventType = "delete"
	EventUpdate EventType = "update"
)

// Event is an ephemeral wall-scoped change notification. Events are never
// persisted.
type Event struct {
	Type EventType `json:"type"`

	// Image is set for add and delete events.
	Image *Image `json:"image,omitempty"`

	WallID    string    `json:"wall_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event for wallID.
func NewEvent(t EventType, wallID string, img *Image) Event {
	return Event{Type: t, Image: img, WallID: wallID, Timestamp: time.Now().UTC()}
}
