package picstream

import (
	"time"

	"github.com/google/uuid"
)

// Image represents one stored image. Records are immutable after
// creation; replacing an id swaps the record wholesale.
type Image struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	SizeBytes   int64     `json:"size_bytes"`
	MimeType    string    `json:"mime_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
	StorageKey  string    `json:"storage_key"`
}

// EventType is the domain type for broadcast event kinds.
type EventType string

// Event type constants (typed). The string values are the wire values
// sent to stream subscribers.
const (
	EventUploaded  EventType = "UPLOAD"
	EventDeleted   EventType = "DELETE"
	EventHeartbeat EventType = "HEARTBEAT"
)

// Heartbeat sentinel field values.
const (
	HeartbeatImageID   = "system"
	HeartbeatImageName = "heartbeat"
)

// Event is an ephemeral notification about a change in the image set.
// Events are immutable and have no identity beyond their fields.
type Event struct {
	Type      EventType `json:"type"`
	ImageID   string    `json:"image_id"`
	ImageName string    `json:"image_name"`
}

// NewHeartbeatEvent returns the synthetic liveness event emitted on a
// fixed cadence independent of domain activity.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		ImageID:   HeartbeatImageID,
		ImageName: HeartbeatImageName,
	}
}
