package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every server-to-client event. EventID lets clients
// deduplicate replays after reconnect; Origin carries the connection id
// that caused the event so the hub can skip echoing it back.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	Event      string          `json:"event"`
	Room       string          `json:"room"`
	Origin     string          `json:"origin,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals the payload and stamps identity and time.
func NewEnvelope(event, room string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:    uuid.New(),
		Event:      event,
		Room:       room,
		OccurredAt: time.Now(),
		Payload:    data,
	}, nil
}
