package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID   uuid.UUID  `json:"userId"`
	VendorID *uuid.UUID `json:"vendorId,omitempty"`
	Roles    []string   `json:"roles,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Actor builds an ActorRef for userID. A nil user id yields nil, which marks
// system-originated events.
func Actor(userID uuid.UUID, vendorID *uuid.UUID) *ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &ActorRef{UserID: userID, VendorID: vendorID}
}
