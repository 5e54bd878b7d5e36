package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of domain event.
type EventType string

const (
	EventClientCreated     EventType = "CLIENT_CREATED"
	EventClientUpdated     EventType = "CLIENT_UPDATED"
	EventClientDeleted     EventType = "CLIENT_DELETED"
	EventUplinkTransferred EventType = "UPLINK_TRANSFERRED"
	EventKKTRegistered     EventType = "KKT_REGISTERED"
)

// DomainEvent is an in-process notification emitted after a client-level
// write has committed. Handlers run after the fact and cannot veto it.
type DomainEvent struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	ClientID  int64     `json:"client_id"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent builds an event with a fresh time-ordered id.
func NewEvent(eventType EventType, clientID int64, actorID *int64, payload any) *DomainEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &DomainEvent{
		EventID:   id.String(),
		EventType: eventType,
		ClientID:  clientID,
		ActorID:   actorID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// ClientDeletedPayload lists the stored files that belonged to a deleted client.
type ClientDeletedPayload struct {
	StoredFiles []string `json:"stored_files"`
}

// UplinkTransferredPayload describes a completed transfer.
type UplinkTransferredPayload struct {
	DestinationID int64 `json:"destination_id"`
	SourceSlot    int   `json:"source_slot"`
	DestSlot      int   `json:"dest_slot"`
}

// KKTRegisteredPayload carries the registration numbers to look up.
type KKTRegisteredPayload struct {
	RegIDs []string `json:"reg_ids"`
}
