// Package events defines roster event payloads shared by the API and the audit consumer.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types carried in the event_type Kafka header.
const (
	TypeParticipantSignedUp     = "participant.signed_up"
	TypeParticipantUnregistered = "participant.unregistered"
)

// RosterChanged is emitted after a successful signup or unregister.
type RosterChanged struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Activity   string    `json:"activity"`
	Email      string    `json:"email"`
	RosterSize int       `json:"roster_size"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewRosterChanged stamps a new event with an ID and the given time.
func NewRosterChanged(eventType, activity, email string, rosterSize int, at time.Time) RosterChanged {
	return RosterChanged{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Activity:   activity,
		Email:      email,
		RosterSize: rosterSize,
		OccurredAt: at.UTC(),
	}
}

// Known reports whether eventType is one of the roster event types.
func Known(eventType string) bool {
	switch eventType {
	case TypeParticipantSignedUp, TypeParticipantUnregistered:
		return true
	}
	return false
}
