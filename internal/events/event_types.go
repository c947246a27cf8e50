package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/locker-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReservationCreated   EventType = "reservation_created"
	EventReservationReserved  EventType = "reservation_reserved"
	EventReservationConfirmed EventType = "reservation_confirmed"
	EventReservationEnded     EventType = "reservation_ended"
	EventReservationDeleted   EventType = "reservation_deleted"
	EventReservationExpired   EventType = "reservation_expired"
)

// ReservationEvents lists every reservation lifecycle event.
func ReservationEvents() []EventType {
	return []EventType{
		EventReservationCreated,
		EventReservationReserved,
		EventReservationConfirmed,
		EventReservationEnded,
		EventReservationDeleted,
		EventReservationExpired,
	}
}

// Actor encapsulates actor metadata for an event. System actions carry no actor.
type Actor struct {
	Type domain.SubjectType `json:"type,omitempty"`
	ID   int64              `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	ReservationID int64     `json:"reservation_id"`
	LockerID      string    `json:"locker_id"`
	UserID        int64     `json:"user_id"`
	Actor         Actor     `json:"actor"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload,omitempty"`
}

// StatusChangedPayload accompanies lifecycle transitions.
type StatusChangedPayload struct {
	OldStatus domain.ReservationStatus `json:"old_status"`
	NewStatus domain.ReservationStatus `json:"new_status"`
}

// NewReservationEvent stamps an event for res.
func NewReservationEvent(eventType EventType, res *domain.Reservation, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ReservationID: res.ID,
		LockerID:      res.LockerID,
		UserID:        res.UserID,
		Actor:         actor,
		Timestamp:     at,
		Payload:       payload,
	}
}
