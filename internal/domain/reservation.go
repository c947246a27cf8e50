package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReservationStatus enumerates lifecycle states for a locker reservation.
type ReservationStatus string

const (
	ReservationStatusIdle     ReservationStatus = "idle"
	ReservationStatusPending  ReservationStatus = "pending"
	ReservationStatusReserved ReservationStatus = "reserved"
	ReservationStatusOngoing  ReservationStatus = "ongoing"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:  {ReservationStatusReserved, ReservationStatusOngoing, ReservationStatusIdle},
	ReservationStatusReserved: {ReservationStatusOngoing, ReservationStatusIdle},
	ReservationStatusOngoing:  {ReservationStatusIdle},
}

// ParseReservationStatus accepts the canonical lower-case names only.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch status := ReservationStatus(strings.TrimSpace(s)); status {
	case ReservationStatusIdle, ReservationStatusPending, ReservationStatusReserved, ReservationStatusOngoing:
		return status, nil
	default:
		return "", fmt.Errorf("unknown reservation status %q", s)
	}
}

// IsLive reports whether the reservation still holds its locker.
func (s ReservationStatus) IsLive() bool {
	return s != ReservationStatusIdle
}

// IsUnconfirmed reports whether the hold is still subject to expiry.
func (s ReservationStatus) IsUnconfirmed() bool {
	return s == ReservationStatusPending || s == ReservationStatusReserved
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesFor lists every status that may move to target.
func SourcesFor(target ReservationStatus) []ReservationStatus {
	var sources []ReservationStatus
	for _, from := range []ReservationStatus{ReservationStatusPending, ReservationStatusReserved, ReservationStatusOngoing} {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// UnconfirmedStatuses are the statuses the expiry sweep may delete.
func UnconfirmedStatuses() []ReservationStatus {
	return []ReservationStatus{ReservationStatusPending, ReservationStatusReserved}
}

// Reservation links a locker to a user for the duration of a hold.
// Token is empty once the reservation is released.
type Reservation struct {
	ID        int64
	LockerID  string
	UserID    int64
	Token     string
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiresAt returns when an unconfirmed hold lapses; zero for confirmed or idle
// ones. Holds age from creation, so reserving does not extend them.
func (r *Reservation) ExpiresAt(ttl time.Duration) time.Time {
	if !r.Status.IsUnconfirmed() {
		return time.Time{}
	}
	return r.CreatedAt.Add(ttl)
}

// ReservationWithLocker is the admin view joining locker details.
type ReservationWithLocker struct {
	Reservation
	Locker Locker
}

// ReservationTransition describes a conditional status change. It applies only
// while the row is still in one of From. Moving to idle always clears the token.
type ReservationTransition struct {
	ID    int64
	From  []ReservationStatus
	To    ReservationStatus
	Token *string
}
