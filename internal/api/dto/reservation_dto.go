package dto

import (
	"time"

	"github.com/spec-kit/locker-service/internal/domain"
)

// CreateReservationRequest payload for POST /reservations/:user_id.
type CreateReservationRequest struct {
	LockerID string `json:"locker_id"`
	UserID   int64  `json:"user_id"`
}

// LockerActionRequest carries the locker for status transitions and deletes.
type LockerActionRequest struct {
	LockerID string `json:"locker_id"`
}

// ReservationResponse describes a reservation. Token is null once released.
type ReservationResponse struct {
	ID        int64                    `json:"id"`
	LockerID  string                   `json:"locker_id"`
	UserID    int64                    `json:"user_id"`
	Token     *string                  `json:"token"`
	Status    domain.ReservationStatus `json:"status"`
	CreatedAt time.Time                `json:"created_at"`
	ExpiresAt *time.Time               `json:"expires_at"`
}

// AdminReservationResponse joins locker details for the admin listing.
type AdminReservationResponse struct {
	ReservationResponse
	Locker LockerResponse `json:"locker"`
}

// TimeRemainingResponse for GET /time_remaining/:locker_id.
type TimeRemainingResponse struct {
	LockerID         string                   `json:"locker_id"`
	Status           domain.ReservationStatus `json:"status"`
	MinutesElapsed   int                      `json:"minutes_elapsed"`
	MinutesRemaining *int                     `json:"minutes_remaining"`
	ExpiresAt        *time.Time               `json:"expires_at"`
}

// ReleasedResponse is returned when ending a locker that had nothing live.
type ReleasedResponse struct {
	LockerID string                   `json:"locker_id"`
	Status   domain.ReservationStatus `json:"status"`
	Token    *string                  `json:"token"`
}

// SweepResponse acknowledges a requested expiry sweep.
type SweepResponse struct {
	Status string `json:"status"`
}

// NewReservationResponse renders res; ttl derives expires_at for unconfirmed holds.
func NewReservationResponse(res *domain.Reservation, ttl time.Duration) ReservationResponse {
	out := ReservationResponse{
		ID:        res.ID,
		LockerID:  res.LockerID,
		UserID:    res.UserID,
		Status:    res.Status,
		CreatedAt: res.CreatedAt,
	}
	if res.Token != "" {
		token := res.Token
		out.Token = &token
	}
	if expires := res.ExpiresAt(ttl); !expires.IsZero() {
		out.ExpiresAt = &expires
	}
	return out
}

func NewReservationList(list []domain.Reservation, ttl time.Duration) []ReservationResponse {
	items := make([]ReservationResponse, 0, len(list))
	for i := range list {
		items = append(items, NewReservationResponse(&list[i], ttl))
	}
	return items
}

func NewAdminReservationList(list []domain.ReservationWithLocker, ttl time.Duration) []AdminReservationResponse {
	items := make([]AdminReservationResponse, 0, len(list))
	for i := range list {
		items = append(items, AdminReservationResponse{
			ReservationResponse: NewReservationResponse(&list[i].Reservation, ttl),
			Locker:              NewLockerResponse(&list[i].Locker),
		})
	}
	return items
}
