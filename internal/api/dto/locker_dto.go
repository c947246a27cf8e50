package dto

import (
	"time"

	"github.com/spec-kit/locker-service/internal/domain"
)

// CreateLockerRequest payload for POST /lockers.
type CreateLockerRequest struct {
	LockerID string `json:"locker_id"`
}

// LockerResponse describes a locker.
type LockerResponse struct {
	LockerID  string    `json:"locker_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewLockerResponse(locker *domain.Locker) LockerResponse {
	return LockerResponse{LockerID: locker.ID, CreatedAt: locker.CreatedAt}
}

func NewLockerList(lockers []domain.Locker) []LockerResponse {
	items := make([]LockerResponse, 0, len(lockers))
	for i := range lockers {
		items = append(items, NewLockerResponse(&lockers[i]))
	}
	return items
}
