package service

import (
	"context"
	"strings"

	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/repository"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

// LockerService manages the locker catalog.
type LockerService struct {
	lockers repository.LockerRepository
}

// NewLockerService constructs the service.
func NewLockerService(lockers repository.LockerRepository) *LockerService {
	return &LockerService{lockers: lockers}
}

// List returns every locker.
func (s *LockerService) List(ctx context.Context) ([]domain.Locker, error) {
	lockers, err := s.lockers.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return lockers, nil
}

// ListAvailable returns lockers without a live reservation.
func (s *LockerService) ListAvailable(ctx context.Context) ([]domain.Locker, error) {
	lockers, err := s.lockers.ListAvailable(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return lockers, nil
}

// Create adds a locker. An existing id is a Conflict.
func (s *LockerService) Create(ctx context.Context, id string) (*domain.Locker, error) {
	id = strings.TrimSpace(id)
	if !domain.ValidLockerID(id) {
		return nil, apperrors.NewValidationError("invalid locker_id", map[string]any{"locker_id": id})
	}
	locker := &domain.Locker{ID: id}
	if err := s.lockers.Create(ctx, locker); err != nil {
		return nil, storeError(err)
	}
	return locker, nil
}

// BulkCreate adds every id, skipping ones that already exist.
func (s *LockerService) BulkCreate(ctx context.Context, ids []string) (created, skipped int, err error) {
	for _, id := range ids {
		if _, err := s.Create(ctx, id); err != nil {
			if apperrors.HasCode(err, apperrors.CodeConflict) {
				skipped++
				continue
			}
			return created, skipped, err
		}
		created++
	}
	return created, skipped, nil
}
