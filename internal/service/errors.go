package service

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locker-service/internal/repository"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

// storeError classifies repository failures into the client-facing taxonomy.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var cErr *repository.ConstraintError
	if !errors.As(err, &cErr) {
		return apperrors.MapError(err)
	}

	switch cErr.Constraint {
	case repository.ConstraintUserRegNo:
		return apperrors.NewConflict("registration number already registered", nil)
	case repository.ConstraintUserEmail:
		return apperrors.NewConflict("email already registered", nil)
	case repository.ConstraintAdminStaffID:
		return apperrors.NewConflict("staff id already registered", nil)
	case repository.ConstraintLockerPK:
		return apperrors.NewConflict("locker already exists", nil)
	case repository.ConstraintLockerIDFormat:
		return apperrors.NewValidationError("invalid locker_id", nil)
	case repository.ConstraintReservationLocker:
		return apperrors.NewNotFound("locker", nil)
	case repository.ConstraintReservationUser:
		return apperrors.NewNotFound("user", nil)
	case repository.ConstraintLiveLocker:
		return apperrors.NewConflict("locker already has an active reservation", nil)
	}

	switch cErr.Kind {
	case repository.ConstraintUnique:
		return apperrors.NewConflict("resource already exists", nil)
	case repository.ConstraintForeignKey:
		return apperrors.NewNotFound("referenced resource", nil)
	case repository.ConstraintCheck:
		return apperrors.NewValidationError("invalid value", nil)
	}
	return apperrors.NewInternalError(err)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
