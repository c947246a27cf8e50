package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/locker-service/internal/persistence"
)

// DBTX is the subset of *pgxpool.Pool the repositories need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Constraint names shared by the schema and the in-memory store.
const (
	ConstraintUserRegNo         = "users_reg_no_key"
	ConstraintUserEmail         = "users_email_key"
	ConstraintAdminStaffID      = "admin_users_staff_id_key"
	ConstraintLockerPK          = "lockers_pkey"
	ConstraintLockerIDFormat    = "lockers_locker_id_check"
	ConstraintReservationLocker = "reservations_locker_id_fkey"
	ConstraintReservationUser   = "reservations_user_id_fkey"
	ConstraintLiveLocker        = "reservations_live_locker_idx"
	ConstraintReservationToken  = "reservations_token_idx"
)

// ConstraintKind groups integrity violations.
type ConstraintKind int

const (
	ConstraintUnique ConstraintKind = iota + 1
	ConstraintForeignKey
	ConstraintCheck
)

// ConstraintError reports an integrity violation raised by the store.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// IsConstraint reports whether err violates the named constraint.
func IsConstraint(err error, constraint string) bool {
	var cErr *ConstraintError
	return errors.As(err, &cErr) && cErr.Constraint == constraint
}

// classify converts Postgres integrity violations into ConstraintErrors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return &ConstraintError{Kind: ConstraintUnique, Constraint: pgErr.ConstraintName, Err: err}
	case "23503":
		return &ConstraintError{Kind: ConstraintForeignKey, Constraint: pgErr.ConstraintName, Err: err}
	case "23514":
		return &ConstraintError{Kind: ConstraintCheck, Constraint: pgErr.ConstraintName, Err: err}
	default:
		return err
	}
}

// pgStore is embedded by every Postgres repository.
type pgStore struct {
	db    DBTX
	retry persistence.RetryPolicy
}

func (s pgStore) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return classify(s.retry.Do(ctx, fn))
}
