package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/persistence"
)

// LockerRepository encapsulates locker persistence. Lockers are never updated or deleted.
type LockerRepository interface {
	Create(ctx context.Context, locker *domain.Locker) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]domain.Locker, error)
	ListAvailable(ctx context.Context) ([]domain.Locker, error)
}

type lockerRepository struct {
	pgStore
}

// NewLockerRepository instantiates repository.
func NewLockerRepository(db DBTX, retry persistence.RetryPolicy) LockerRepository {
	return &lockerRepository{pgStore{db: db, retry: retry}}
}

func (r *lockerRepository) Create(ctx context.Context, locker *domain.Locker) error {
	const query = `INSERT INTO lockers (locker_id) VALUES ($1) RETURNING created_at`
	return r.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, locker.ID).Scan(&locker.CreatedAt)
	})
}

func (r *lockerRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM lockers WHERE locker_id=$1)`
	var exists bool
	err := r.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, id).Scan(&exists)
	})
	return exists, err
}

func (r *lockerRepository) List(ctx context.Context) ([]domain.Locker, error) {
	const query = `SELECT locker_id, created_at FROM lockers ORDER BY locker_id`
	return r.list(ctx, query)
}

func (r *lockerRepository) ListAvailable(ctx context.Context) ([]domain.Locker, error) {
	const query = `
        SELECT l.locker_id, l.created_at
        FROM lockers l
        WHERE NOT EXISTS (
            SELECT 1 FROM reservations r
            WHERE r.locker_id = l.locker_id AND r.status <> 'idle'
        )
        ORDER BY l.locker_id`
	return r.list(ctx, query)
}

func (r *lockerRepository) list(ctx context.Context, query string) ([]domain.Locker, error) {
	var result []domain.Locker
	err := r.do(ctx, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query)
		if err != nil {
			return err
		}
		result, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Locker, error) {
			var locker domain.Locker
			err := row.Scan(&locker.ID, &locker.CreatedAt)
			return locker, err
		})
		return err
	})
	return result, err
}
