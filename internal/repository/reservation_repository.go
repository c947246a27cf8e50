package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/persistence"
)

// ReservationRepository encapsulates reservation persistence.
//
// Every mutation is a single conditional statement, so concurrent callers
// cannot interleave partial updates.
type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	GetLiveByLocker(ctx context.Context, lockerID string) (*domain.Reservation, error)
	Transition(ctx context.Context, t domain.ReservationTransition) (*domain.Reservation, error)
	DeleteLive(ctx context.Context, lockerID string, userID int64) (*domain.Reservation, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error)
	ListWithLockers(ctx context.Context) ([]domain.ReservationWithLocker, error)
}

type reservationRepository struct {
	pgStore
}

// NewReservationRepository instantiates repository.
func NewReservationRepository(db DBTX, retry persistence.RetryPolicy) ReservationRepository {
	return &reservationRepository{pgStore{db: db, retry: retry}}
}

const reservationColumns = `id, locker_id, user_id, token, status, created_at, updated_at`

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	const query = `
        INSERT INTO reservations (locker_id, user_id, token, status, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	return r.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query,
			res.LockerID,
			res.UserID,
			nullableToken(res.Token),
			string(res.Status),
			res.CreatedAt,
		).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	})
}

func (r *reservationRepository) GetLiveByLocker(ctx context.Context, lockerID string) (*domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE locker_id=$1 AND status <> 'idle'`
	return r.fetchSingle(ctx, query, lockerID)
}

// Transition returns pgx.ErrNoRows when the row left the expected statuses.
func (r *reservationRepository) Transition(ctx context.Context, t domain.ReservationTransition) (*domain.Reservation, error) {
	args := []any{t.ID, string(t.To), statusStrings(t.From)}
	sets := []string{"status=$2", "updated_at=NOW()"}

	switch {
	case t.To == domain.ReservationStatusIdle:
		sets = append(sets, "token=NULL")
	case t.Token != nil:
		args = append(args, *t.Token)
		sets = append(sets, fmt.Sprintf("token=$%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE reservations SET %s WHERE id=$1 AND status = ANY($3) RETURNING %s`,
		strings.Join(sets, ", "), reservationColumns)

	var res domain.Reservation
	err := r.do(ctx, func(ctx context.Context) error {
		return scanReservation(r.db.QueryRow(ctx, query, args...), &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) DeleteLive(ctx context.Context, lockerID string, userID int64) (*domain.Reservation, error) {
	const query = `
        DELETE FROM reservations
        WHERE locker_id=$1 AND user_id=$2 AND status <> 'idle'
        RETURNING ` + reservationColumns

	var res domain.Reservation
	err := r.do(ctx, func(ctx context.Context) error {
		return scanReservation(r.db.QueryRow(ctx, query, lockerID, userID), &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteExpired removes unconfirmed holds created before cutoff. Rows confirmed
// or already removed by a concurrent sweep are simply not matched.
func (r *reservationRepository) DeleteExpired(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	const query = `
        DELETE FROM reservations
        WHERE status = ANY($1) AND created_at < $2
        RETURNING ` + reservationColumns

	var result []domain.Reservation
	err := r.do(ctx, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, statusStrings(domain.UnconfirmedStatuses()), cutoff)
		if err != nil {
			return err
		}
		result, err = collectReservations(rows)
		return err
	})
	return result, err
}

func (r *reservationRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	const query = `
        SELECT ` + reservationColumns + `
        FROM reservations WHERE user_id=$1
        ORDER BY created_at DESC, id DESC`

	var result []domain.Reservation
	err := r.do(ctx, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, userID)
		if err != nil {
			return err
		}
		result, err = collectReservations(rows)
		return err
	})
	return result, err
}

func (r *reservationRepository) ListWithLockers(ctx context.Context) ([]domain.ReservationWithLocker, error) {
	const query = `
        SELECT r.id, r.locker_id, r.user_id, r.token, r.status, r.created_at, r.updated_at,
               l.locker_id, l.created_at
        FROM reservations r
        JOIN lockers l ON l.locker_id = r.locker_id
        ORDER BY r.created_at DESC, r.id DESC`

	var result []domain.ReservationWithLocker
	err := r.do(ctx, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query)
		if err != nil {
			return err
		}
		result, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReservationWithLocker, error) {
			var item domain.ReservationWithLocker
			var token *string
			var status string
			if err := row.Scan(
				&item.ID,
				&item.LockerID,
				&item.UserID,
				&token,
				&status,
				&item.CreatedAt,
				&item.UpdatedAt,
				&item.Locker.ID,
				&item.Locker.CreatedAt,
			); err != nil {
				return item, err
			}
			return item, fillReservation(&item.Reservation, token, status)
		})
		return err
	})
	return result, err
}

func (r *reservationRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Reservation, error) {
	var res domain.Reservation
	err := r.do(ctx, func(ctx context.Context) error {
		return scanReservation(r.db.QueryRow(ctx, query, arg), &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Reservation, error) {
		var res domain.Reservation
		err := scanReservation(row, &res)
		return res, err
	})
}

func scanReservation(row pgx.Row, res *domain.Reservation) error {
	var token *string
	var status string
	if err := row.Scan(
		&res.ID,
		&res.LockerID,
		&res.UserID,
		&token,
		&status,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		return err
	}
	return fillReservation(res, token, status)
}

func fillReservation(res *domain.Reservation, token *string, status string) error {
	parsed, err := domain.ParseReservationStatus(status)
	if err != nil {
		return err
	}
	res.Status = parsed
	res.Token = ""
	if token != nil {
		res.Token = *token
	}
	return nil
}

func nullableToken(token string) *string {
	if token == "" {
		return nil
	}
	return &token
}

func statusStrings(statuses []domain.ReservationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
