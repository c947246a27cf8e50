package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/persistence"
)

// UserRepository defines persistence access for locker users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByRegNo(ctx context.Context, regNo string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	pgStore
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX, retry persistence.RetryPolicy) UserRepository {
	return &userRepository{pgStore{db: db, retry: retry}}
}

const userColumns = `id, fullname, reg_no, password_hash, phone, email, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (fullname, reg_no, password_hash, phone, email)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	return r.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query,
			user.FullName,
			user.RegNo,
			user.PasswordHash,
			user.Phone,
			user.Email,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	})
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET password_hash=$1, phone=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`

	return r.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query,
			user.PasswordHash,
			user.Phone,
			user.ID,
		).Scan(&user.UpdatedAt)
	})
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByRegNo(ctx context.Context, regNo string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE reg_no=$1`
	return r.fetchSingle(ctx, query, regNo)
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY id`

	var result []domain.User
	err := r.do(ctx, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query)
		if err != nil {
			return err
		}
		result, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
			var user domain.User
			err := scanUser(row, &user)
			return user, err
		})
		return err
	})
	return result, err
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := r.do(ctx, func(ctx context.Context) error {
		return scanUser(r.db.QueryRow(ctx, query, arg), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func scanUser(row pgx.Row, user *domain.User) error {
	return row.Scan(
		&user.ID,
		&user.FullName,
		&user.RegNo,
		&user.PasswordHash,
		&user.Phone,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
}
