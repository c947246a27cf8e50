package repository

import (
	"context"

	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/persistence"
)

// AdminRepository handles persistence for admin users.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.AdminUser) error
	GetByID(ctx context.Context, id int64) (*domain.AdminUser, error)
	GetByStaffID(ctx context.Context, staffID string) (*domain.AdminUser, error)
}

type adminRepository struct {
	pgStore
}

// NewAdminRepository instantiates the repository.
func NewAdminRepository(db DBTX, retry persistence.RetryPolicy) AdminRepository {
	return &adminRepository{pgStore{db: db, retry: retry}}
}

func (r *adminRepository) Create(ctx context.Context, admin *domain.AdminUser) error {
	const query = `
        INSERT INTO admin_users (staff_id, password_hash, fullname, email, phone)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`

	return r.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query,
			admin.StaffID,
			admin.PasswordHash,
			admin.FullName,
			admin.Email,
			admin.Phone,
		).Scan(&admin.ID, &admin.CreatedAt)
	})
}

func (r *adminRepository) GetByID(ctx context.Context, id int64) (*domain.AdminUser, error) {
	const query = `
        SELECT id, staff_id, password_hash, fullname, email, phone, created_at
        FROM admin_users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *adminRepository) GetByStaffID(ctx context.Context, staffID string) (*domain.AdminUser, error) {
	const query = `
        SELECT id, staff_id, password_hash, fullname, email, phone, created_at
        FROM admin_users WHERE staff_id=$1`
	return r.fetchSingle(ctx, query, staffID)
}

func (r *adminRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.AdminUser, error) {
	var admin domain.AdminUser
	err := r.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, arg).Scan(
			&admin.ID,
			&admin.StaffID,
			&admin.PasswordHash,
			&admin.FullName,
			&admin.Email,
			&admin.Phone,
			&admin.CreatedAt,
		)
	})
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
