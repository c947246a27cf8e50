package domain

import "time"

// AdminUser models locker staff. Accounts are provisioned out of band.
type AdminUser struct {
	ID           int64
	StaffID      string
	PasswordHash string
	FullName     string
	Email        string
	Phone        string
	CreatedAt    time.Time
}
