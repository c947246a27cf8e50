package domain

import "time"

// User is a student who reserves lockers, identified by registration number.
type User struct {
	ID           int64
	FullName     string
	RegNo        string
	PasswordHash string
	Phone        *string
	Email        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
