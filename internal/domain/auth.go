package domain

import "time"

// SubjectType differentiates users vs admin tokens.
type SubjectType string

const (
	SubjectTypeUser  SubjectType = "USER"
	SubjectTypeAdmin SubjectType = "ADMIN"
)

// Token represents issued access token metadata.
type Token struct {
	SubjectID int64
	Subject   SubjectType
	ExpiresAt time.Time
	IssuedAt  time.Time
}
