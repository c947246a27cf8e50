package domain

import (
	"regexp"
	"time"
)

var lockerIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,31}$`)

// Locker is a physical locker addressed by its printed code.
type Locker struct {
	ID        string
	CreatedAt time.Time
}

// ValidLockerID reports whether id is an acceptable locker code.
func ValidLockerID(id string) bool {
	return lockerIDPattern.MatchString(id)
}
