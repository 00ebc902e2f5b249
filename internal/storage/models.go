package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
)

// User is one registered account. PasswordHash holds the argon2id encoded
// hash; the plaintext never reaches this package.
type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   string
	PhoneNumber    string
	Address        string
	ProfilePicture string
	Country        string
	City           string
	Role           string
	IsActive       bool
	IsStaff        bool
	CreatedAt      time.Time
	UpdatedOn      time.Time
}

// NewUser carries the validated fields for an insert. Optional profile
// fields default to the empty string.
type NewUser struct {
	Username       string
	Email          string
	PasswordHash   string
	PhoneNumber    string
	Address        string
	ProfilePicture string
	Country        string
	City           string
	Role           string
}

type AuditLog struct {
	ActorID    int64
	Action     string
	EntityType string
	EntityID   *int64
	IP         string
	UserAgent  string
}
