package domain

import "time"

// UserRole is the authorization role stored with the account.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is the domain model for registered accounts.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         UserRole
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
