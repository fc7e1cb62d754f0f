package domain

import "time"

// TokenPair is returned on successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenUser is the user snapshot embedded in token claims.
type TokenUser struct {
	ID    string   `json:"user_uid"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}
