package domain

// UserError is the closed set of user-facing auth failures. Each value is rendered
// by the HTTP layer as a fixed response; the value carries no request data.
type UserError int

const (
	ErrUserAlreadyExists UserError = iota + 1
	ErrInvalidCredentials
	ErrInvalidToken
	ErrAccessTokenRequired
	ErrRefreshTokenRequired
)

// UserErrors lists every variant.
var UserErrors = []UserError{
	ErrUserAlreadyExists,
	ErrInvalidCredentials,
	ErrInvalidToken,
	ErrAccessTokenRequired,
	ErrRefreshTokenRequired,
}

func (e UserError) Error() string {
	switch e {
	case ErrUserAlreadyExists:
		return "user already exists"
	case ErrInvalidCredentials:
		return "invalid credentials"
	case ErrInvalidToken:
		return "invalid token"
	case ErrAccessTokenRequired:
		return "access token required"
	case ErrRefreshTokenRequired:
		return "refresh token required"
	default:
		return "unknown user error"
	}
}
