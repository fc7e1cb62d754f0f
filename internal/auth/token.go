package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/domain"
)

const (
	purposeEmailVerification = "email_verification"
	verificationTTL          = 24 * time.Hour
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a new manager. Only HMAC algorithms are accepted since tokens are
// signed with a shared secret.
func NewTokenManager(secret, algorithm string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 48 * time.Hour
	}
	return &TokenManager{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// Claims describes JWT payload.
type Claims struct {
	User    domain.TokenUser `json:"user"`
	Refresh bool             `json:"refresh"`
	Purpose string           `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// IssueAccessToken signs a short-lived access token for the user.
func (tm *TokenManager) IssueAccessToken(user domain.TokenUser) (string, time.Time, error) {
	return tm.issue(user, false, tm.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for the user.
func (tm *TokenManager) IssueRefreshToken(user domain.TokenUser) (string, time.Time, error) {
	return tm.issue(user, true, tm.refreshTTL)
}

func (tm *TokenManager) issue(user domain.TokenUser, refresh bool, ttl time.Duration) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		User:    user,
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(tm.method, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueVerificationToken signs a URL-safe token that confirms ownership of the user's email.
func (tm *TokenManager) IssueVerificationToken(userID string) (string, error) {
	now := tm.now()
	claims := &Claims{
		Purpose: purposeEmailVerification,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(verificationTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(tm.method, claims).SignedString(tm.secret)
}

// ParseToken validates signature, algorithm and expiry and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{tm.method.Alg()}), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ParseVerificationToken returns the user ID from a verification token.
func (tm *TokenManager) ParseVerificationToken(tokenStr string) (string, error) {
	claims, err := tm.ParseToken(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.Purpose != purposeEmailVerification || claims.Subject == "" {
		return "", errors.New("not a verification token")
	}
	return claims.Subject, nil
}
