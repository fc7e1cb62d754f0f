package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
)

const claimsKey = "auth_claims"

// TokenBearer validates bearer tokens of one kind (access or refresh) and stores the claims.
type TokenBearer struct {
	tokens    *TokenManager
	revoked   RevocationStore
	refresh   bool
	missing   domain.UserError
	wrongKind domain.UserError
}

// NewAccessTokenBearer accepts only access tokens.
func NewAccessTokenBearer(tokens *TokenManager, revoked RevocationStore) *TokenBearer {
	return &TokenBearer{
		tokens:    tokens,
		revoked:   revoked,
		missing:   domain.ErrAccessTokenRequired,
		wrongKind: domain.ErrAccessTokenRequired,
	}
}

// NewRefreshTokenBearer accepts only refresh tokens.
func NewRefreshTokenBearer(tokens *TokenManager, revoked RevocationStore) *TokenBearer {
	return &TokenBearer{
		tokens:    tokens,
		revoked:   revoked,
		refresh:   true,
		missing:   domain.ErrRefreshTokenRequired,
		wrongKind: domain.ErrRefreshTokenRequired,
	}
}

// Handle enforces the bearer on protected routes.
func (b *TokenBearer) Handle(c *fiber.Ctx) error {
	authHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authHeader == "" {
		return b.missing
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return b.missing
	}

	claims, err := b.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil || claims.Purpose != "" {
		return domain.ErrInvalidToken
	}

	revoked, err := b.revoked.IsRevoked(c.UserContext(), claims.ID)
	if err != nil {
		return fmt.Errorf("check token blocklist: %w", err)
	}
	if revoked {
		return domain.ErrInvalidToken
	}

	if claims.Refresh != b.refresh {
		return b.wrongKind
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// ClaimsFromContext retrieves the validated token claims.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	return claims, ok && claims != nil
}
