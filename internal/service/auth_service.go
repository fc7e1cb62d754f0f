package service

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const (
	minPasswordLength = 6
	maxUsernameLength = 32
)

// SignupInput carries the fields of a new account.
type SignupInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// AuthService coordinates signup, login and token lifecycle flows.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	revoked    auth.RevocationStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Tokens      *auth.TokenManager
	Revocations auth.RevocationStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		revoked:    deps.Revocations,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Signup creates a new account and announces it so a verification mail goes out.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := validateSignup(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrUserAlreadyExists
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:   events.EventUserRegistered,
		UserID: user.ID,
		Payload: events.UserRegisteredPayload{
			Email:     user.Email,
			Username:  user.Username,
			FirstName: user.FirstName,
		},
	})
	return user, nil
}

// Login authenticates by email and password. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.TokenPair{}, domain.ErrInvalidCredentials
		}
		return nil, domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.TokenPair{}, domain.ErrInvalidCredentials
	}

	tokenUser := domain.TokenUser{ID: user.ID, Email: user.Email, Role: user.Role}
	access, exp, err := s.tokens.IssueAccessToken(tokenUser)
	if err != nil {
		return nil, domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.IssueRefreshToken(tokenUser)
	if err != nil {
		return nil, domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return user, domain.TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

// Refresh issues a new access token for the holder of a valid refresh token.
func (s *AuthService) Refresh(_ context.Context, claims *auth.Claims) (string, time.Time, error) {
	if claims == nil || !claims.Refresh {
		return "", time.Time{}, domain.ErrRefreshTokenRequired
	}
	return s.tokens.IssueAccessToken(claims.User)
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return domain.ErrInvalidToken
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Me returns the account behind the token. A token for a deleted account is invalid.
func (s *AuthService) Me(ctx context.Context, claims *auth.Claims) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, claims.User.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// VerifyEmail marks the account named by a verification token as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.ParseVerificationToken(token)
	if err != nil {
		return domain.ErrInvalidToken
	}
	if err := s.users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrInvalidToken
		}
		return err
	}
	s.publish(ctx, events.Event{Type: events.EventUserVerified, UserID: userID})
	return nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
}

func validateSignup(in SignupInput) error {
	details := map[string]any{}
	if in.Username == "" {
		details["username"] = "required"
	} else if len(in.Username) > maxUsernameLength {
		details["username"] = fmt.Sprintf("at most %d characters", maxUsernameLength)
	}
	if in.Email == "" {
		details["email"] = "required"
	} else if _, err := netmail.ParseAddress(in.Email); err != nil {
		details["email"] = "invalid address"
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = fmt.Sprintf("at least %d characters", minPasswordLength)
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid signup payload", details)
	}
	return nil
}
