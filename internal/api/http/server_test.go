package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/service"
)

type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]*domain.User
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = "user-" + strconv.Itoa(len(m.byID)+1)
	stored := *user
	m.byID[user.ID] = &stored
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) MarkVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.IsVerified = true
		return nil
	}
	return pgx.ErrNoRows
}

type testServer struct {
	app     *fiber.App
	users   *memoryUsers
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	tokens, err := auth.NewTokenManager("server-test-secret", "HS256", time.Hour, 48*time.Hour)
	require.NoError(t, err)
	blocklist := auth.NewBlocklist(client)
	users := &memoryUsers{byID: map[string]*domain.User{}}
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(config.AuthConfig{BcryptCost: 4}, service.AuthDependencies{
		UserRepo:    users,
		Tokens:      tokens,
		Revocations: blocklist,
		Logger:      zap.NewNop(),
	})

	app := NewServer(ServerConfig{Name: "test", Logger: zap.NewNop(), Metrics: metrics}, RouteConfig{
		Health:        handlers.NewHealthHandler("test", "dev", metrics,
			handlers.Dependency{Name: "postgres"},
			handlers.Dependency{Name: "redis", Pinger: &persistence.Redis{Client: client}}),
		Users:         handlers.NewUsersHandler(authService),
		AccessBearer:  auth.NewAccessTokenBearer(tokens, blocklist),
		RefreshBearer: auth.NewRefreshTokenBearer(tokens, blocklist),
	})
	return &testServer{app: app, users: users, tokens: tokens, metrics: metrics}
}

func (s *testServer) request(t *testing.T, method, path, body, token string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

const signupBody = `{"username":"jane","email":"jane@example.com","first_name":"Jane","last_name":"Doe","password":"password123"}`

func (s *testServer) login(t *testing.T) (string, string) {
	t.Helper()

	status, body := s.request(t, http.MethodPost, "/api/v1/auth/login", `{"email":"jane@example.com","password":"password123"}`, "")
	require.Equal(t, http.StatusOK, status, body)
	authData := body["data"].(map[string]any)["auth"].(map[string]any)
	return authData["access_token"].(string), authData["refresh_token"].(string)
}

func TestServer_AuthFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	status, body := s.request(t, http.MethodPost, "/api/v1/auth/signup", signupBody, "")
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "jane@example.com", body["data"].(map[string]any)["email"])

	status, body = s.request(t, http.MethodPost, "/api/v1/auth/signup", signupBody, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, map[string]any{"message": "User with email already exists", "error_code": "user_exists"}, body)

	status, body = s.request(t, http.MethodPost, "/api/v1/auth/login", `{"email":"jane@example.com","password":"nope-nope"}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_credentials", body["error_code"])

	access, refresh := s.login(t)

	status, body = s.request(t, http.MethodGet, "/api/v1/auth/me", "", access)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "jane", body["data"].(map[string]any)["username"])

	status, body = s.request(t, http.MethodGet, "/api/v1/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "access_token_required", body["error_code"])

	status, body = s.request(t, http.MethodGet, "/api/v1/auth/me", "", refresh)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "access_token_required", body["error_code"])

	status, body = s.request(t, http.MethodGet, "/api/v1/auth/refresh_token", "", access)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "refresh_token_required", body["error_code"])

	status, body = s.request(t, http.MethodGet, "/api/v1/auth/refresh_token", "", refresh)
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, body["data"].(map[string]any)["access_token"])

	status, _ = s.request(t, http.MethodGet, "/api/v1/auth/logout", "", access)
	require.Equal(t, http.StatusOK, status)

	status, body = s.request(t, http.MethodGet, "/api/v1/auth/me", "", access)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, map[string]any{
		"message":    "Invalid token",
		"resolution": "Please get a new token",
		"error_code": "invalid_token",
	}, body)

	assert.Equal(t, int64(1), s.metrics.ErrorCount("/api/v1/auth/me", http.MethodGet, "invalid_token"))
	assert.Equal(t, int64(2), s.metrics.ErrorCount("/api/v1/auth/me", http.MethodGet, "access_token_required"))
	assert.Equal(t, int64(1), s.metrics.ErrorCount("/api/v1/auth/signup", http.MethodPost, "user_exists"))
}

func TestServer_VerifyEmail(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	status, body := s.request(t, http.MethodPost, "/api/v1/auth/signup", signupBody, "")
	require.Equal(t, http.StatusCreated, status)
	userID := body["data"].(map[string]any)["uid"].(string)

	token, err := s.tokens.IssueVerificationToken(userID)
	require.NoError(t, err)

	status, _ = s.request(t, http.MethodGet, "/api/v1/auth/verify/"+token, "", "")
	assert.Equal(t, http.StatusOK, status)
	user, err := s.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	status, body = s.request(t, http.MethodGet, "/api/v1/auth/verify/not-a-token", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_token", body["error_code"])
}

func TestServer_ValidationAndNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	status, body := s.request(t, http.MethodPost, "/api/v1/auth/signup", `{"email":"bad"}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])

	status, body = s.request(t, http.MethodPost, "/api/v1/auth/login", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])

	status, body = s.request(t, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestServer_MetricsRequiresAdmin(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	status, body := s.request(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "access_token_required", body["error_code"])

	userToken, _, err := s.tokens.IssueAccessToken(domain.TokenUser{ID: "u", Role: domain.UserRoleUser})
	require.NoError(t, err)
	status, _ = s.request(t, http.MethodGet, "/metrics", "", userToken)
	assert.Equal(t, http.StatusForbidden, status)

	adminToken, _, err := s.tokens.IssueAccessToken(domain.TokenUser{ID: "a", Role: domain.UserRoleAdmin})
	require.NoError(t, err)
	status, body = s.request(t, http.MethodGet, "/metrics", "", adminToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "requests")
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	status, body := s.request(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.request(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "ok", details["redis"])
	assert.NotEqual(t, "ok", details["postgres"])
}
