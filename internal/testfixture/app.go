//go:build integration

package testfixture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auth-service/internal/api/http"
	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/mail"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
)

// Outbox captures mail instead of delivering it.
type Outbox struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (o *Outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.messages...)
}

// App is the assembled application under test.
type App struct {
	Fiber  *fiber.App
	Tokens *auth.TokenManager
	Outbox *Outbox
	Redis  *miniredis.Miniredis
}

// NewApp wires the full application against pg, a miniredis instance and an Outbox in place
// of the SMTP sender.
func NewApp(t *testing.T, pg *persistence.Postgres) *App {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := &persistence.Redis{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(rdb.Close)

	settings := config.Settings{
		Domain: "auth.test",
		JWT:    config.JWTConfig{SecretKey: "integration-secret", Algorithm: "HS256"},
		App:    config.AppConfig{Name: "auth-service-test", Version: "test"},
		Auth:   config.AuthConfig{AccessTokenTTLSeconds: 3600, RefreshTokenTTLDays: 2, BcryptCost: 4},
	}

	tokens, err := auth.NewTokenManager(settings.JWT.SecretKey, settings.JWT.Algorithm,
		settings.Auth.AccessTokenTTL(), settings.Auth.RefreshTokenTTL())
	require.NoError(t, err)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	blocklist := auth.NewBlocklist(rdb.Client)
	dispatcher := events.NewInMemoryDispatcher()
	outbox := &Outbox{}
	service.NewNotificationService(dispatcher, outbox, tokens, settings.Domain, logger).RegisterHandlers()

	authService := service.NewAuthService(settings.Auth, service.AuthDependencies{
		UserRepo:    repository.NewUserRepository(pg.PoolHandle()),
		Tokens:      tokens,
		Revocations: blocklist,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	app := httptransport.NewServer(httptransport.ServerConfig{
		Name:           settings.App.Name,
		RequestTimeout: 10 * time.Second,
		Logger:         logger,
		Metrics:        metrics,
	}, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(settings.App.Name, settings.App.Version, metrics,
			handlers.Dependency{Name: "postgres", Pinger: pg},
			handlers.Dependency{Name: "redis", Pinger: rdb}),
		Users:         handlers.NewUsersHandler(authService),
		AccessBearer:  auth.NewAccessTokenBearer(tokens, blocklist),
		RefreshBearer: auth.NewRefreshTokenBearer(tokens, blocklist),
	})

	return &App{Fiber: app, Tokens: tokens, Outbox: outbox, Redis: mr}
}
