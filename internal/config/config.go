package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no other file is configured.
const DefaultEnvFile = ".env"

// Settings aggregates runtime configuration for the service.
type Settings struct {
	DatabaseURL string
	RedisURL    string
	Domain      string
	JWT         JWTConfig
	Mail        MailConfig
	App         AppConfig
	Postgres    PostgresConfig
	Logger      LoggerConfig
	Auth        AuthConfig
}

// JWTConfig holds token signing values.
type JWTConfig struct {
	SecretKey string
	Algorithm string
}

// MailConfig holds SMTP connection values.
type MailConfig struct {
	Username       string
	Password       string
	From           string
	FromName       string
	Server         string
	Port           int
	StartTLS       bool
	SSLTLS         bool
	UseCredentials bool
	ValidateCerts  bool
	Workers        int
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds pool tuning values.
type PostgresConfig struct {
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token lifetimes and hashing cost.
type AuthConfig struct {
	AccessTokenTTLSeconds int
	RefreshTokenTTLDays   int
	BcryptCost            int
}

// ConfigurationError reports a missing or malformed setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// LookupFunc resolves a key from the process environment.
type LookupFunc func(key string) (string, bool)

type options struct {
	envFile string
	lookup  LookupFunc
}

// Option customizes Load.
type Option func(*options)

// WithEnvFile reads the given file instead of .env. An empty path disables the file.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithLookup replaces os.LookupEnv as the environment source.
func WithLookup(fn LookupFunc) Option {
	return func(o *options) { o.lookup = fn }
}

type field struct {
	key      string
	required bool
	fallback string
	set      func(s *Settings, raw string) error
}

func str(dst func(*Settings) *string) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		*dst(s) = raw
		return nil
	}
}

func integer(dst func(*Settings, int)) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		dst(s, v)
		return nil
	}
}

func integer32(dst func(*Settings, int32)) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid 32-bit integer %q", raw)
		}
		dst(s, int32(v))
		return nil
	}
}

func boolean(dst func(*Settings) *bool) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		v, err := parseBool(raw)
		if err != nil {
			return err
		}
		*dst(s) = v
		return nil
	}
}

// fields is the complete schema; keys outside it are ignored.
var fields = []field{
	{key: "DATABASE_URL", required: true, set: str(func(s *Settings) *string { return &s.DatabaseURL })},
	{key: "JWT_SECRET_KEY", required: true, set: str(func(s *Settings) *string { return &s.JWT.SecretKey })},
	{key: "JWT_ALGORITHM", required: true, set: str(func(s *Settings) *string { return &s.JWT.Algorithm })},
	{key: "REDIS_URL", required: true, set: str(func(s *Settings) *string { return &s.RedisURL })},
	{key: "MAIL_USERNAME", required: true, set: str(func(s *Settings) *string { return &s.Mail.Username })},
	{key: "MAIL_PASSWORD", required: true, set: str(func(s *Settings) *string { return &s.Mail.Password })},
	{key: "MAIL_FROM", required: true, set: str(func(s *Settings) *string { return &s.Mail.From })},
	{key: "MAIL_PORT", required: true, set: integer(func(s *Settings, v int) { s.Mail.Port = v })},
	{key: "MAIL_SERVER", required: true, set: str(func(s *Settings) *string { return &s.Mail.Server })},
	{key: "MAIL_FROM_NAME", required: true, set: str(func(s *Settings) *string { return &s.Mail.FromName })},
	{key: "MAIL_STARTTLS", fallback: "true", set: boolean(func(s *Settings) *bool { return &s.Mail.StartTLS })},
	{key: "MAIL_SSL_TLS", fallback: "false", set: boolean(func(s *Settings) *bool { return &s.Mail.SSLTLS })},
	{key: "USE_CREDENTIALS", fallback: "true", set: boolean(func(s *Settings) *bool { return &s.Mail.UseCredentials })},
	{key: "VALIDATE_CERTS", fallback: "true", set: boolean(func(s *Settings) *bool { return &s.Mail.ValidateCerts })},
	{key: "DOMAIN", required: true, set: str(func(s *Settings) *string { return &s.Domain })},

	{key: "MAIL_WORKERS", fallback: "2", set: integer(func(s *Settings, v int) { s.Mail.Workers = v })},
	{key: "APP_NAME", fallback: "auth-service", set: str(func(s *Settings) *string { return &s.App.Name })},
	{key: "APP_ENV", fallback: "development", set: str(func(s *Settings) *string { return &s.App.Env })},
	{key: "APP_HOST", fallback: "0.0.0.0", set: str(func(s *Settings) *string { return &s.App.Host })},
	{key: "APP_PORT", fallback: "8000", set: str(func(s *Settings) *string { return &s.App.Port })},
	{key: "APP_VERSION", fallback: "dev", set: str(func(s *Settings) *string { return &s.App.Version })},
	{key: "HTTP_REQUEST_TIMEOUT_SECONDS", fallback: "30", set: integer(func(s *Settings, v int) { s.App.RequestTimeoutSeconds = v })},
	{key: "LOG_LEVEL", fallback: "info", set: str(func(s *Settings) *string { return &s.Logger.Level })},
	{key: "POSTGRES_MAX_CONNS", fallback: "10", set: integer32(func(s *Settings, v int32) { s.Postgres.MaxConns = v })},
	{key: "POSTGRES_MIN_CONNS", fallback: "2", set: integer32(func(s *Settings, v int32) { s.Postgres.MinConns = v })},
	{key: "POSTGRES_RUN_MIGRATIONS", fallback: "true", set: boolean(func(s *Settings) *bool { return &s.Postgres.RunMigrations })},
	{key: "POSTGRES_CONN_MAX_IDLE_SECONDS", fallback: "30", set: integer32(func(s *Settings, v int32) { s.Postgres.ConnMaxIdleSec = v })},
	{key: "POSTGRES_CONN_MAX_LIFE_SECONDS", fallback: "300", set: integer32(func(s *Settings, v int32) { s.Postgres.ConnMaxLifeSec = v })},
	{key: "ACCESS_TOKEN_TTL_SECONDS", fallback: "3600", set: integer(func(s *Settings, v int) { s.Auth.AccessTokenTTLSeconds = v })},
	{key: "REFRESH_TOKEN_TTL_DAYS", fallback: "2", set: integer(func(s *Settings, v int) { s.Auth.RefreshTokenTTLDays = v })},
	{key: "BCRYPT_COST", fallback: "12", set: integer(func(s *Settings, v int) { s.Auth.BcryptCost = v })},
}

// Load reads settings from the env file layered under real environment variables.
// It fails with every missing or malformed key joined into one error.
func Load(opts ...Option) (*Settings, error) {
	o := options{envFile: DefaultEnvFile, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	fileValues := map[string]string{}
	if o.envFile != "" {
		values, err := godotenv.Read(o.envFile)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", o.envFile, err)
		}
	}

	// A variable present in the environment wins even when empty; empty means unset.
	lookup := func(key string) (string, bool) {
		val, ok := o.lookup(key)
		if !ok {
			val, ok = fileValues[key]
		}
		return val, ok && val != ""
	}

	var (
		settings Settings
		errs     []error
	)
	for _, f := range fields {
		raw, ok := lookup(f.key)
		if !ok {
			if f.required {
				errs = append(errs, &ConfigurationError{Key: f.key, Reason: "required but not set"})
				continue
			}
			raw = f.fallback
		}
		if err := f.set(&settings, raw); err != nil {
			errs = append(errs, &ConfigurationError{Key: f.key, Reason: err.Error()})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &settings, nil
}

var (
	defaultOnce     sync.Once
	defaultSettings *Settings
	defaultErr      error
)

// Default loads settings from .env and the process environment once and caches the result.
func Default() (*Settings, error) {
	defaultOnce.Do(func() {
		defaultSettings, defaultErr = Load()
	})
	return defaultSettings, defaultErr
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Addr returns the SMTP server address.
func (m MailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Server, m.Port)
}

func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLSeconds) * time.Second
}

func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLDays) * 24 * time.Hour
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}
