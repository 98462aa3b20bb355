// Package config loads process configuration for cmd/bizauth from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/httpapi"
	"github.com/MrEthical07/bizAuth/oauth"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURL  string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthUserInfoURL  string
	PostLoginRedirect string

	MaxLoginAttempts  int
	AttemptWindow     time.Duration
	LockoutDuration   time.Duration
	IPLockoutDuration time.Duration
	EdgeRequestLimit  int
	EdgeWindow        time.Duration

	CORSAllowedOrigins []string
	TrustedProxies     []string
	SecureCookies      bool
	AuditEnabled       bool

	SentryDSN         string
	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "5000"),
		ServiceName: getEnv("SERVICE_NAME", "bizauth"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "business_directory"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET_KEY")),
		AccessTokenTTL:  getDuration("JWT_ACCESS_TOKEN_EXPIRES", time.Hour),
		RefreshTokenTTL: getDuration("JWT_REFRESH_TOKEN_EXPIRES", 30*24*time.Hour),

		OAuthClientID:     os.Getenv("CLIENT_ID"),
		OAuthClientSecret: os.Getenv("CLIENT_SECRET"),
		OAuthRedirectURL:  os.Getenv("REDIRECT_URI"),
		OAuthAuthURL:      getEnv("AUTH_URI", "https://accounts.google.com/o/oauth2/auth"),
		OAuthTokenURL:     getEnv("TOKEN_URI", "https://oauth2.googleapis.com/token"),
		OAuthUserInfoURL:  getEnv("USER_INFO", "https://www.googleapis.com/oauth2/v1/userinfo"),
		PostLoginRedirect: getEnv("POST_LOGIN_REDIRECT", "/"),

		MaxLoginAttempts:  getInt("MAX_LOGIN_ATTEMPTS", 5),
		AttemptWindow:     getDuration("LOGIN_ATTEMPT_WINDOW", 900*time.Second),
		LockoutDuration:   getDuration("LOGIN_LOCKOUT_DURATION", 15*time.Minute),
		IPLockoutDuration: getDuration("IP_LOCKOUT_DURATION", time.Hour),
		EdgeRequestLimit:  getInt("EDGE_REQUEST_LIMIT", 75),
		EdgeWindow:        getDuration("EDGE_WINDOW", 3*time.Minute),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", nil),
		TrustedProxies:     getList("TRUSTED_PROXIES", nil),
		SecureCookies:      getBool("SECURE_COOKIES", true),
		AuditEnabled:       getBool("AUDIT_ENABLED", true),

		SentryDSN:         os.Getenv("SENTRY_DSN"),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET_KEY is required")
	}
	switch cfg.StoreDriver {
	case DriverMongo:
		if cfg.MongoURI == "" {
			return Config{}, errors.New("MONGODB_URI is required for the mongo store")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required for the postgres store")
		}
	case DriverMemory:
		if !cfg.IsDevelopment() {
			return Config{}, errors.New("the memory store is only allowed when APP_ENV=development")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// OAuthEnabled reports whether enough provider settings are present to run
// the Google flow.
func (c Config) OAuthEnabled() bool {
	return c.OAuthClientID != "" && c.OAuthRedirectURL != ""
}

// Engine maps the process settings onto the engine defaults.
func (c Config) Engine() bizAuth.Config {
	cfg := bizAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	cfg.JWT.AccessTTL = c.AccessTokenTTL
	cfg.JWT.RefreshTTL = c.RefreshTokenTTL
	cfg.Security.MaxLoginAttempts = c.MaxLoginAttempts
	cfg.Security.AttemptWindow = c.AttemptWindow
	cfg.Security.LockoutDuration = c.LockoutDuration
	cfg.Security.IPLockoutDuration = c.IPLockoutDuration
	cfg.Security.EdgeRequestLimit = c.EdgeRequestLimit
	cfg.Security.EdgeWindow = c.EdgeWindow
	cfg.Audit.Enabled = c.AuditEnabled
	return cfg
}

func (c Config) HTTP() httpapi.Config {
	cfg := httpapi.DefaultConfig()
	cfg.PostLoginRedirect = c.PostLoginRedirect
	cfg.AllowedOrigins = c.CORSAllowedOrigins
	cfg.TrustedProxies = c.TrustedProxies
	cfg.SecureCookies = c.SecureCookies
	return cfg
}

func (c Config) OAuth() oauth.Config {
	return oauth.Config{
		ClientID:     c.OAuthClientID,
		ClientSecret: c.OAuthClientSecret,
		RedirectURL:  c.OAuthRedirectURL,
		AuthURL:      c.OAuthAuthURL,
		TokenURL:     c.OAuthTokenURL,
		UserInfoURL:  c.OAuthUserInfoURL,
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// getDuration accepts Go durations ("15m") and bare seconds ("900").
func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
