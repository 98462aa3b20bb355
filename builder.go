package bizAuth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/bizAuth/internal/audit"
	"github.com/MrEthical07/bizAuth/internal/cache"
	"github.com/MrEthical07/bizAuth/internal/rate"
	"github.com/MrEthical07/bizAuth/jwt"
	"github.com/MrEthical07/bizAuth/oauth"
	"github.com/MrEthical07/bizAuth/password"
	"github.com/MrEthical07/bizAuth/store"
)

// OAuthProvider is the identity provider surface the OAuth bridge calls.
// *oauth.Client implements it.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, accessToken string) (oauth.Profile, error)
}

// OAuthStateStore remembers issued authorization states until the callback
// consumes them. *oauth.RedisStateStore implements it.
type OAuthStateStore interface {
	Save(ctx context.Context, state string, data oauth.State, ttl time.Duration) error
	Consume(ctx context.Context, state string) (*oauth.State, error)
}

// Builder assembles an Engine. A Builder can build exactly one Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  store.Store

	oauth     OAuthProvider
	states    OAuthStateStore
	logger    *zap.Logger
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing rate limiting and OAuth state. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the credential store adapter. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithOAuthProvider enables the OAuth bridge. Without a provider every OAuth
// operation fails with ErrOAuthDisabled.
func (b *Builder) WithOAuthProvider(p OAuthProvider) *Builder {
	b.oauth = p
	return b
}

// WithStateStore overrides the Redis state store used by the OAuth bridge.
func (b *Builder) WithStateStore(s OAuthStateStore) *Builder {
	b.states = s
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for token minting, lockout arithmetic and
// refresh expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	hasher, err := password.New(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	limiter := rate.New(b.redis, rate.Config{
		MaxLoginAttempts:  cfg.Security.MaxLoginAttempts,
		AttemptWindow:     cfg.Security.AttemptWindow,
		LockoutDuration:   cfg.Security.LockoutDuration,
		IPLockoutDuration: cfg.Security.IPLockoutDuration,
		EdgeLimit:         cfg.Security.EdgeRequestLimit,
		EdgeWindow:        cfg.Security.EdgeWindow,
		Now:               now,
	})

	states := b.states
	if states == nil && b.oauth != nil {
		states = oauth.NewRedisStateStore(b.redis)
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		redis:      b.redis,
		store:      newTimeoutStore(b.store, cfg.Store.OperationTimeout),
		limiter:    limiter,
		hasher:     hasher,
		jwt:        jm,
		oauth:      b.oauth,
		states:     states,
		adminCache: cache.NewAdminStatus(cfg.Cache.AdminSize, cfg.Cache.AdminTTL),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger.Named("bizauth"),
		tracer:  otel.Tracer(tracerName),
		clock:   now,
	}

	b.built = true
	return engine, nil
}
