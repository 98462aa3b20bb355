package bizAuth

import (
	"errors"
	"time"
)

// Config holds every engine setting. Build it from DefaultConfig and override
// fields; Builder.Build validates it.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Security SecurityConfig
	Store    StoreConfig
	Cache    CacheConfig
	OAuth    OAuthConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls native token minting.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds login throttling thresholds.
type SecurityConfig struct {
	MaxLoginAttempts  int
	AttemptWindow     time.Duration
	LockoutDuration   time.Duration
	IPLockoutDuration time.Duration
	EdgeRequestLimit  int
	EdgeWindow        time.Duration
}

// StoreConfig bounds credential store calls.
type StoreConfig struct {
	OperationTimeout time.Duration
}

// CacheConfig sizes the admin-status cache.
type CacheConfig struct {
	AdminTTL  time.Duration
	AdminSize int
}

// OAuthConfig controls the authorization-code flow.
type OAuthConfig struct {
	StateTTL time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. JWT.PrivateKey must still be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "bizauth",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      1,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:  5,
			AttemptWindow:     900 * time.Second,
			LockoutDuration:   15 * time.Minute,
			IPLockoutDuration: time.Hour,
			EdgeRequestLimit:  75,
			EdgeWindow:        3 * time.Minute,
		},
		Store: StoreConfig{
			OperationTimeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			AdminTTL:  time.Hour,
			AdminSize: 10000,
		},
		OAuth: OAuthConfig{
			StateTTL: 10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 16 {
			return errors.New("hs256 requires a PrivateKey of at least 16 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Security
	if c.Security.MaxLoginAttempts < 1 {
		return errors.New("Security MaxLoginAttempts must be >= 1")
	}
	if c.Security.AttemptWindow <= 0 || c.Security.LockoutDuration <= 0 || c.Security.IPLockoutDuration <= 0 {
		return errors.New("Security windows must be > 0")
	}
	if c.Security.EdgeRequestLimit < 1 || c.Security.EdgeWindow <= 0 {
		return errors.New("Security edge limit and window must be > 0")
	}

	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}
	if c.Cache.AdminTTL <= 0 || c.Cache.AdminSize <= 0 {
		return errors.New("Cache AdminTTL and AdminSize must be > 0")
	}
	if c.OAuth.StateTTL <= 0 {
		return errors.New("OAuth StateTTL must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
