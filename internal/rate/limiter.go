package rate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure surfaced by the limiter.
var ErrRedisUnavailable = errors.New("redis unavailable")

// expiryLayout is the stored format of the lockout marker value (UTC).
const expiryLayout = "2006-01-02 15:04:05"

// Config holds thresholds and windows.
type Config struct {
	MaxLoginAttempts  int
	AttemptWindow     time.Duration
	LockoutDuration   time.Duration
	IPLockoutDuration time.Duration
	EdgeLimit         int
	EdgeWindow        time.Duration
	// Now overrides the clock used for lockout marker values.
	Now func() time.Time
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MaxLoginAttempts:  5,
		AttemptWindow:     900 * time.Second,
		LockoutDuration:   15 * time.Minute,
		IPLockoutDuration: time.Hour,
		EdgeLimit:         75,
		EdgeWindow:        3 * time.Minute,
	}
}

// Limiter implements the login attempt counters and lockouts on Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// New creates a Limiter backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{redis: redisClient, config: cfg, now: now}
}

// MaxLoginAttempts returns the configured failure threshold.
func (l *Limiter) MaxLoginAttempts() int {
	return l.config.MaxLoginAttempts
}

// RecordAttempt increments the failed-attempt counter for (ip, username) and
// re-arms its TTL. The INCR and EXPIRE run in one MULTI block.
func (l *Limiter) RecordAttempt(ctx context.Context, ip, username string) (int, error) {
	key := attemptsKey(ip, username)
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.config.AttemptWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(incr.Val()), nil
}

// RemainingAttempts returns max(0, MaxLoginAttempts-count).
func (l *Limiter) RemainingAttempts(ctx context.Context, ip, username string) (int, error) {
	count, err := l.redis.Get(ctx, attemptsKey(ip, username)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return l.config.MaxLoginAttempts, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return remaining(l.config.MaxLoginAttempts, count), nil
}

// IsLockedOut reports whether a lockout marker exists for username.
func (l *Limiter) IsLockedOut(ctx context.Context, username string) (bool, error) {
	n, err := l.redis.Exists(ctx, lockoutKey(username)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Lockout sets the lockout marker for username unless one already exists.
// It reports whether this call created the marker.
func (l *Limiter) Lockout(ctx context.Context, username string) (bool, error) {
	expiry := l.now().UTC().Add(l.config.LockoutDuration).Format(expiryLayout)
	created, err := l.redis.SetNX(ctx, lockoutKey(username), expiry, l.config.LockoutDuration).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return created, nil
}

// RemainingLockoutMinutes returns the whole minutes left on the username's
// lockout, rounded up, or 0 when unlocked. A marker whose stored expiry has
// passed is deleted.
func (l *Limiter) RemainingLockoutMinutes(ctx context.Context, username string) (int, error) {
	key := lockoutKey(username)
	raw, err := l.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	expiry, err := time.ParseInLocation(expiryLayout, raw, time.UTC)
	if err != nil {
		// Unreadable marker: fall back to the key TTL.
		ttl, ttlErr := l.redis.TTL(ctx, key).Result()
		if ttlErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, ttlErr)
		}
		return ceilMinutes(ttl), nil
	}

	left := expiry.Sub(l.now().UTC())
	if left <= 0 {
		if err := l.redis.Del(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return 0, nil
	}
	return ceilMinutes(left), nil
}

// IsIPLockedOut reports whether ip is under the coarse IP lockout.
func (l *Limiter) IsIPLockedOut(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}
	n, err := l.redis.Exists(ctx, ipLockKey(ip)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// IPLockoutMinutes returns the whole minutes left on the IP lockout.
func (l *Limiter) IPLockoutMinutes(ctx context.Context, ip string) (int, error) {
	ttl, err := l.redis.TTL(ctx, ipLockKey(ip)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ceilMinutes(ttl), nil
}

// LockIP places ip under lockout for d (IPLockoutDuration when d is zero)
// unless it is already locked. It reports whether this call created the lock.
func (l *Limiter) LockIP(ctx context.Context, ip string, d time.Duration) (bool, error) {
	if d <= 0 {
		d = l.config.IPLockoutDuration
	}
	created, err := l.redis.SetNX(ctx, ipLockKey(ip), 1, d).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return created, nil
}

// RecordEdgeRequest counts one request from ip in the current fixed window
// and reports whether the window limit is now exceeded.
func (l *Limiter) RecordEdgeRequest(ctx context.Context, ip string) (int, bool, error) {
	key := edgeKey(ip)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.EdgeWindow).Err(); err != nil {
			return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return int(count), count > int64(l.config.EdgeLimit), nil
}

func remaining(maxAttempts, count int) int {
	if left := maxAttempts - count; left > 0 {
		return left
	}
	return 0
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
