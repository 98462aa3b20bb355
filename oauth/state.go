package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth_state:"

// ErrStateUnavailable wraps Redis failures of the state store.
var ErrStateUnavailable = errors.New("oauth: state store unavailable")

// State is the payload remembered for an issued state value.
type State struct {
	ClientIP  string    `json:"client_ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewState returns 32 random bytes, base64url encoded.
func NewState() (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// RedisStateStore keeps issued states until they are consumed or expire.
type RedisStateStore struct {
	client redis.UniversalClient
}

// NewRedisStateStore constructs a Redis-backed state store.
func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client}
}

// Save remembers state for ttl.
func (s *RedisStateStore) Save(ctx context.Context, state string, data State, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	return nil
}

// Consume atomically loads and deletes state. A missing or expired state
// returns (nil, nil); a second Consume of the same state always misses.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (*State, error) {
	raw, err := s.client.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	var out State
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &out, nil
}
