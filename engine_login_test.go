package bizAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/bizAuth/store"
	"github.com/MrEthical07/bizAuth/store/memstore"
)

func TestLoginIssuesTokenPair(t *testing.T) {
	env := newTestEnv(t)
	info := mustCreate(t, env, "alice", "secret123")

	res := mustLogin(t, env, "alice", "secret123")
	if res.Username != "alice" || res.UserID != info.ID {
		t.Fatalf("unexpected session owner: %+v", res.Session)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if res.AccessCSRF == "" || res.RefreshCSRF == "" || res.AccessCSRF == res.RefreshCSRF {
		t.Fatalf("expected distinct csrf values, got %q / %q", res.AccessCSRF, res.RefreshCSRF)
	}
	if res.RefreshReused {
		t.Fatal("first login must mint a refresh token")
	}
	if want := env.clock.Now().Add(time.Hour); !res.AccessExpiresAt.Equal(want) {
		t.Fatalf("access expiry %v, want %v", res.AccessExpiresAt, want)
	}

	stored, err := env.store.FindRefreshTokenByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find refresh: %v", err)
	}
	if stored.Token != res.RefreshToken {
		t.Fatal("stored refresh token does not match issued token")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("login success metric = %d, want 1", got)
	}
}

func TestLoginReusesUnexpiredRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")

	first := mustLogin(t, env, "alice", "secret123")
	env.advance(time.Minute)
	second := mustLogin(t, env, "alice", "secret123")

	if !second.RefreshReused {
		t.Fatal("expected the stored refresh token to be reused")
	}
	if second.RefreshToken != first.RefreshToken || second.RefreshCSRF != first.RefreshCSRF {
		t.Fatal("reused refresh token or csrf changed")
	}
	if second.AccessToken == first.AccessToken {
		t.Fatal("access token must be freshly minted")
	}
}

func TestLoginMintsNewRefreshAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")

	first := mustLogin(t, env, "alice", "secret123")
	env.advance(31 * 24 * time.Hour)
	second := mustLogin(t, env, "alice", "secret123")

	if second.RefreshReused || second.RefreshToken == first.RefreshToken {
		t.Fatal("expired refresh token must be replaced")
	}
}

func TestLoginLockoutAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")
	ctx := ipContext()

	for _, want := range []int{4, 3, 2, 1} {
		_, err := env.engine.Login(ctx, "alice", "wrong")
		e := requireKind(t, err, KindAuthenticationFailed)
		if e.RemainingAttempts != want {
			t.Fatalf("remaining attempts = %d, want %d", e.RemainingAttempts, want)
		}
		if e.Detail != "Incorrect username or password" {
			t.Fatalf("unexpected detail %q", e.Detail)
		}
	}

	_, err := env.engine.Login(ctx, "alice", "wrong")
	e := requireKind(t, err, KindRateLimited)
	if e.Scope != ScopeIdentity || e.WaitMinutes != 15 {
		t.Fatalf("expected identity lockout of 15 minutes, got %+v", e)
	}
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	// The correct password is refused while locked.
	env.advance(5 * time.Minute)
	_, err = env.engine.Login(ctx, "alice", "secret123")
	e = requireKind(t, err, KindRateLimited)
	if e.WaitMinutes != 10 {
		t.Fatalf("wait minutes = %d, want 10", e.WaitMinutes)
	}

	env.advance(11 * time.Minute)
	mustLogin(t, env, "alice", "secret123")

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginLockout] != 1 {
		t.Fatalf("lockout metric = %d, want 1", snap.Counters[MetricLoginLockout])
	}
	if snap.Counters[MetricLoginRateLimited] != 1 {
		t.Fatalf("rate limited metric = %d, want 1", snap.Counters[MetricLoginRateLimited])
	}
}

func TestLoginUnknownUserCountsAttempts(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Login(ipContext(), "ghost", "whatever")
	e := requireKind(t, err, KindAuthenticationFailed)
	if e.RemainingAttempts != 4 {
		t.Fatalf("remaining attempts = %d, want 4", e.RemainingAttempts)
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginAttemptsAreScopedToClientIP(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")

	other := WithClientIP(context.Background(), "198.51.100.1")
	for i := 0; i < 3; i++ {
		_, _ = env.engine.Login(other, "alice", "wrong")
	}

	_, err := env.engine.Login(ipContext(), "alice", "wrong")
	e := requireKind(t, err, KindAuthenticationFailed)
	if e.RemainingAttempts != 4 {
		t.Fatalf("remaining attempts = %d, want 4 for a fresh ip", e.RemainingAttempts)
	}
}

func TestLoginRefusedUnderIPLockout(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")
	env.mr.Set("ip_rate_limit:"+testIP, "1")
	env.mr.SetTTL("ip_rate_limit:"+testIP, 30*time.Minute)

	_, err := env.engine.Login(ipContext(), "alice", "secret123")
	e := requireKind(t, err, KindRateLimited)
	if e.Scope != ScopeIP || e.WaitMinutes != 30 {
		t.Fatalf("expected ip lockout of 30 minutes, got %+v", e)
	}
	if !errors.Is(err, ErrIPRateLimited) {
		t.Fatalf("expected ErrIPRateLimited, got %v", err)
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ user, pass string }{{"", "pw"}, {"alice", ""}} {
		_, err := env.engine.Login(ipContext(), tc.user, tc.pass)
		requireKind(t, err, KindInvalidRequest)
	}
	if env.mr.Exists("login_attempts:" + testIP + ":alice") {
		t.Fatal("missing fields must not count as an attempt")
	}
}

func TestLoginUpgradesBcryptHash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if err := env.store.CreateAccount(ctx, &store.Account{Username: "legacy", PasswordHash: string(legacy)}); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	mustLogin(t, env, "legacy", "secret123")

	acc, err := env.store.FindAccount(ctx, "legacy")
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if acc.PasswordHash == string(legacy) {
		t.Fatal("expected the bcrypt hash to be replaced")
	}
	if env.engine.MetricsSnapshot().Counters[MetricPasswordUpgraded] != 1 {
		t.Fatal("expected password upgrade metric")
	}
	mustLogin(t, env, "legacy", "secret123")
}

func TestLoginRedisUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	engine, err := New().WithConfig(testConfig()).WithRedis(rdb).WithStore(memstore.New()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	_, err = engine.Login(ipContext(), "alice", "secret123")
	requireKind(t, err, KindUnavailable)
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
