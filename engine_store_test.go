package bizAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/bizAuth/store"
	"github.com/MrEthical07/bizAuth/store/memstore"
)

// stallingStore blocks account lookups until the caller gives up.
type stallingStore struct {
	*memstore.Store
}

func (s stallingStore) FindAccount(ctx context.Context, _ string) (*store.Account, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStoreTimeoutIsUnavailable(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, b *Builder) {
		cfg.Store.OperationTimeout = 20 * time.Millisecond
		b.WithStore(stallingStore{Store: memstore.New()})
	})

	start := time.Now()
	_, err := env.engine.Login(ipContext(), "alice", "secret123")
	requireKind(t, err, KindUnavailable)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("login waited %v for a stalled store", elapsed)
	}
	if env.engine.MetricsSnapshot().Counters[MetricStoreUnavailable] != 1 {
		t.Fatal("store failure not counted")
	}
	if env.engine.MetricsSnapshot().Counters[MetricLoginFailure] != 0 {
		t.Fatal("infrastructure failure counted as a credential failure")
	}
}

func TestTimeoutStorePassesThroughNotFound(t *testing.T) {
	s := newTimeoutStore(memstore.New(), time.Second)

	_, err := s.FindAccount(context.Background(), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, store.ErrUnavailable) {
		t.Fatal("not found must not read as unavailable")
	}
}

// refreshWriteCounter records which refresh-token write the engine chose.
type refreshWriteCounter struct {
	*memstore.Store
	inserts, upserts int
	failInsert       error
}

func (s *refreshWriteCounter) InsertRefreshToken(ctx context.Context, record store.RefreshToken) error {
	s.inserts++
	if s.failInsert != nil {
		return s.failInsert
	}
	return s.Store.InsertRefreshToken(ctx, record)
}

func (s *refreshWriteCounter) UpsertRefreshToken(ctx context.Context, record store.RefreshToken) error {
	s.upserts++
	return s.Store.UpsertRefreshToken(ctx, record)
}

func TestLoginInsertsFirstRefreshTokenAndReplacesExpired(t *testing.T) {
	counter := &refreshWriteCounter{Store: memstore.New()}
	env := newTestEnv(t, func(_ *Config, b *Builder) { b.WithStore(counter) })
	mustCreate(t, env, "alice", "secret123")

	mustLogin(t, env, "alice", "secret123")
	if counter.inserts != 1 || counter.upserts != 0 {
		t.Fatalf("first login: inserts=%d upserts=%d", counter.inserts, counter.upserts)
	}

	env.advance(31 * 24 * time.Hour)
	mustLogin(t, env, "alice", "secret123")
	if counter.inserts != 1 || counter.upserts != 1 {
		t.Fatalf("login after expiry: inserts=%d upserts=%d", counter.inserts, counter.upserts)
	}
}

func TestLoginFallsBackWhenFirstInsertLosesRace(t *testing.T) {
	counter := &refreshWriteCounter{Store: memstore.New(), failInsert: store.ErrDuplicate}
	env := newTestEnv(t, func(_ *Config, b *Builder) { b.WithStore(counter) })
	mustCreate(t, env, "alice", "secret123")

	res := mustLogin(t, env, "alice", "secret123")
	rec, err := counter.FindRefreshTokenByUsername(context.Background(), "alice")
	if err != nil || rec.Token != res.RefreshToken {
		t.Fatalf("expected stored refresh token after fallback, got %+v (%v)", rec, err)
	}
	if counter.upserts != 1 {
		t.Fatalf("upserts = %d, want 1", counter.upserts)
	}
}
