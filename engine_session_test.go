package bizAuth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResolveIdentityNative(t *testing.T) {
	env := newTestEnv(t)
	info := mustCreate(t, env, "alice", "secret123")
	login := mustLogin(t, env, "alice", "secret123")

	id, err := env.engine.ResolveIdentity(context.Background(), Credentials{AccessToken: login.AccessToken})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Method != MethodNative || id.Username != "alice" || id.UserID != info.ID {
		t.Fatalf("unexpected identity %+v", id)
	}
	if id.CSRF != login.AccessCSRF {
		t.Fatal("identity must carry the access csrf claim")
	}
}

func TestResolveIdentityFallsBackToOAuth(t *testing.T) {
	env := newTestEnv(t)
	seedOAuthAccount(t, env, "g-1", "Bob Builder", "ya29.bob")
	ctx := context.Background()

	id, err := env.engine.ResolveIdentity(ctx, Credentials{OAuthAccessToken: "ya29.bob"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Method != MethodOAuth || id.Username != "Bob Builder" || id.GoogleID != "g-1" {
		t.Fatalf("unexpected identity %+v", id)
	}

	// A garbage native token still falls through to the OAuth cookie.
	id, err = env.engine.ResolveIdentity(ctx, Credentials{AccessToken: "not-a-jwt", OAuthAccessToken: "ya29.bob"})
	if err != nil || id.Method != MethodOAuth {
		t.Fatalf("expected oauth fallback, got %+v, %v", id, err)
	}
}

func TestResolveIdentityUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")
	login := mustLogin(t, env, "alice", "secret123")
	ctx := context.Background()

	cases := map[string]Credentials{
		"no credentials":      {},
		"unknown oauth token": {OAuthAccessToken: "ya29.unknown"},
		"garbage native":      {AccessToken: "garbage"},
		"refresh as access":   {AccessToken: login.RefreshToken},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.engine.ResolveIdentity(ctx, creds)
			e := requireKind(t, err, KindInvalidToken)
			if !errors.Is(err, ErrUnauthenticated) || e.Detail != "User not authenticated" {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestResolveIdentityExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")
	login := mustLogin(t, env, "alice", "secret123")

	env.advance(2 * time.Hour)
	_, err := env.engine.ResolveIdentity(context.Background(), Credentials{AccessToken: login.AccessToken})
	requireKind(t, err, KindInvalidToken)
}

func TestResolveIdentityDeletedAccount(t *testing.T) {
	env := newTestEnv(t)
	seedOAuthAccount(t, env, "g-1", "Bob Builder", "ya29.bob")
	mustCreate(t, env, "alice", "secret123")
	login := mustLogin(t, env, "alice", "secret123")
	ctx := context.Background()

	if err := env.engine.DeleteAccount(ctx, Identity{Method: MethodNative, Username: "alice"}, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// A verified token for a deleted account does not fall back.
	_, err := env.engine.ResolveIdentity(ctx, Credentials{AccessToken: login.AccessToken, OAuthAccessToken: "ya29.bob"})
	requireKind(t, err, KindInvalidToken)
}

func TestIsAdminCachesAnswer(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")
	ctx := context.Background()
	id := Identity{Method: MethodNative, Username: "alice"}

	isAdmin, err := env.engine.IsAdmin(ctx, id)
	if err != nil || isAdmin {
		t.Fatalf("expected non-admin, got %v, %v", isAdmin, err)
	}

	env.store.SetAdmin("alice", true)
	isAdmin, err = env.engine.IsAdmin(ctx, id)
	if err != nil {
		t.Fatalf("is admin: %v", err)
	}
	if isAdmin {
		t.Fatal("cached answer must survive a flag change within the ttl")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricAdminCacheMiss] != 1 || snap.Counters[MetricAdminCacheHit] != 1 {
		t.Fatalf("unexpected cache metrics: %+v", snap.Counters)
	}
}

func TestIsAdminOAuthAccount(t *testing.T) {
	env := newTestEnv(t)
	seedOAuthAccount(t, env, "g-1", "Bob Builder", "ya29.bob")
	env.store.SetAdmin("Bob Builder", true)

	isAdmin, err := env.engine.IsAdmin(context.Background(), Identity{Method: MethodOAuth, Username: "Bob Builder", GoogleID: "g-1"})
	if err != nil {
		t.Fatalf("is admin: %v", err)
	}
	if !isAdmin {
		t.Fatal("expected oauth admin")
	}
}

func TestIsAdminRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.IsAdmin(context.Background(), Identity{})
	requireKind(t, err, KindInvalidToken)
}

func TestLogoutCountsAndAudits(t *testing.T) {
	sink := NewChannelSink(8)
	env := newTestEnv(t, func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		b.WithAuditSink(sink)
	})

	env.engine.Logout(context.Background(), Identity{Method: MethodNative, Username: "alice"})
	if env.engine.MetricsSnapshot().Counters[MetricLogout] != 1 {
		t.Fatal("expected logout metric")
	}

	select {
	case ev := <-sink.Events():
		if ev.EventType != "logout" || ev.Username != "alice" || !ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a logout audit event")
	}
}

func TestSharedNameDoesNotCrossIdentityMethods(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "boss", "secret123")
	mustCreate(t, env, "victim", "secret456")
	env.store.SetAdmin("boss", true)
	// Records written before names were kept exclusive.
	seedOAuthAccount(t, env, "g-evil", "boss", "ya29.evil")
	ctx := context.Background()

	oauthID, err := env.engine.ResolveIdentity(ctx, Credentials{OAuthAccessToken: "ya29.evil"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if oauthID.Method != MethodOAuth || oauthID.GoogleID != "g-evil" {
		t.Fatalf("unexpected identity %+v", oauthID)
	}
	isAdmin, err := env.engine.IsAdmin(ctx, oauthID)
	if err != nil || isAdmin {
		t.Fatalf("oauth identity must not inherit native admin: %v, %v", isAdmin, err)
	}

	err = env.engine.DeleteAccount(ctx, oauthID, "victim")
	requireKind(t, err, KindForbidden)
	err = env.engine.ResetPassword(ctx, oauthID, "victim", "hijacked")
	requireKind(t, err, KindForbidden)

	native := Identity{Method: MethodNative, Username: "boss"}
	isAdmin, err = env.engine.IsAdmin(ctx, native)
	if err != nil || !isAdmin {
		t.Fatalf("native admin lost: %v, %v", isAdmin, err)
	}
	if _, err := env.engine.UpdateAccount(ctx, AccountUpdateRequest{Username: "boss", Password: "secret123", NewPassword: "secret789"}); err != nil {
		t.Fatalf("native update: %v", err)
	}
	if err := env.engine.DeleteAccount(ctx, native, "victim"); err != nil {
		t.Fatalf("native admin delete: %v", err)
	}
}
