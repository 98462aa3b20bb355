package bizAuth

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/bizAuth/store"
)

func seedOAuthAccount(t *testing.T, env *testEnv, googleID, name, accessToken string) {
	t.Helper()
	err := env.store.CreateOAuthAccount(context.Background(), &store.OAuthAccount{
		GoogleID:     googleID,
		AccountName:  name,
		AccessToken:  accessToken,
		RefreshToken: "refresh-" + googleID,
	})
	if err != nil {
		t.Fatalf("seed oauth account: %v", err)
	}
}

func TestCreateAccountRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")

	_, err := env.engine.CreateAccount(context.Background(), "alice", "other")
	e := requireKind(t, err, KindConflict)
	if e.Detail != "Username already exists" {
		t.Fatalf("detail = %q", e.Detail)
	}
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if env.engine.MetricsSnapshot().Counters[MetricAccountCreationDuplicate] != 1 {
		t.Fatal("expected duplicate metric")
	}
}

func TestCreateAccountRejectsOAuthLinkedName(t *testing.T) {
	env := newTestEnv(t)
	seedOAuthAccount(t, env, "g-1", "Bob Builder", "ya29.bob")

	_, err := env.engine.CreateAccount(context.Background(), "Bob Builder", "secret123")
	requireKind(t, err, KindForbidden)
	if !errors.Is(err, ErrOAuthLinked) {
		t.Fatalf("expected ErrOAuthLinked, got %v", err)
	}
}

func TestCreateAccountRequiresFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.CreateAccount(context.Background(), "alice", "")
	requireKind(t, err, KindInvalidRequest)
}

func TestUpdateAccountRenameAndPassword(t *testing.T) {
	env := newTestEnv(t)
	info := mustCreate(t, env, "alice", "secret123")
	mustLogin(t, env, "alice", "secret123")
	ctx := context.Background()

	updated, err := env.engine.UpdateAccount(ctx, AccountUpdateRequest{
		Username:    "alice",
		Password:    "secret123",
		NewUsername: "alicia",
		NewPassword: "newsecret",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Username != "alicia" || updated.ID != info.ID {
		t.Fatalf("unexpected account info %+v", updated)
	}

	if _, err := env.store.FindRefreshTokenByUsername(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("refresh token of old username must be revoked, got %v", err)
	}

	_, err = env.engine.Login(ipContext(), "alicia", "secret123")
	requireKind(t, err, KindAuthenticationFailed)
	mustLogin(t, env, "alicia", "newsecret")
}

func TestUpdateAccountRules(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")
	mustCreate(t, env, "carol", "secret456")
	seedOAuthAccount(t, env, "g-1", "Bob Builder", "ya29.bob")
	ctx := context.Background()

	cases := []struct {
		name   string
		req    AccountUpdateRequest
		kind   ErrorKind
		target error
	}{
		{
			name: "wrong current password",
			req:  AccountUpdateRequest{Username: "alice", Password: "nope", NewPassword: "x1"},
			kind: KindForbidden, target: ErrInvalidCredentials,
		},
		{
			name: "same password",
			req:  AccountUpdateRequest{Username: "alice", Password: "secret123", NewPassword: "secret123"},
			kind: KindInvalidRequest, target: ErrPasswordReuse,
		},
		{
			name: "nothing to change",
			req:  AccountUpdateRequest{Username: "alice", Password: "secret123"},
			kind: KindInvalidRequest, target: ErrInvalidRequest,
		},
		{
			name: "rename onto existing account",
			req:  AccountUpdateRequest{Username: "alice", Password: "secret123", NewUsername: "carol"},
			kind: KindConflict, target: ErrAccountExists,
		},
		{
			name: "rename onto google account",
			req:  AccountUpdateRequest{Username: "alice", Password: "secret123", NewUsername: "Bob Builder"},
			kind: KindForbidden, target: ErrOAuthLinked,
		},
		{
			name: "google account",
			req:  AccountUpdateRequest{Username: "Bob Builder", Password: "x", NewPassword: "y"},
			kind: KindForbidden, target: ErrOAuthLinked,
		},
		{
			name: "unknown account",
			req:  AccountUpdateRequest{Username: "ghost", Password: "x", NewPassword: "y"},
			kind: KindNotFound, target: ErrAccountNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.UpdateAccount(ctx, tc.req)
			requireKind(t, err, tc.kind)
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}

	mustLogin(t, env, "alice", "secret123")
}

func TestDeleteAccountAuthorization(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")
	mustCreate(t, env, "mallory", "secret456")
	mustCreate(t, env, "root", "secret789")
	env.store.SetAdmin("root", true)
	ctx := context.Background()

	err := env.engine.DeleteAccount(ctx, Identity{Method: MethodNative, Username: "mallory"}, "alice")
	requireKind(t, err, KindForbidden)

	err = env.engine.DeleteAccount(ctx, Identity{}, "alice")
	requireKind(t, err, KindInvalidToken)

	if err := env.engine.DeleteAccount(ctx, Identity{Method: MethodNative, Username: "root"}, "alice"); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := env.store.FindAccount(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("account should be gone, got %v", err)
	}

	if err := env.engine.DeleteAccount(ctx, Identity{Method: MethodNative, Username: "mallory"}, "mallory"); err != nil {
		t.Fatalf("self delete: %v", err)
	}

	err = env.engine.DeleteAccount(ctx, Identity{Method: MethodNative, Username: "root"}, "ghost")
	requireKind(t, err, KindNotFound)
}

func TestDeleteAccountRejectsGoogleAccount(t *testing.T) {
	env := newTestEnv(t)
	seedOAuthAccount(t, env, "g-1", "Bob Builder", "ya29.bob")
	caller := Identity{Method: MethodOAuth, Username: "Bob Builder", GoogleID: "g-1"}
	env.store.SetAdmin("Bob Builder", true)

	err := env.engine.DeleteAccount(context.Background(), caller, "Bob Builder")
	e := requireKind(t, err, KindForbidden)
	if e.Detail != "Deletion not allowed for users logged in with Google" {
		t.Fatalf("detail = %q", e.Detail)
	}
}

func TestResetPasswordByAdmin(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "alice", "secret123")
	mustCreate(t, env, "root", "secret789")
	env.store.SetAdmin("root", true)
	mustLogin(t, env, "alice", "secret123")
	ctx := context.Background()
	admin := Identity{Method: MethodNative, Username: "root"}

	err := env.engine.ResetPassword(ctx, Identity{Method: MethodNative, Username: "alice"}, "alice", "hijack")
	e := requireKind(t, err, KindForbidden)
	if !errors.Is(err, ErrPermissionDenied) || e.Detail != "Unauthorized access" {
		t.Fatalf("expected permission denied, got %v", err)
	}

	if err := env.engine.ResetPassword(ctx, admin, "alice", "reset-pw"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := env.store.FindRefreshTokenByUsername(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("reset must revoke refresh tokens, got %v", err)
	}
	mustLogin(t, env, "alice", "reset-pw")

	err = env.engine.ResetPassword(ctx, admin, "alice", "")
	e = requireKind(t, err, KindInvalidRequest)
	if e.Detail != "New password is required" {
		t.Fatalf("detail = %q", e.Detail)
	}

	err = env.engine.ResetPassword(ctx, admin, "ghost", "whatever")
	requireKind(t, err, KindNotFound)
	if env.engine.MetricsSnapshot().Counters[MetricPasswordReset] != 1 {
		t.Fatal("expected exactly one password reset metric")
	}
}
