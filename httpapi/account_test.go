package httpapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/bizAuth/store"
)

func (env *apiEnv) createAccount(t *testing.T, username, password string) {
	t.Helper()
	rec := env.do(t, request{method: http.MethodPost, path: "/account", body: credentials(username, password)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (env *apiEnv) seedOAuth(t *testing.T, googleID, name, accessToken string) {
	t.Helper()
	require.NoError(t, env.store.CreateOAuthAccount(context.Background(), &store.OAuthAccount{
		GoogleID:     googleID,
		AccountName:  name,
		AccessToken:  accessToken,
		RefreshToken: "refresh-" + googleID,
	}))
}

func TestCreateAccount(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, request{method: http.MethodPost, path: "/account", body: credentials("alice", "secret123")})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Account created successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotEmpty(t, user["_id"])

	rec = env.do(t, request{method: http.MethodPost, path: "/account", body: credentials("alice", "other")})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode(t, rec)["code"])

	rec = env.do(t, request{method: http.MethodPost, path: "/account", body: credentials("bob", "")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAccountRejectsMalformedBody(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, request{method: http.MethodPost, path: "/account", body: "not an object"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode(t, rec)["message"])
}

func TestUpdateAccount(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")

	rec := env.do(t, request{method: http.MethodPut, path: "/account", body: map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"new_username": "alice2",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "alice2", decode(t, rec)["user"].(map[string]any)["username"])

	rec = env.do(t, request{method: http.MethodPut, path: "/account", body: map[string]string{
		"username":     "alice2",
		"password":     "wrong",
		"new_password": "secret456",
	}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, request{method: http.MethodPut, path: "/account", body: map[string]string{
		"username":     "nobody",
		"password":     "secret123",
		"new_password": "secret456",
	}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthLinkedNamesAreImmutable(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")
	env.seedOAuth(t, "g-7", "Grace Hopper", "ya29.grace")
	jar, _ := env.login(t, "alice", "secret123")

	rec := env.do(t, request{method: http.MethodPut, path: "/account", body: map[string]string{
		"username":     "Grace Hopper",
		"password":     "whatever",
		"new_password": "secret456",
	}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, request{method: http.MethodPut, path: "/account", body: map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"new_username": "Grace Hopper",
	}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	env.store.SetAdmin("alice", true)
	rec = env.do(t, request{
		method:  http.MethodDelete,
		path:    "/account",
		body:    map[string]string{"username": "Grace Hopper"},
		cookies: []*http.Cookie{jar["access_token_cookie"]},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteAccount(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")
	env.createAccount(t, "bob", "hunter22")
	jar, _ := env.login(t, "alice", "secret123")
	access := jar["access_token_cookie"]

	rec := env.do(t, request{method: http.MethodDelete, path: "/account", body: map[string]string{"username": "alice"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, request{
		method:  http.MethodDelete,
		path:    "/account",
		body:    map[string]string{"username": "bob"},
		cookies: []*http.Cookie{access},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, request{
		method:  http.MethodDelete,
		path:    "/account",
		body:    map[string]string{"username": "alice"},
		cookies: []*http.Cookie{access},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Account deleted successfully", decode(t, rec)["message"])
	cleared := cookies(rec)
	require.Contains(t, cleared, "access_token_cookie")
	assert.Less(t, cleared["access_token_cookie"].MaxAge, 0)

	rec = env.do(t, request{method: http.MethodGet, path: "/protected", cookies: []*http.Cookie{access}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetPasswordRequiresAdmin(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")
	env.createAccount(t, "bob", "hunter22")
	env.createAccount(t, "carol", "admin-pass")
	// Admin status is cached per identity, so carol is promoted before her
	// first request.
	env.store.SetAdmin("carol", true)
	bobJar, _ := env.login(t, "bob", "hunter22")
	carolJar, _ := env.login(t, "carol", "admin-pass")
	reset := map[string]string{"username": "alice", "new_password": "fresh-pass"}

	rec := env.do(t, request{method: http.MethodPut, path: "/reset_password", body: reset, cookies: []*http.Cookie{bobJar["access_token_cookie"]}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, request{method: http.MethodPut, path: "/reset_password", body: reset})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admin := carolJar["access_token_cookie"]
	rec = env.do(t, request{method: http.MethodPut, path: "/reset_password", body: reset, cookies: []*http.Cookie{admin}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Password updated successfully", decode(t, rec)["message"])

	env.login(t, "alice", "fresh-pass")

	rec = env.do(t, request{
		method:  http.MethodPut,
		path:    "/reset_password",
		body:    map[string]string{"username": "ghost", "new_password": "x"},
		cookies: []*http.Cookie{admin},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
