package httpapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/httpapi"
	"github.com/MrEthical07/bizAuth/store"
	"github.com/MrEthical07/bizAuth/store/memstore"
)

func TestAliceScenario(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")

	jar, body := env.login(t, "alice", "secret123")
	for _, name := range []string{"access_token_cookie", "refresh_token_cookie", "access_csrf_cookie", "refresh_csrf_cookie"} {
		require.Contains(t, jar, name)
		assert.NotEmpty(t, jar[name].Value, name)
		assert.True(t, jar[name].HttpOnly, name)
		assert.True(t, jar[name].Secure, name)
		assert.Equal(t, http.SameSiteNoneMode, jar[name].SameSite, name)
	}
	require.Contains(t, jar, "logged_in")
	assert.False(t, jar["logged_in"].HttpOnly)

	assert.Equal(t, "Login successful", body["message"])
	tokens := body["csrf_tokens"].(map[string]any)
	assert.NotEmpty(t, tokens["access_csrf"])
	assert.NotEqual(t, tokens["access_csrf"], tokens["refresh_csrf"])
	assert.Equal(t, jar["access_csrf_cookie"].Value, tokens["access_csrf"])
	assert.Equal(t, jar["refresh_csrf_cookie"].Value, tokens["refresh_csrf"])

	for want := 4; want >= 1; want-- {
		rec := env.do(t, request{method: http.MethodPost, path: "/token_login_set", body: credentials("alice", "wrong")})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.EqualValues(t, want, decode(t, rec)["remaining_attempts"])
	}

	rec := env.do(t, request{method: http.MethodPost, path: "/token_login_set", body: credentials("alice", "wrong")})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.EqualValues(t, 15, decode(t, rec)["wait_minutes"])

	rec = env.do(t, request{method: http.MethodPost, path: "/token_login_set", body: credentials("alice", "secret123")})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLoginReusesUnexpiredRefreshToken(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")

	first, _ := env.login(t, "alice", "secret123")
	second, _ := env.login(t, "alice", "secret123")
	assert.Equal(t, first["refresh_token_cookie"].Value, second["refresh_token_cookie"].Value)
}

func TestLoginEdgeLimit(t *testing.T) {
	env := newAPIEnv(t)

	// Distinct usernames keep the per-username lockout out of the way.
	for i := 0; i < 75; i++ {
		rec := env.do(t, request{method: http.MethodPost, path: "/token_login_set", body: credentials(fmt.Sprintf("ghost-%d", i), "x")})
		require.Equal(t, http.StatusUnauthorized, rec.Code, "request %d", i)
	}

	rec := env.do(t, request{method: http.MethodPost, path: "/token_login_set", body: credentials("ghost", "x")})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.EqualValues(t, 60, decode(t, rec)["wait_minutes"])
}

func TestRefreshRotation(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")
	jar, body := env.login(t, "alice", "secret123")
	refreshCSRF := body["csrf_tokens"].(map[string]any)["refresh_csrf"].(string)
	oldRefresh := jar["refresh_token_cookie"]

	rec := env.do(t, request{method: http.MethodPost, path: "/token_refresh", cookies: []*http.Cookie{oldRefresh}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, request{
		method:  http.MethodPost,
		path:    "/token_refresh",
		cookies: []*http.Cookie{oldRefresh},
		headers: map[string]string{"X-CSRF-TOKEN": "not-the-csrf"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, request{
		method:  http.MethodPost,
		path:    "/token_refresh",
		cookies: []*http.Cookie{oldRefresh},
		headers: map[string]string{"X-CSRF-TOKEN": refreshCSRF},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := cookies(rec)
	assert.NotEqual(t, oldRefresh.Value, rotated["refresh_token_cookie"].Value)
	assert.Equal(t, "Token refreshed successfully", decode(t, rec)["message"])

	rec = env.do(t, request{
		method:  http.MethodPost,
		path:    "/token_refresh",
		cookies: []*http.Cookie{oldRefresh},
		headers: map[string]string{"X-CSRF-TOKEN": refreshCSRF},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, request{method: http.MethodPost, path: "/token_refresh"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedAndAdminStatus(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")
	env.store.SetAdmin("alice", true)
	jar, body := env.login(t, "alice", "secret123")

	rec := env.do(t, request{method: http.MethodGet, path: "/protected"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, request{method: http.MethodGet, path: "/protected", cookies: []*http.Cookie{jar["access_token_cookie"]}})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "alice", got["logged_in_as"])
	assert.Equal(t, "native", got["method"])
	assert.Equal(t, body["user"].(map[string]any)["_id"], got["id"])

	rec = env.do(t, request{
		method:  http.MethodGet,
		path:    "/protected",
		headers: map[string]string{"Authorization": "Bearer " + jar["access_token_cookie"].Value},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, request{method: http.MethodGet, path: "/admin_status_check", cookies: []*http.Cookie{jar["access_token_cookie"]}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["isAdmin"])
}

func TestLogoutClearsEveryCookie(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, request{method: http.MethodPost, path: "/logout"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", decode(t, rec)["message"])

	cleared := cookies(rec)
	for _, name := range []string{
		"access_token", "access_token_cookie", "refresh_token", "refresh_token_cookie",
		"access_csrf_cookie", "refresh_csrf_cookie", "state", "id_token", "logged_in",
	} {
		require.Contains(t, cleared, name)
		assert.Empty(t, cleared[name].Value, name)
		assert.Less(t, cleared[name].MaxAge, 0, name)
	}
}

func TestLoginIgnoresUntrustedForwardingHeaders(t *testing.T) {
	env := newAPIEnv(t)
	env.createAccount(t, "alice", "secret123")

	for i := 0; i < 4; i++ {
		rec := env.do(t, request{
			method: http.MethodPost,
			path:   "/token_login_set",
			body:   credentials("alice", "wrong"),
			headers: map[string]string{
				"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1),
				"X-Real-IP":       fmt.Sprintf("192.0.2.%d", i+1),
			},
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i)
		assert.EqualValues(t, 4-i, decode(t, rec)["remaining_attempts"])
	}

	rec := env.do(t, request{
		method:  http.MethodPost,
		path:    "/token_login_set",
		body:    credentials("alice", "wrong"),
		headers: map[string]string{"X-Forwarded-For": "203.0.113.99"},
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestEdgeLimitIgnoresUntrustedForwardingHeaders(t *testing.T) {
	env := newAPIEnv(t)

	for i := 0; i < 75; i++ {
		rec := env.do(t, request{
			method:  http.MethodPost,
			path:    "/token_login_set",
			body:    credentials(fmt.Sprintf("ghost-%d", i), "x"),
			headers: map[string]string{"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1)},
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code, "request %d", i)
	}

	rec := env.do(t, request{
		method:  http.MethodPost,
		path:    "/token_login_set",
		body:    credentials("ghost", "x"),
		headers: map[string]string{"X-Forwarded-For": "203.0.113.200"},
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestTrustedProxyForwardsClientIP(t *testing.T) {
	env := newAPIEnv(t, func(c *httpapi.Config) { c.TrustedProxies = []string{"198.51.100.20"} })
	env.createAccount(t, "alice", "secret123")

	for i := 0; i < 4; i++ {
		rec := env.do(t, request{
			method:  http.MethodPost,
			path:    "/token_login_set",
			body:    credentials("alice", "wrong"),
			headers: map[string]string{"X-Forwarded-For": "203.0.113.1"},
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// Another client behind the same proxy has its own attempt budget.
	rec := env.do(t, request{
		method:  http.MethodPost,
		path:    "/token_login_set",
		body:    credentials("alice", "wrong"),
		headers: map[string]string{"X-Forwarded-For": "203.0.113.2"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, 4, decode(t, rec)["remaining_attempts"])
}

type stallingStore struct {
	*memstore.Store
}

func (s stallingStore) FindAccount(ctx context.Context, _ string) (*store.Account, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoginStoreTimeoutIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := bizAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Store.OperationTimeout = 20 * time.Millisecond
	engine, err := bizAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(stallingStore{Store: memstore.New()}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	h, err := httpapi.NewHandler(httpapi.DefaultConfig(), engine, nil)
	require.NoError(t, err)
	router, err := httpapi.NewRouter(h)
	require.NoError(t, err)
	env := &apiEnv{router: router, engine: engine, mr: mr}

	rec := env.do(t, request{method: http.MethodPost, path: "/token_login_set", body: credentials("alice", "secret123")})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, decode(t, rec), "remaining_attempts")
}
