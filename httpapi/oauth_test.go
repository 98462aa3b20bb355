package httpapi_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oauthLogin runs /login and /login/callback and returns the callback cookies.
func (env *apiEnv) oauthLogin(t *testing.T) map[string]*http.Cookie {
	t.Helper()
	rec := env.do(t, request{method: http.MethodGet, path: "/login"})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	state := cookies(rec)["state"]
	require.NotNil(t, state)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, location.Query().Get("state"))

	rec = env.do(t, request{
		method:  http.MethodGet,
		path:    "/login/callback?code=auth-code&state=" + url.QueryEscape(state.Value),
		cookies: []*http.Cookie{state},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "https://app.example.com/posting", rec.Header().Get("Location"))
	return cookies(rec)
}

func TestOAuthLoginFlow(t *testing.T) {
	env := newAPIEnv(t)

	jar := env.oauthLogin(t)
	assert.Equal(t, "ya29.first", jar["access_token"].Value)
	assert.Equal(t, "1//refresh", jar["refresh_token"].Value)
	assert.Equal(t, "eyJ.id.token", jar["id_token"].Value)
	assert.Less(t, jar["state"].MaxAge, 0)
	assert.False(t, jar["logged_in"].HttpOnly)

	rec := env.do(t, request{method: http.MethodGet, path: "/protected", cookies: []*http.Cookie{jar["access_token"]}})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "Grace Hopper", got["logged_in_as"])
	assert.Equal(t, "oauth", got["method"])
	assert.NotContains(t, got, "id")

	rec = env.do(t, request{method: http.MethodGet, path: "/google_user_data", cookies: []*http.Cookie{jar["access_token"]}})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)
	assert.Equal(t, "g-42", data["google_id"])
	assert.Equal(t, "Grace Hopper", data["account_name"])
}

func TestOAuthCallbackRejectsStateMismatch(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, request{method: http.MethodGet, path: "/login"})
	require.Equal(t, http.StatusFound, rec.Code)
	state := cookies(rec)["state"]

	rec = env.do(t, request{
		method:  http.MethodGet,
		path:    "/login/callback?code=auth-code&state=forged",
		cookies: []*http.Cookie{state},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Less(t, cookies(rec)["state"].MaxAge, 0)
}

func TestGoogleTokenRefresh(t *testing.T) {
	env := newAPIEnv(t)
	jar := env.oauthLogin(t)

	rec := env.do(t, request{method: http.MethodPost, path: "/google_token_refresh", cookies: []*http.Cookie{jar["refresh_token"]}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Token refreshed successfully", decode(t, rec)["message"])
	assert.Equal(t, "ya29.second", cookies(rec)["access_token"].Value)

	rec = env.do(t, request{method: http.MethodGet, path: "/protected", cookies: []*http.Cookie{{Name: "access_token", Value: "ya29.second"}}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGoogleTokenRefreshClearsRejectedCookie(t *testing.T) {
	env := newAPIEnv(t)
	env.seedOAuth(t, "g-9", "Ada", "ya29.ada")

	rec := env.do(t, request{
		method:  http.MethodPost,
		path:    "/google_token_refresh",
		cookies: []*http.Cookie{{Name: "refresh_token", Value: "refresh-g-9"}},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token is invalid, please reauthenticate", decode(t, rec)["message"])
	assert.Less(t, cookies(rec)["refresh_token"].MaxAge, 0)

	rec = env.do(t, request{
		method:  http.MethodPost,
		path:    "/google_token_refresh",
		cookies: []*http.Cookie{{Name: "refresh_token", Value: "never-issued"}},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Less(t, cookies(rec)["refresh_token"].MaxAge, 0)

	rec = env.do(t, request{method: http.MethodPost, path: "/google_token_refresh"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token not found", decode(t, rec)["message"])
	assert.NotContains(t, cookies(rec), "refresh_token")
}

func TestGoogleUserDataRequiresToken(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, request{method: http.MethodGet, path: "/google_user_data"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, request{method: http.MethodGet, path: "/google_user_data", cookies: []*http.Cookie{{Name: "access_token", Value: "revoked"}}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired Google access token", decode(t, rec)["message"])
}
