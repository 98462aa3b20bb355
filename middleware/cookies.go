package middleware

// Cookie names shared by the guard and the handlers that set them.
const (
	CookieAccessToken  = "access_token_cookie"
	CookieRefreshToken = "refresh_token_cookie"
	CookieAccessCSRF   = "access_csrf_cookie"
	CookieRefreshCSRF  = "refresh_csrf_cookie"

	CookieOAuthAccess  = "access_token"
	CookieOAuthRefresh = "refresh_token"
	CookieOAuthIDToken = "id_token"
	CookieOAuthState   = "state"

	// CookieLoggedIn is a UI hint readable by scripts; it carries no credential.
	CookieLoggedIn = "logged_in"

	// HeaderCSRF carries the refresh CSRF value on /token_refresh.
	HeaderCSRF = "X-CSRF-TOKEN"
)
