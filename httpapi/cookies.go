package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/middleware"
)

// sessionCookies lists every cookie logout clears.
var sessionCookies = []string{
	middleware.CookieOAuthAccess,
	middleware.CookieAccessToken,
	middleware.CookieOAuthRefresh,
	middleware.CookieRefreshToken,
	middleware.CookieAccessCSRF,
	middleware.CookieRefreshCSRF,
	middleware.CookieOAuthState,
	middleware.CookieOAuthIDToken,
	middleware.CookieLoggedIn,
}

func (h *Handler) cookie(name, value string) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.SecureCookies {
		ck.Secure = true
		ck.SameSite = http.SameSiteNoneMode
	}
	return ck
}

func (h *Handler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	ck := h.cookie(name, value)
	ck.MaxAge = int(ttl.Seconds())
	http.SetCookie(c.Writer, ck)
}

// setCookieUntil is used for provider tokens, which carry their own expiry.
func (h *Handler) setCookieUntil(c *gin.Context, name, value string, expiry time.Time) {
	ck := h.cookie(name, value)
	if !expiry.IsZero() {
		ck.Expires = expiry.UTC()
	}
	http.SetCookie(c.Writer, ck)
}

func (h *Handler) clearCookie(c *gin.Context, name string) {
	ck := h.cookie(name, "")
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(c.Writer, ck)
}

func (h *Handler) setLoggedIn(c *gin.Context) {
	ck := h.cookie(middleware.CookieLoggedIn, "true")
	ck.HttpOnly = false
	ck.MaxAge = int(h.cfg.LoggedInCookieTTL.Seconds())
	http.SetCookie(c.Writer, ck)
}

func (h *Handler) setSessionCookies(c *gin.Context, s bizAuth.Session) {
	h.setCookie(c, middleware.CookieAccessToken, s.AccessToken, h.cfg.AccessCookieTTL)
	h.setCookie(c, middleware.CookieRefreshToken, s.RefreshToken, h.cfg.RefreshCookieTTL)
	h.setCookie(c, middleware.CookieAccessCSRF, s.AccessCSRF, h.cfg.AccessCookieTTL)
	h.setCookie(c, middleware.CookieRefreshCSRF, s.RefreshCSRF, h.cfg.RefreshCookieTTL)
	h.setLoggedIn(c)
}
