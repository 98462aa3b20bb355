package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/middleware"
)

const msgReauthenticate = "Refresh token is invalid, please reauthenticate"

// BeginOAuth redirects to the provider and remembers the state in a cookie.
func (h *Handler) BeginOAuth(c *gin.Context) {
	start, err := h.engine.BeginOAuth(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	h.setCookie(c, middleware.CookieOAuthState, start.State, h.cfg.StateCookieTTL)
	c.Redirect(http.StatusFound, start.URL)
}

func (h *Handler) OAuthCallback(c *gin.Context) {
	stateCookie, _ := c.Cookie(middleware.CookieOAuthState)
	sess, err := h.engine.CompleteOAuth(c.Request.Context(), bizAuth.OAuthCallback{
		StateCookie: stateCookie,
		StateParam:  c.Query("state"),
		Code:        c.Query("code"),
	})
	// The state is single use, success or not.
	h.clearCookie(c, middleware.CookieOAuthState)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}

	h.setCookieUntil(c, middleware.CookieOAuthAccess, sess.AccessToken, sess.Expiry)
	if sess.RefreshToken != "" {
		h.setCookie(c, middleware.CookieOAuthRefresh, sess.RefreshToken, h.cfg.OAuthRefreshCookieTTL)
	}
	if sess.IDToken != "" {
		h.setCookieUntil(c, middleware.CookieOAuthIDToken, sess.IDToken, sess.Expiry)
	}
	h.setLoggedIn(c)
	c.Redirect(http.StatusFound, h.cfg.PostLoginRedirect)
}

// RefreshOAuth mints a provider access token from the refresh cookie. When the
// provider or the store no longer accepts the refresh token the cookie is
// cleared and the browser must log in again.
func (h *Handler) RefreshOAuth(c *gin.Context) {
	token, _ := c.Cookie(middleware.CookieOAuthRefresh)
	res, err := h.engine.RefreshOAuth(c.Request.Context(), token)
	if err != nil {
		if token != "" && middleware.Status(err) == http.StatusUnauthorized {
			h.logger.Info("discarding rejected oauth refresh token",
				zap.String("request_id", middleware.RequestID(c)), zap.Error(err))
			h.clearCookie(c, middleware.CookieOAuthRefresh)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": msgReauthenticate,
				"code":    bizAuth.KindOf(err).String(),
			})
			return
		}
		middleware.AbortWithError(c, h.logger, err)
		return
	}

	h.setCookieUntil(c, middleware.CookieOAuthAccess, res.AccessToken, res.Expiry)
	c.JSON(http.StatusOK, gin.H{"message": "Token refreshed successfully"})
}

func (h *Handler) GoogleUserData(c *gin.Context) {
	token, _ := c.Cookie(middleware.CookieOAuthAccess)
	data, err := h.engine.OAuthUserData(c.Request.Context(), token)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"google_id":    data.GoogleID,
		"account_name": data.AccountName,
	})
}
