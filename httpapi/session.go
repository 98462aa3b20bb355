package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/middleware"
)

type csrfTokens struct {
	AccessCSRF  string `json:"access_csrf"`
	RefreshCSRF string `json:"refresh_csrf"`
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if !h.bindJSON(c, "Login", &req) {
		return
	}
	res, err := h.engine.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}

	h.setSessionCookies(c, res.Session)
	c.JSON(http.StatusOK, gin.H{
		"message":     "Login successful",
		"user":        userView{ID: res.UserID, Username: res.Username},
		"csrf_tokens": csrfTokens{AccessCSRF: res.AccessCSRF, RefreshCSRF: res.RefreshCSRF},
	})
}

// Refresh rotates the refresh cookie. The X-CSRF-TOKEN header must carry the
// refresh CSRF value handed out with the current pair.
func (h *Handler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(middleware.CookieRefreshToken)
	sess, err := h.engine.Refresh(c.Request.Context(), bizAuth.RefreshRequest{
		RefreshToken: token,
		CSRFHeader:   c.GetHeader(middleware.HeaderCSRF),
	})
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}

	h.setSessionCookies(c, *sess)
	c.JSON(http.StatusOK, gin.H{
		"message":     "Token refreshed successfully",
		"csrf_tokens": csrfTokens{AccessCSRF: sess.AccessCSRF, RefreshCSRF: sess.RefreshCSRF},
	})
}

func (h *Handler) Protected(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	body := gin.H{
		"logged_in_as": id.Username,
		"method":       string(id.Method),
	}
	if id.UserID != "" {
		body["id"] = id.UserID
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) AdminStatus(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	isAdmin, err := h.engine.IsAdmin(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isAdmin": isAdmin})
}

// Logout clears every session cookie whether or not an identity resolves.
func (h *Handler) Logout(c *gin.Context) {
	id, err := h.engine.ResolveIdentity(c.Request.Context(), middleware.CredentialsFrom(c))
	if err == nil {
		h.engine.Logout(c.Request.Context(), id)
	}
	for _, name := range sessionCookies {
		h.clearCookie(c, name)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
