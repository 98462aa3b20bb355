package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth"
)

const (
	identityKey  = "bizauth.identity"
	requestIDKey = "request_id"
)

// IdentityResolver is the session façade surface the guards need.
// *bizAuth.Engine implements it.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, creds bizAuth.Credentials) (bizAuth.Identity, error)
	IsAdmin(ctx context.Context, id bizAuth.Identity) (bool, error)
}

// IdentityFrom returns the identity stored by RequireIdentity.
func IdentityFrom(c *gin.Context) (bizAuth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return bizAuth.Identity{}, false
	}
	id, ok := v.(bizAuth.Identity)
	return id, ok
}

// CredentialsFrom collects the native access token (cookie first, then a
// Bearer header) and the OAuth access-token cookie.
func CredentialsFrom(c *gin.Context) bizAuth.Credentials {
	var creds bizAuth.Credentials
	if v, err := c.Cookie(CookieAccessToken); err == nil && v != "" {
		creds.AccessToken = v
	} else if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
		creds.AccessToken = token
	}
	if v, err := c.Cookie(CookieOAuthAccess); err == nil {
		creds.OAuthAccessToken = v
	}
	return creds
}

// RequireIdentity resolves the caller and aborts with 401 when none resolves.
func RequireIdentity(resolver IdentityResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver == nil {
			AbortWithError(c, logger, bizAuth.ErrEngineNotReady)
			return
		}
		id, err := resolver.ResolveIdentity(c.Request.Context(), CredentialsFrom(c))
		if err != nil {
			AbortWithError(c, logger, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdmin must run after RequireIdentity. Non-admins get 403.
func RequireAdmin(resolver IdentityResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			AbortWithError(c, logger, &bizAuth.Error{
				Kind:   bizAuth.KindInvalidToken,
				Op:     "RequireAdmin",
				Detail: "User not authenticated",
				Err:    bizAuth.ErrUnauthenticated,
			})
			return
		}
		isAdmin, err := resolver.IsAdmin(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, logger, err)
			return
		}
		if !isAdmin {
			AbortWithError(c, logger, &bizAuth.Error{
				Kind:   bizAuth.KindForbidden,
				Op:     "RequireAdmin",
				Detail: "Unauthorized access",
				Err:    bizAuth.ErrPermissionDenied,
			})
			return
		}
		c.Next()
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
