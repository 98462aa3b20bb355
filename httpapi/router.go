package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/metrics/export/prometheus"
	"github.com/MrEthical07/bizAuth/middleware"
)

// Handler serves the bizAuth HTTP surface.
type Handler struct {
	cfg    Config
	engine *bizAuth.Engine
	logger *zap.Logger
}

// NewHandler validates cfg. A nil logger logs nothing.
func NewHandler(cfg Config, engine *bizAuth.Engine, logger *zap.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("httpapi: %w", bizAuth.ErrEngineNotReady)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, engine: engine, logger: logger}, nil
}

// NewRouter wires the routes and middleware of h onto a new gin engine.
// Forwarding headers are honored only from h's trusted proxies; with none
// configured the client IP is the connection's remote address.
func NewRouter(h *Handler) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(h.cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("httpapi: trusted proxies: %w", err)
	}
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestLogger(h.logger))
	if len(h.cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(h.cfg.AllowedOrigins))
	}

	authed := middleware.RequireIdentity(h.engine, h.logger)

	r.POST("/account", h.CreateAccount)
	r.PUT("/account", h.UpdateAccount)
	r.DELETE("/account", authed, h.DeleteAccount)
	r.PUT("/reset_password", authed, h.ResetPassword)

	r.GET("/protected", authed, h.Protected)
	r.GET("/admin_status_check", authed, h.AdminStatus)

	r.POST("/token_login_set", middleware.EdgeLimit(h.engine, h.logger), h.Login)
	r.POST("/token_refresh", h.Refresh)

	r.GET("/login", h.BeginOAuth)
	r.GET("/login/callback", h.OAuthCallback)
	r.POST("/google_token_refresh", h.RefreshOAuth)
	r.GET("/google_user_data", h.GoogleUserData)
	r.POST("/logout", h.Logout)

	r.GET("/healthz", h.Health)
	if h.cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(prometheus.NewExporter(h.engine).Handler()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})
	return r, nil
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.engine.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindJSON decodes the body into dst and aborts with 400 on malformed JSON.
func (h *Handler) bindJSON(c *gin.Context, op string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.AbortWithError(c, h.logger, &bizAuth.Error{
			Kind:   bizAuth.KindInvalidRequest,
			Op:     op,
			Detail: "Invalid request body",
			Err:    fmt.Errorf("%w: %v", bizAuth.ErrInvalidRequest, err),
		})
		return false
	}
	return true
}
