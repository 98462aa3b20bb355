package middleware

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth"
)

const msgInternal = "Internal server error"

// Status maps an engine error to its HTTP status. A non-retryable upstream
// failure means the provider rejected the credential, so it is a 401.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	e, ok := bizAuth.AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case bizAuth.KindRateLimited:
		return http.StatusTooManyRequests
	case bizAuth.KindAuthenticationFailed, bizAuth.KindInvalidToken:
		return http.StatusUnauthorized
	case bizAuth.KindCsrfMismatch, bizAuth.KindForbidden:
		return http.StatusForbidden
	case bizAuth.KindNotFound:
		return http.StatusNotFound
	case bizAuth.KindConflict:
		return http.StatusConflict
	case bizAuth.KindInvalidRequest:
		return http.StatusBadRequest
	case bizAuth.KindUpstreamFailure:
		if e.Retryable {
			return http.StatusInternalServerError
		}
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes the JSON error body for err and aborts the chain.
// Server-side failures get a generic message; their detail goes to the log
// and to Sentry.
func AbortWithError(c *gin.Context, logger *zap.Logger, err error) {
	status := Status(err)
	body := gin.H{}

	var e *bizAuth.Error
	if errors.As(err, &e) {
		body["code"] = e.Kind.String()
		body["message"] = e.Detail
		switch e.Kind {
		case bizAuth.KindAuthenticationFailed:
			if e.RemainingAttempts > 0 {
				body["remaining_attempts"] = e.RemainingAttempts
			}
		case bizAuth.KindRateLimited:
			body["wait_minutes"] = e.WaitMinutes
		}
	}

	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = zap.L()
		}
		logger.Error("request failed",
			zap.String("request_id", RequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		captureError(c, err)
		if e == nil || e.Kind != bizAuth.KindUpstreamFailure || e.Detail == "" {
			body["message"] = msgInternal
		}
	}
	if msg, _ := body["message"].(string); msg == "" {
		body["message"] = http.StatusText(status)
	}

	c.AbortWithStatusJSON(status, body)
}

func captureError(c *gin.Context, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", RequestID(c))
		scope.SetTag("path", c.Request.URL.Path)
		scope.SetTag("error_kind", bizAuth.KindOf(err).String())
		sentry.CaptureException(err)
	})
}
