package bizAuth

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth/internal/flows"
)

const (
	msgTooManyAttempts   = "Too many login attempts. Please wait."
	msgIPRateLimited     = "Rate limit exceeded. Please try again in 1 hour."
	msgIncorrectLogin    = "Incorrect username or password"
	msgMissingCredential = "Username and password are required"
)

// Login authenticates a native account and returns its token pair.
//
// Lockouts are checked first: an IP lockout or a live username lockout
// returns KindRateLimited without verifying the password. A wrong password
// increments the (ip, username) counter; the failure that reaches the
// maximum sets the username lockout and returns KindRateLimited, earlier
// ones return KindAuthenticationFailed with RemainingAttempts. Success never
// resets the counter.
//
// When the account already has an unexpired refresh token it is returned
// unchanged with RefreshReused set; otherwise a new one replaces it.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	const op = "Login"
	if !e.ready() {
		return nil, notReady(op)
	}

	ctx, span := e.startSpan(ctx, op, attribute.String("bizauth.username", username))
	start := time.Now()
	res := flows.RunLogin(ctx, username, password, e.loginDeps())
	e.metrics.Observe(MetricLoginLatency, time.Since(start))

	if res.Failure != flows.LoginFailureNone {
		err := e.loginFailure(ctx, op, res)
		endSpan(span, err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	if res.RefreshReused {
		e.metricInc(MetricRefreshReused)
	}
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.Username, MethodNative, nil, func() map[string]string {
		return map[string]string{"refresh_reused": strconv.FormatBool(res.RefreshReused)}
	})
	e.logger.Info("login succeeded", zap.String("username", res.Username), zap.String("client_ip", clientIPFromContext(ctx)))
	endSpan(span, nil)

	return &LoginResult{
		Session:       sessionFrom(res.Username, res.UserID, res.Access, res.Refresh),
		RefreshReused: res.RefreshReused,
	}, nil
}

func (e *Engine) loginFailure(ctx context.Context, op string, res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureInvalidInput:
		e.metricInc(MetricLoginFailure)
		err := newError(KindInvalidRequest, op, msgMissingCredential, ErrInvalidRequest)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Username, MethodNative, err, reason("missing_fields"))
		return err

	case flows.LoginFailureIPLocked:
		e.metricInc(MetricLoginRateLimited)
		err := &Error{
			Kind:        KindRateLimited,
			Op:          op,
			Detail:      msgIPRateLimited,
			WaitMinutes: res.WaitMinutes,
			Scope:       ScopeIP,
			Err:         ErrIPRateLimited,
		}
		e.emitAudit(ctx, auditEventLoginRateLimited, false, res.Username, MethodNative, err, reason("ip_locked"))
		return err

	case flows.LoginFailureLockedOut:
		e.metricInc(MetricLoginRateLimited)
		err := &Error{
			Kind:        KindRateLimited,
			Op:          op,
			Detail:      msgTooManyAttempts,
			WaitMinutes: res.WaitMinutes,
			Scope:       ScopeIdentity,
			Err:         ErrLoginRateLimited,
		}
		e.emitAudit(ctx, auditEventLoginRateLimited, false, res.Username, MethodNative, err, reason("username_locked"))
		return err

	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		err := &Error{
			Kind:              KindAuthenticationFailed,
			Op:                op,
			Detail:            msgIncorrectLogin,
			RemainingAttempts: res.RemainingAttempts,
			Err:               ErrInvalidCredentials,
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Username, MethodNative, err, func() map[string]string {
			return map[string]string{"remaining_attempts": strconv.Itoa(res.RemainingAttempts)}
		})
		return err

	case flows.LoginFailureLockoutTriggered:
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricLoginLockout)
		err := &Error{
			Kind:        KindRateLimited,
			Op:          op,
			Detail:      msgTooManyAttempts,
			WaitMinutes: res.WaitMinutes,
			Scope:       ScopeIdentity,
			Err:         ErrLoginRateLimited,
		}
		e.emitAudit(ctx, auditEventLockoutTriggered, false, res.Username, MethodNative, err, func() map[string]string {
			return map[string]string{"wait_minutes": strconv.Itoa(res.WaitMinutes)}
		})
		e.logger.Warn("username locked out", zap.String("username", res.Username), zap.String("client_ip", clientIPFromContext(ctx)))
		return err

	case flows.LoginFailureLimiter:
		err := e.redisFailure(op, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Username, MethodNative, err, reason("limiter_unavailable"))
		return err

	case flows.LoginFailureStore:
		err := e.storeFailure(op, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Username, MethodNative, err, reason("store_unavailable"))
		return err

	default:
		e.metricInc(MetricLoginFailure)
		e.logger.Error("token issuance failed", zap.String("op", op), zap.Error(res.Err))
		err := newError(KindUnknown, op, "", res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Username, MethodNative, err, reason("issue_failed"))
		return err
	}
}

func sessionFrom(username, userID string, access, refresh flows.IssuedToken) Session {
	return Session{
		UserID:           userID,
		Username:         username,
		AccessToken:      access.Value,
		AccessCSRF:       access.CSRF,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Value,
		RefreshCSRF:      refresh.CSRF,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
