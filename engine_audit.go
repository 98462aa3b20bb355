package bizAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/bizAuth/internal/audit"
)

const (
	auditEventLoginSuccess         = audit.EventLoginSuccess
	auditEventLoginFailure         = audit.EventLoginFailure
	auditEventLoginRateLimited     = audit.EventLoginRateLimited
	auditEventLockoutTriggered     = audit.EventLockoutTriggered
	auditEventIPLockout            = audit.EventIPLockout
	auditEventRefreshSuccess       = audit.EventRefreshSuccess
	auditEventRefreshInvalid       = audit.EventRefreshInvalid
	auditEventRefreshReuseDetected = audit.EventRefreshReuseDetected
	auditEventCSRFMismatch         = audit.EventCSRFMismatch
	auditEventAccountCreated       = audit.EventAccountCreated
	auditEventAccountCreateFailed  = audit.EventAccountCreateFailed
	auditEventAccountUpdated       = audit.EventAccountUpdated
	auditEventAccountUpdateFailed  = audit.EventAccountUpdateFailed
	auditEventAccountDeleted       = audit.EventAccountDeleted
	auditEventAccountDeleteFailed  = audit.EventAccountDeleteFailed
	auditEventPasswordReset        = audit.EventPasswordReset
	auditEventPasswordResetFailed  = audit.EventPasswordResetFailed
	auditEventPasswordUpgraded     = audit.EventPasswordUpgraded
	auditEventOAuthLoginSuccess    = audit.EventOAuthLoginSuccess
	auditEventOAuthLoginFailure    = audit.EventOAuthLoginFailure
	auditEventOAuthRefreshSuccess  = audit.EventOAuthRefreshSuccess
	auditEventOAuthRefreshFailure  = audit.EventOAuthRefreshFailure
	auditEventLogout               = audit.EventLogout
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrCSRFMismatch       AuditErrorCode = "csrf_mismatch"
	auditErrOAuthLinked        AuditErrorCode = "oauth_linked"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrUpstream           AuditErrorCode = "upstream_failure"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType audit.EventType,
	success bool,
	username string,
	method AuthMethod,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Username:  username,
		Method:    string(method),
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrIPRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshInvalid), errors.Is(err, ErrUnauthenticated):
		return auditErrInvalidToken
	case errors.Is(err, ErrCSRFMismatch):
		return auditErrCSRFMismatch
	case errors.Is(err, ErrOAuthLinked):
		return auditErrOAuthLinked
	case errors.Is(err, ErrAccountNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrUpstream):
		return auditErrUpstream
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrRedisUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

