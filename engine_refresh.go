package bizAuth

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth/internal/flows"
)

// Refresh rotates a native refresh token.
//
// The X-CSRF-TOKEN value must equal the csrf claim of the presented refresh
// token, and the token must verify and still be the stored token of its
// owner. The old token is then atomically replaced; of several concurrent
// calls presenting the same token exactly one succeeds and the others get
// KindInvalidToken wrapping ErrRefreshReuse. Nothing is rotated on failure.
func (e *Engine) Refresh(ctx context.Context, req RefreshRequest) (*Session, error) {
	const op = "Refresh"
	if !e.ready() {
		return nil, notReady(op)
	}

	ctx, span := e.startSpan(ctx, op)
	res := flows.RunRefresh(ctx, flows.RefreshInput{
		Token:      req.RefreshToken,
		CSRFHeader: req.CSRFHeader,
	}, e.refreshDeps())

	if res.Failure != flows.RefreshFailureNone {
		err := e.refreshFailure(ctx, op, res)
		endSpan(span, err)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Username, MethodNative, nil, nil)
	endSpan(span, nil)

	session := sessionFrom(res.Username, res.UserID, res.Access, res.Refresh)
	return &session, nil
}

func (e *Engine) refreshFailure(ctx context.Context, op string, res flows.RefreshResult) error {
	var err *Error
	event := auditEventRefreshInvalid

	switch res.Failure {
	case flows.RefreshFailureMissingCSRF:
		e.metricInc(MetricCSRFMismatch)
		err = newError(KindCsrfMismatch, op, "CSRF token missing", ErrCSRFMismatch)
		event = auditEventCSRFMismatch
	case flows.RefreshFailureCSRFMismatch:
		e.metricInc(MetricCSRFMismatch)
		err = newError(KindCsrfMismatch, op, "Invalid CSRF token", ErrCSRFMismatch)
		event = auditEventCSRFMismatch
	case flows.RefreshFailureMissingToken:
		err = newError(KindInvalidToken, op, "Refresh token missing", ErrRefreshInvalid)
	case flows.RefreshFailureExpired:
		err = newError(KindInvalidToken, op, "Token has expired", ErrRefreshInvalid)
	case flows.RefreshFailureDecode:
		err = newError(KindInvalidToken, op, "Invalid refresh token", ErrRefreshInvalid)
	case flows.RefreshFailureNotFound:
		err = newError(KindInvalidToken, op, "Invalid refresh token", ErrRefreshInvalid)
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		err = newError(KindInvalidToken, op, "Invalid refresh token", ErrRefreshReuse)
		event = auditEventRefreshReuseDetected
		e.logger.Warn("refresh token reuse detected", zap.String("username", res.Username), zap.String("client_ip", clientIPFromContext(ctx)))
	case flows.RefreshFailureStore:
		err = e.storeFailure(op, res.Err)
	default:
		e.logger.Error("token issuance failed", zap.String("op", op), zap.Error(res.Err))
		err = newError(KindUnknown, op, "", res.Err)
	}

	if res.Err != nil && (res.Failure == flows.RefreshFailureDecode || res.Failure == flows.RefreshFailureExpired) {
		e.logger.Info("refresh token rejected", zap.String("reason", res.Err.Error()))
	}
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, event, false, res.Username, MethodNative, err, nil)
	return err
}
