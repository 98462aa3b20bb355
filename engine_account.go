package bizAuth

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth/internal/flows"
)

// CreateAccount registers a native account. A username that names an
// OAuth-linked account is rejected with KindForbidden.
func (e *Engine) CreateAccount(ctx context.Context, username, password string) (*AccountInfo, error) {
	const op = "CreateAccount"
	if !e.ready() {
		return nil, notReady(op)
	}

	ctx, span := e.startSpan(ctx, op, attribute.String("bizauth.username", username))
	res := flows.RunCreateAccount(ctx, username, password, e.accountDeps())
	if res.Failure != flows.AccountFailureNone {
		err := e.accountFailure(op, res, "Username is linked to a Google account")
		if res.Failure == flows.AccountFailureDuplicate {
			e.metricInc(MetricAccountCreationDuplicate)
		}
		e.emitAudit(ctx, auditEventAccountCreateFailed, false, username, MethodNative, err, nil)
		endSpan(span, err)
		return nil, err
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreated, true, username, MethodNative, nil, nil)
	e.logger.Info("account created", zap.String("username", username))
	endSpan(span, nil)
	return &AccountInfo{ID: res.Account.ID, Username: res.Account.Username}, nil
}

// UpdateAccount changes the username and/or password of a native account.
// The current password is always required. Refresh tokens issued under the
// old username are revoked.
func (e *Engine) UpdateAccount(ctx context.Context, req AccountUpdateRequest) (*AccountInfo, error) {
	const op = "UpdateAccount"
	if !e.ready() {
		return nil, notReady(op)
	}

	ctx, span := e.startSpan(ctx, op, attribute.String("bizauth.username", req.Username))
	res := flows.RunUpdateAccount(ctx, flows.AccountUpdate{
		Username:    req.Username,
		Password:    req.Password,
		NewUsername: req.NewUsername,
		NewPassword: req.NewPassword,
	}, e.accountDeps())
	if res.Failure != flows.AccountFailureNone {
		err := e.accountFailure(op, res, "Updates not allowed for users logged in with Google")
		e.emitAudit(ctx, auditEventAccountUpdateFailed, false, req.Username, MethodNative, err, nil)
		endSpan(span, err)
		return nil, err
	}

	e.metricInc(MetricAccountUpdated)
	e.emitAudit(ctx, auditEventAccountUpdated, true, req.Username, MethodNative, nil, func() map[string]string {
		m := map[string]string{}
		if res.Account.Username != req.Username {
			m["new_username"] = res.Account.Username
		}
		if req.NewPassword != "" {
			m["password_changed"] = "true"
		}
		return m
	})
	endSpan(span, nil)
	return &AccountInfo{ID: res.Account.ID, Username: res.Account.Username, IsAdmin: res.Account.IsAdmin}, nil
}

// DeleteAccount removes a native account and its refresh token. caller must
// be the account itself or an admin.
func (e *Engine) DeleteAccount(ctx context.Context, caller Identity, username string) error {
	const op = "DeleteAccount"
	if !e.ready() {
		return notReady(op)
	}

	ctx, span := e.startSpan(ctx, op, attribute.String("bizauth.username", username))
	if err := e.authorizeFor(ctx, op, caller, username); err != nil {
		e.emitAudit(ctx, auditEventAccountDeleteFailed, false, username, caller.Method, err, nil)
		endSpan(span, err)
		return err
	}

	res := flows.RunDeleteAccount(ctx, username, e.accountDeps())
	if res.Failure != flows.AccountFailureNone {
		err := e.accountFailure(op, res, "Deletion not allowed for users logged in with Google")
		e.emitAudit(ctx, auditEventAccountDeleteFailed, false, username, caller.Method, err, nil)
		endSpan(span, err)
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, username, caller.Method, nil, func() map[string]string {
		return map[string]string{"deleted_by": caller.Username}
	})
	endSpan(span, nil)
	return nil
}

// ResetPassword sets a new password without the current one. caller must be
// an admin. Refresh tokens of the account are revoked.
func (e *Engine) ResetPassword(ctx context.Context, caller Identity, username, newPassword string) error {
	const op = "ResetPassword"
	if !e.ready() {
		return notReady(op)
	}

	ctx, span := e.startSpan(ctx, op, attribute.String("bizauth.username", username))
	if err := e.requireAdmin(ctx, op, caller); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetFailed, false, username, caller.Method, err, nil)
		endSpan(span, err)
		return err
	}

	res := flows.RunResetPassword(ctx, username, newPassword, e.accountDeps())
	if res.Failure != flows.AccountFailureNone {
		err := e.accountFailure(op, res, "Updates not allowed for users logged in with Google")
		if res.Failure == flows.AccountFailureInvalidInput && username != "" {
			err.Detail = "New password is required"
		}
		e.emitAudit(ctx, auditEventPasswordResetFailed, false, username, caller.Method, err, nil)
		endSpan(span, err)
		return err
	}

	e.metricInc(MetricPasswordReset)
	e.emitAudit(ctx, auditEventPasswordReset, true, username, caller.Method, nil, func() map[string]string {
		return map[string]string{"reset_by": caller.Username}
	})
	endSpan(span, nil)
	return nil
}

// authorizeFor allows a native caller acting on its own account, or any admin.
func (e *Engine) authorizeFor(ctx context.Context, op string, caller Identity, username string) error {
	if caller.Method == MethodNative && caller.Username == username {
		return nil
	}
	return e.requireAdmin(ctx, op, caller)
}

func (e *Engine) requireAdmin(ctx context.Context, op string, caller Identity) error {
	if !caller.authenticated() {
		return newError(KindInvalidToken, op, "User not authenticated", ErrUnauthenticated)
	}
	isAdmin, err := e.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !isAdmin {
		return newError(KindForbidden, op, "Unauthorized access", ErrPermissionDenied)
	}
	return nil
}

func (e *Engine) accountFailure(op string, res flows.AccountResult, linkedDetail string) *Error {
	switch res.Failure {
	case flows.AccountFailureInvalidInput:
		return newError(KindInvalidRequest, op, "Missing required fields", ErrInvalidRequest)
	case flows.AccountFailureWeakPassword:
		return newError(KindInvalidRequest, op, "Password does not meet the minimum length", ErrInvalidRequest)
	case flows.AccountFailureOAuthLinked:
		e.metricInc(MetricAccountOAuthLinkedRejected)
		return newError(KindForbidden, op, linkedDetail, ErrOAuthLinked)
	case flows.AccountFailureNotFound:
		return newError(KindNotFound, op, "Account not found", ErrAccountNotFound)
	case flows.AccountFailureDuplicate:
		return newError(KindConflict, op, "Username already exists", ErrAccountExists)
	case flows.AccountFailureWrongPassword:
		return newError(KindForbidden, op, "This is not the current password for this account", ErrInvalidCredentials)
	case flows.AccountFailurePasswordReuse:
		return newError(KindInvalidRequest, op, "Please enter a new password", ErrPasswordReuse)
	case flows.AccountFailureStore:
		return e.storeFailure(op, res.Err)
	default:
		e.logger.Error("password hashing failed", zap.String("op", op), zap.Error(res.Err))
		return newError(KindUnknown, op, "", res.Err)
	}
}
