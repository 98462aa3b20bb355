package bizAuth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials reports a username/password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited reports a username lockout.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrIPRateLimited reports a per-IP lockout or an exceeded edge window.
	ErrIPRateLimited = errors.New("ip rate limited")
	// ErrRefreshInvalid reports a missing, expired, unknown or malformed refresh token.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse reports a refresh token that lost the rotation race or was already rotated.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrCSRFMismatch reports a missing or wrong CSRF value.
	ErrCSRFMismatch = errors.New("csrf token mismatch")
	// ErrOAuthLinked reports a native mutation attempted on an OAuth-linked username.
	ErrOAuthLinked = errors.New("account is linked to an oauth provider")
	// ErrAccountNotFound reports an absent native or OAuth account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists reports a duplicate username.
	ErrAccountExists = errors.New("account already exists")
	// ErrPasswordReuse reports a new password equal to the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrInvalidRequest reports missing or malformed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthenticated reports that no identity could be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPermissionDenied reports an identity not allowed to perform the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUpstream reports an OAuth provider failure.
	ErrUpstream = errors.New("oauth provider failure")
	// ErrStoreUnavailable reports a credential store failure or timeout.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrRedisUnavailable reports a rate limiter or state store failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrOAuthDisabled reports an OAuth operation on an engine built without a provider.
	ErrOAuthDisabled = errors.New("oauth provider not configured")
	// ErrEngineNotReady reports a nil or partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind classifies engine errors for transport mapping.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimited
	KindAuthenticationFailed
	KindInvalidToken
	KindCsrfMismatch
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidRequest
	KindUpstreamFailure
	KindUnavailable
)

var kindNames = [...]string{
	KindUnknown:              "unknown",
	KindRateLimited:          "rate_limited",
	KindAuthenticationFailed: "authentication_failed",
	KindInvalidToken:         "invalid_token",
	KindCsrfMismatch:         "csrf_mismatch",
	KindForbidden:            "forbidden",
	KindNotFound:             "not_found",
	KindConflict:             "conflict",
	KindInvalidRequest:       "invalid_request",
	KindUpstreamFailure:      "upstream_failure",
	KindUnavailable:          "unavailable",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// RateLimitScope tells whether a RateLimited error applies to an identity or an IP.
type RateLimitScope string

const (
	ScopeIdentity RateLimitScope = "identity"
	ScopeIP       RateLimitScope = "ip"
)

// Error is the tagged error returned by every Engine operation.
//
// Detail is safe to show to clients. Err carries the matchable sentinel and,
// for infrastructure kinds, the underlying cause; it is never rendered to clients.
type Error struct {
	Kind   ErrorKind
	Op     string
	Detail string

	// RemainingAttempts is set for KindAuthenticationFailed and for the
	// KindRateLimited error returned by the failure that triggered a lockout.
	RemainingAttempts int
	// WaitMinutes and Scope are set for KindRateLimited.
	WaitMinutes int
	Scope       RateLimitScope
	// Retryable marks KindUpstreamFailure errors that a client may retry.
	Retryable bool

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func newError(kind ErrorKind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// unavailable wraps an infrastructure failure under sentinel.
func unavailable(op string, sentinel, cause error) *Error {
	if cause == nil {
		cause = sentinel
	}
	if errors.Is(cause, sentinel) {
		return &Error{Kind: KindUnavailable, Op: op, Err: cause}
	}
	return &Error{Kind: KindUnavailable, Op: op, Err: fmt.Errorf("%w: %v", sentinel, cause)}
}
