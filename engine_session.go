package bizAuth

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth/internal/flows"
)

// ResolveIdentity returns the caller behind creds.
//
// The native access token is verified first. When it is absent or does not
// verify, the OAuth access-token cookie is looked up verbatim in the OAuth
// account store. That fallback trusts the stored token without asking the
// provider, so OAuth identities are only as fresh as the last login or
// refresh. A verified native token whose account was deleted is rejected.
func (e *Engine) ResolveIdentity(ctx context.Context, creds Credentials) (Identity, error) {
	const op = "ResolveIdentity"
	if !e.ready() {
		return Identity{}, notReady(op)
	}

	ctx, span := e.startSpan(ctx, op)
	res := flows.RunResolveIdentity(ctx, creds.AccessToken, creds.OAuthAccessToken, e.identityDeps())
	if res.NativeErr != nil {
		e.logger.Debug("native token verification failed", zap.Error(res.NativeErr))
	}

	switch res.Failure {
	case flows.IdentityFailureNone:
	case flows.IdentityFailureStore:
		err := e.storeFailure(op, res.Err)
		endSpan(span, err)
		return Identity{}, err
	default:
		e.metricInc(MetricIdentityRejected)
		err := newError(KindInvalidToken, op, "User not authenticated", ErrUnauthenticated)
		endSpan(span, err)
		return Identity{}, err
	}

	id := Identity{
		Method:   AuthMethod(res.Identity.Method),
		Username: res.Identity.Username,
		UserID:   res.Identity.UserID,
		GoogleID: res.Identity.GoogleID,
		CSRF:     res.Identity.CSRF,
	}
	if id.Method == MethodOAuth {
		e.metricInc(MetricIdentityOAuth)
	} else {
		e.metricInc(MetricIdentityNative)
	}
	span.SetAttributes(attribute.String("bizauth.method", string(id.Method)))
	endSpan(span, nil)
	return id, nil
}

// IsAdmin reports the admin flag of the account id was resolved from: the
// native account for native identities, the OAuth account with id.GoogleID
// for OAuth identities. Answers are cached per identity for
// Config.Cache.AdminTTL and are not invalidated when the flag changes, so a
// promotion or demotion takes effect within one TTL. Store errors are not
// cached.
func (e *Engine) IsAdmin(ctx context.Context, id Identity) (bool, error) {
	const op = "IsAdmin"
	if !e.ready() {
		return false, notReady(op)
	}
	if !id.authenticated() {
		return false, newError(KindInvalidToken, op, "User not authenticated", ErrUnauthenticated)
	}

	res := flows.RunIsAdmin(ctx, id.cacheKey(), flows.ResolvedIdentity{
		Method:   string(id.Method),
		Username: id.Username,
		UserID:   id.UserID,
		GoogleID: id.GoogleID,
	}, e.adminDeps())
	if res.Err != nil {
		return false, e.storeFailure(op, res.Err)
	}
	if res.Cached {
		e.metricInc(MetricAdminCacheHit)
	} else {
		e.metricInc(MetricAdminCacheMiss)
	}
	return res.IsAdmin, nil
}

// Logout records the end of a browser session. Clearing cookies is the
// transport's job; stored refresh tokens stay valid until rotated or expired.
func (e *Engine) Logout(ctx context.Context, id Identity) {
	if e == nil {
		return
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, id.Username, id.Method, nil, nil)
}
