package bizAuth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/bizAuth/oauth"
	"github.com/MrEthical07/bizAuth/store"
)

// BeginOAuth issues an authorization state and returns the provider URL to
// redirect to. The state is remembered for Config.OAuth.StateTTL and must be
// echoed back by the callback. IP lockouts apply.
func (e *Engine) BeginOAuth(ctx context.Context) (*OAuthStart, error) {
	const op = "BeginOAuth"
	if !e.ready() {
		return nil, notReady(op)
	}
	if e.oauth == nil {
		return nil, newError(KindUnavailable, op, "", ErrOAuthDisabled)
	}

	ctx, span := e.startSpan(ctx, op)
	ip := clientIPFromContext(ctx)
	if err := e.checkIPLock(ctx, op, ip); err != nil {
		endSpan(span, err)
		return nil, err
	}

	state, err := oauth.NewState()
	if err != nil {
		wrapped := newError(KindUnknown, op, "", err)
		endSpan(span, wrapped)
		return nil, wrapped
	}
	if err := e.states.Save(ctx, state, oauth.State{ClientIP: ip, CreatedAt: e.now().UTC()}, e.config.OAuth.StateTTL); err != nil {
		wrapped := e.redisFailure(op, err)
		endSpan(span, wrapped)
		return nil, wrapped
	}

	endSpan(span, nil)
	return &OAuthStart{URL: e.oauth.AuthCodeURL(state), State: state}, nil
}

// CompleteOAuth finishes the authorization-code flow. The state query
// parameter must equal the state cookie and must still be outstanding; it is
// consumed either way. The code is exchanged, the profile fetched and the
// OAuth account created or its tokens updated. A refresh token is only
// overwritten when the provider returned one.
func (e *Engine) CompleteOAuth(ctx context.Context, cb OAuthCallback) (*OAuthSession, error) {
	const op = "CompleteOAuth"
	if !e.ready() {
		return nil, notReady(op)
	}
	if e.oauth == nil {
		return nil, newError(KindUnavailable, op, "", ErrOAuthDisabled)
	}

	ctx, span := e.startSpan(ctx, op)
	sess, err := e.completeOAuth(ctx, op, cb)
	if err != nil {
		e.metricInc(MetricOAuthLoginFailure)
		e.emitAudit(ctx, auditEventOAuthLoginFailure, false, "", MethodOAuth, err, nil)
		endSpan(span, err)
		return nil, err
	}

	e.metricInc(MetricOAuthLoginSuccess)
	e.emitAudit(ctx, auditEventOAuthLoginSuccess, true, sess.AccountName, MethodOAuth, nil, func() map[string]string {
		if sess.Created {
			return map[string]string{"created": "true"}
		}
		return nil
	})
	endSpan(span, nil)
	return sess, nil
}

func (e *Engine) completeOAuth(ctx context.Context, op string, cb OAuthCallback) (*OAuthSession, error) {
	if cb.StateParam == "" || cb.StateCookie == "" ||
		subtle.ConstantTimeCompare([]byte(cb.StateParam), []byte(cb.StateCookie)) != 1 {
		e.metricInc(MetricCSRFMismatch)
		return nil, newError(KindCsrfMismatch, op, "State mismatch", ErrCSRFMismatch)
	}
	saved, err := e.states.Consume(ctx, cb.StateParam)
	if err != nil {
		return nil, e.redisFailure(op, err)
	}
	if saved == nil {
		e.metricInc(MetricCSRFMismatch)
		return nil, newError(KindCsrfMismatch, op, "State expired or already used", ErrCSRFMismatch)
	}
	if cb.Code == "" {
		return nil, newError(KindInvalidRequest, op, "Authorization code missing", ErrInvalidRequest)
	}

	tok, err := e.oauth.Exchange(ctx, cb.Code)
	if err != nil {
		return nil, e.upstreamFailure(op, err)
	}
	profile, err := e.oauth.FetchProfile(ctx, tok.AccessToken)
	if err != nil {
		return nil, e.upstreamFailure(op, err)
	}
	if profile.ID == "" {
		return nil, e.upstreamFailure(op, errors.New("userinfo response has no subject id"))
	}

	created, err := e.upsertOAuthAccount(ctx, profile, tok)
	if errors.Is(err, ErrAccountExists) {
		e.metricInc(MetricAccountOAuthLinkedRejected)
		return nil, newError(KindConflict, op, "Account name is already used by a password account", err)
	}
	if err != nil {
		return nil, e.storeFailure(op, err)
	}
	return &OAuthSession{
		GoogleID:     profile.ID,
		AccountName:  profile.Name,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      oauth.IDToken(tok),
		Expiry:       tok.Expiry,
		Created:      created,
	}, nil
}

func (e *Engine) upsertOAuthAccount(ctx context.Context, profile oauth.Profile, tok *oauth2.Token) (bool, error) {
	tokens := store.OAuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}

	_, err := e.store.FindOAuthAccountByGoogleID(ctx, profile.ID)
	switch {
	case err == nil:
		return false, e.store.UpdateOAuthTokens(ctx, profile.ID, tokens)
	case !errors.Is(err, store.ErrNotFound):
		return false, err
	}

	// Accounts are native or OAuth, never both: a display name owned by a
	// native account cannot become an OAuth account name.
	switch _, err := e.store.FindAccount(ctx, profile.Name); {
	case err == nil:
		return false, fmt.Errorf("%w: %q is a native username", ErrAccountExists, profile.Name)
	case !errors.Is(err, store.ErrNotFound):
		return false, err
	}

	err = e.store.CreateOAuthAccount(ctx, &store.OAuthAccount{
		GoogleID:     profile.ID,
		AccountName:  profile.Name,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a race with a concurrent first login for the same subject.
		return false, e.store.UpdateOAuthTokens(ctx, profile.ID, tokens)
	}
	return err == nil, err
}

// RefreshOAuth mints a new provider access token from refreshToken and
// stores it on the owning OAuth account. A provider rejection is a
// non-retryable KindUpstreamFailure and the caller should discard the
// refresh token; transport failures are retryable.
func (e *Engine) RefreshOAuth(ctx context.Context, refreshToken string) (*OAuthRefreshResult, error) {
	const op = "RefreshOAuth"
	if !e.ready() {
		return nil, notReady(op)
	}
	if e.oauth == nil {
		return nil, newError(KindUnavailable, op, "", ErrOAuthDisabled)
	}

	ctx, span := e.startSpan(ctx, op)
	res, account, err := e.refreshOAuth(ctx, op, refreshToken)
	if err != nil {
		e.metricInc(MetricOAuthRefreshFailure)
		e.emitAudit(ctx, auditEventOAuthRefreshFailure, false, account, MethodOAuth, err, nil)
		endSpan(span, err)
		return nil, err
	}

	e.metricInc(MetricOAuthRefreshSuccess)
	e.emitAudit(ctx, auditEventOAuthRefreshSuccess, true, account, MethodOAuth, nil, nil)
	endSpan(span, nil)
	return res, nil
}

func (e *Engine) refreshOAuth(ctx context.Context, op, refreshToken string) (*OAuthRefreshResult, string, error) {
	if refreshToken == "" {
		return nil, "", newError(KindInvalidToken, op, "Refresh token not found", ErrRefreshInvalid)
	}

	account, err := e.store.FindOAuthAccountByRefreshToken(ctx, refreshToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", newError(KindInvalidToken, op, "Refresh token is invalid, please reauthenticate", ErrRefreshInvalid)
	}
	if err != nil {
		return nil, "", e.storeFailure(op, err)
	}

	tok, err := e.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, account.AccountName, e.upstreamFailure(op, err)
	}
	if err := e.store.UpdateOAuthTokens(ctx, account.GoogleID, store.OAuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}); err != nil {
		return nil, account.AccountName, e.storeFailure(op, err)
	}
	return &OAuthRefreshResult{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, account.AccountName, nil
}

// OAuthUserData asks the provider who accessToken belongs to and returns the
// stored OAuth account of that subject.
func (e *Engine) OAuthUserData(ctx context.Context, accessToken string) (*OAuthUserData, error) {
	const op = "OAuthUserData"
	if !e.ready() {
		return nil, notReady(op)
	}
	if e.oauth == nil {
		return nil, newError(KindUnavailable, op, "", ErrOAuthDisabled)
	}
	if accessToken == "" {
		return nil, newError(KindInvalidToken, op, "Access token is missing", ErrUnauthenticated)
	}

	ctx, span := e.startSpan(ctx, op)
	profile, err := e.oauth.FetchProfile(ctx, accessToken)
	if err != nil {
		wrapped := e.upstreamFailure(op, err)
		if !wrapped.Retryable {
			wrapped.Detail = "Invalid or expired Google access token"
		}
		endSpan(span, wrapped)
		return nil, wrapped
	}

	account, err := e.store.FindOAuthAccountByGoogleID(ctx, profile.ID)
	if errors.Is(err, store.ErrNotFound) {
		wrapped := newError(KindNotFound, op, "User not found", ErrAccountNotFound)
		endSpan(span, wrapped)
		return nil, wrapped
	}
	if err != nil {
		wrapped := e.storeFailure(op, err)
		endSpan(span, wrapped)
		return nil, wrapped
	}

	endSpan(span, nil)
	return &OAuthUserData{GoogleID: account.GoogleID, AccountName: account.AccountName}, nil
}

func (e *Engine) upstreamFailure(op string, err error) *Error {
	out := &Error{Kind: KindUpstreamFailure, Op: op, Err: fmt.Errorf("%w: %w", ErrUpstream, err)}
	if oauth.IsTerminal(err) {
		out.Detail = "Invalid credentials"
		e.logger.Info("oauth provider rejected request", zap.String("op", op), zap.Error(err))
		return out
	}
	out.Retryable = true
	out.Detail = "OAuth provider unavailable"
	e.logger.Error("oauth provider call failed", zap.String("op", op), zap.Error(err))
	return out
}
