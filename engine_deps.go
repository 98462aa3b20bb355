package bizAuth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth/internal/flows"
	"github.com/MrEthical07/bizAuth/jwt"
	"github.com/MrEthical07/bizAuth/password"
	"github.com/MrEthical07/bizAuth/store"
)

func toIssued(t jwt.Token) flows.IssuedToken {
	return flows.IssuedToken{Value: t.Value, CSRF: t.CSRF, ExpiresAt: t.ExpiresAt}
}

func toClaims(c *jwt.Claims) flows.TokenClaims {
	return flows.TokenClaims{Username: c.Username(), UserID: c.UserID, CSRF: c.CSRF}
}

func (e *Engine) issueAccess(username, userID string) (flows.IssuedToken, error) {
	t, err := e.jwt.CreateAccess(username, userID)
	if err != nil {
		return flows.IssuedToken{}, err
	}
	return toIssued(t), nil
}

func (e *Engine) issueRefresh(username, userID string) (flows.IssuedToken, error) {
	t, err := e.jwt.CreateRefresh(username, userID)
	if err != nil {
		return flows.IssuedToken{}, err
	}
	return toIssued(t), nil
}

func (e *Engine) parseAccess(token string) (flows.TokenClaims, error) {
	c, err := e.jwt.ParseAccess(token)
	if err != nil {
		return flows.TokenClaims{}, err
	}
	return toClaims(c), nil
}

func (e *Engine) parseRefresh(token string) (flows.TokenClaims, error) {
	c, err := e.jwt.ParseRefresh(token)
	if err != nil {
		return flows.TokenClaims{}, err
	}
	return toClaims(c), nil
}

// findAccount returns (nil, nil) for an absent account.
func (e *Engine) findAccount(ctx context.Context, username string) (*flows.AccountRecord, error) {
	acc, err := e.store.FindAccount(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flows.AccountRecord{
		ID:           acc.ID,
		Username:     acc.Username,
		PasswordHash: acc.PasswordHash,
		IsAdmin:      acc.IsAdmin,
	}, nil
}

func toOAuthRecord(acc *store.OAuthAccount, err error) (*flows.OAuthRecord, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flows.OAuthRecord{GoogleID: acc.GoogleID, AccountName: acc.AccountName, IsAdmin: acc.IsAdmin}, nil
}

func (e *Engine) findOAuthByAccessToken(ctx context.Context, token string) (*flows.OAuthRecord, error) {
	return toOAuthRecord(e.store.FindOAuthAccountByAccessToken(ctx, token))
}

func (e *Engine) findOAuthByGoogleID(ctx context.Context, googleID string) (*flows.OAuthRecord, error) {
	return toOAuthRecord(e.store.FindOAuthAccountByGoogleID(ctx, googleID))
}

func (e *Engine) findRefreshByUsername(ctx context.Context, username string) (*flows.StoredRefresh, error) {
	return toStoredRefresh(e.store.FindRefreshTokenByUsername(ctx, username))
}

func (e *Engine) findRefreshByToken(ctx context.Context, token string) (*flows.StoredRefresh, error) {
	return toStoredRefresh(e.store.FindRefreshTokenByToken(ctx, token))
}

func toStoredRefresh(rec *store.RefreshToken, err error) (*flows.StoredRefresh, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flows.StoredRefresh{Token: rec.Token, Username: rec.Username, ExpiresAt: rec.ExpiresAt}, nil
}

func (e *Engine) loginDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		Limiter:             e.limiter,
		FindAccount:         e.findAccount,
		VerifyPassword:      e.hasher.Verify,
		VerifyDummy:         e.hasher.VerifyDummy,
		IssueAccess:         e.issueAccess,
		IssueRefresh:        e.issueRefresh,
		FindStoredRefresh:   e.findRefreshByUsername,
		RefreshCSRF: func(token string) (string, bool) {
			c, err := e.jwt.ParseRefresh(token)
			if err != nil {
				return "", false
			}
			return c.CSRF, true
		},
		SaveRefresh: func(ctx context.Context, username string, t flows.IssuedToken, replace bool) error {
			rec := store.RefreshToken{Token: t.Value, Username: username, ExpiresAt: t.ExpiresAt}
			if !replace {
				err := e.store.InsertRefreshToken(ctx, rec)
				if !errors.Is(err, store.ErrDuplicate) {
					return err
				}
				// A concurrent first login stored a record in between.
			}
			return e.store.UpsertRefreshToken(ctx, rec)
		},
	}
	if e.config.Password.UpgradeOnLogin {
		deps.UpgradePassword = e.upgradePassword
	}
	return deps
}

// upgradePassword re-hashes legacy or under-parameterised hashes after a
// successful verification. Failures are logged and never fail the login.
func (e *Engine) upgradePassword(ctx context.Context, account *flows.AccountRecord, pw string) {
	if !e.hasher.NeedsUpgrade(account.PasswordHash) {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		e.logger.Warn("password hash upgrade generation failed", zap.String("username", account.Username), zap.Error(err))
		return
	}
	if err := e.store.UpdatePassword(ctx, account.Username, hash); err != nil {
		e.logger.Warn("password hash upgrade update failed", zap.String("username", account.Username), zap.Error(err))
		return
	}
	e.metricInc(MetricPasswordUpgraded)
	e.emitAudit(ctx, auditEventPasswordUpgraded, true, account.Username, MethodNative, nil, nil)
}

func (e *Engine) refreshDeps() flows.RefreshDeps {
	return flows.RefreshDeps{
		Now:          e.now,
		ParseRefresh: e.parseRefresh,
		IsExpired:    jwt.IsExpired,
		FindRefresh:  e.findRefreshByToken,
		IssueAccess:  e.issueAccess,
		IssueRefresh: e.issueRefresh,
		ReplaceRefresh: func(ctx context.Context, old, username string, next flows.IssuedToken) (bool, error) {
			err := e.store.ReplaceRefreshToken(ctx, old, store.RefreshToken{
				Token:     next.Value,
				Username:  username,
				ExpiresAt: next.ExpiresAt,
			})
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		},
	}
}

func (e *Engine) identityDeps() flows.IdentityDeps {
	return flows.IdentityDeps{
		ParseAccess:            e.parseAccess,
		FindAccount:            e.findAccount,
		FindOAuthByAccessToken: e.findOAuthByAccessToken,
	}
}

func (e *Engine) adminDeps() flows.AdminDeps {
	return flows.AdminDeps{
		CacheGet:            e.adminCache.Get,
		CacheSet:            e.adminCache.Set,
		FindAccount:         e.findAccount,
		FindOAuthByGoogleID: e.findOAuthByGoogleID,
	}
}

func (e *Engine) accountDeps() flows.AccountDeps {
	return flows.AccountDeps{
		IsOAuthLinked: e.store.IsGoogleLinkedAccount,
		FindAccount:   e.findAccount,
		CreateAccount: func(ctx context.Context, username, hash string) (*flows.AccountRecord, error) {
			acc := &store.Account{Username: username, PasswordHash: hash}
			if err := e.store.CreateAccount(ctx, acc); err != nil {
				return nil, err
			}
			return &flows.AccountRecord{ID: acc.ID, Username: acc.Username, PasswordHash: acc.PasswordHash}, nil
		},
		UpdateAccount: func(ctx context.Context, username string, newUsername, newHash *string) error {
			return e.store.UpdateAccount(ctx, username, store.AccountUpdate{Username: newUsername, PasswordHash: newHash})
		},
		UpdatePassword: e.store.UpdatePassword,
		DeleteAccount:  e.store.DeleteAccount,
		DeleteRefresh:  e.store.DeleteRefreshTokens,
		Hash:           e.hasher.Hash,
		Verify:         e.hasher.Verify,
		IsWeakPassword: func(err error) bool { return errors.Is(err, password.ErrTooShort) },
		ErrNotFound:    store.ErrNotFound,
		ErrDuplicate:   store.ErrDuplicate,
	}
}
