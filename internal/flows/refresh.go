package flows

import (
	"context"
	"crypto/subtle"
	"time"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissingCSRF
	RefreshFailureMissingToken
	RefreshFailureDecode
	RefreshFailureExpired
	RefreshFailureCSRFMismatch
	RefreshFailureNotFound
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshInput is the presented refresh cookie and X-CSRF-TOKEN header.
type RefreshInput struct {
	Token      string
	CSRFHeader string
}

// RefreshDeps captures refresh dependencies. FindRefresh returns (nil, nil)
// for an unknown token; ReplaceRefresh returns false when old is no longer stored.
type RefreshDeps struct {
	Now            func() time.Time
	ParseRefresh   func(token string) (TokenClaims, error)
	IsExpired      func(error) bool
	FindRefresh    func(ctx context.Context, token string) (*StoredRefresh, error)
	IssueAccess    func(username, userID string) (IssuedToken, error)
	IssueRefresh   func(username, userID string) (IssuedToken, error)
	ReplaceRefresh func(ctx context.Context, old, username string, next IssuedToken) (bool, error)
}

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure  RefreshFailureKind
	Err      error
	Username string
	UserID   string
	Access   IssuedToken
	Refresh  IssuedToken
}

// RunRefresh verifies the presented refresh token and its CSRF pairing, then
// rotates it. Nothing is written unless every check passes, and the old token
// is consumed by a single atomic replace.
func RunRefresh(ctx context.Context, in RefreshInput, deps RefreshDeps) RefreshResult {
	if in.CSRFHeader == "" {
		return RefreshResult{Failure: RefreshFailureMissingCSRF}
	}
	if in.Token == "" {
		return RefreshResult{Failure: RefreshFailureMissingToken}
	}

	claims, err := deps.ParseRefresh(in.Token)
	if err != nil {
		if deps.IsExpired != nil && deps.IsExpired(err) {
			return RefreshResult{Failure: RefreshFailureExpired, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	if subtle.ConstantTimeCompare([]byte(in.CSRFHeader), []byte(claims.CSRF)) != 1 {
		return RefreshResult{Failure: RefreshFailureCSRFMismatch, Username: claims.Username}
	}

	stored, err := deps.FindRefresh(ctx, in.Token)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Username: claims.Username}
	}
	if stored == nil || stored.Username != claims.Username || !stored.ExpiresAt.After(deps.Now()) {
		return RefreshResult{Failure: RefreshFailureNotFound, Username: claims.Username}
	}

	access, err := deps.IssueAccess(claims.Username, claims.UserID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Username: claims.Username}
	}
	refresh, err := deps.IssueRefresh(claims.Username, claims.UserID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Username: claims.Username}
	}

	replaced, err := deps.ReplaceRefresh(ctx, in.Token, claims.Username, refresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Username: claims.Username}
	}
	if !replaced {
		return RefreshResult{Failure: RefreshFailureReuse, Username: claims.Username}
	}

	return RefreshResult{
		Failure:  RefreshFailureNone,
		Username: claims.Username,
		UserID:   claims.UserID,
		Access:   access,
		Refresh:  refresh,
	}
}
