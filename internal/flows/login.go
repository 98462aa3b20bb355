package flows

import (
	"context"
	"time"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureIPLocked
	LoginFailureLockedOut
	LoginFailureInvalidCredentials
	LoginFailureLockoutTriggered
	LoginFailureLimiter
	LoginFailureStore
	LoginFailureIssue
)

// LoginLimiter is the rate limiter surface used by login.
type LoginLimiter interface {
	IsIPLockedOut(ctx context.Context, ip string) (bool, error)
	IPLockoutMinutes(ctx context.Context, ip string) (int, error)
	IsLockedOut(ctx context.Context, username string) (bool, error)
	RemainingLockoutMinutes(ctx context.Context, username string) (int, error)
	RecordAttempt(ctx context.Context, ip, username string) (int, error)
	Lockout(ctx context.Context, username string) (bool, error)
	MaxLoginAttempts() int
}

// LoginDeps captures login dependencies. Finders return (nil, nil) for absent records.
type LoginDeps struct {
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string
	Limiter             LoginLimiter

	FindAccount    func(ctx context.Context, username string) (*AccountRecord, error)
	VerifyPassword func(password, hash string) (bool, error)
	VerifyDummy    func(password string)
	// UpgradePassword re-hashes a verified password when its stored hash is
	// outdated. Optional and best-effort.
	UpgradePassword func(ctx context.Context, account *AccountRecord, password string)

	IssueAccess       func(username, userID string) (IssuedToken, error)
	IssueRefresh      func(username, userID string) (IssuedToken, error)
	FindStoredRefresh func(ctx context.Context, username string) (*StoredRefresh, error)
	// RefreshCSRF returns the csrf claim of a stored refresh token, or false
	// when the token no longer verifies.
	RefreshCSRF func(token string) (string, bool)
	// SaveRefresh stores token as the user's live refresh token. replace is
	// false when no record existed for the user.
	SaveRefresh func(ctx context.Context, username string, token IssuedToken, replace bool) error
}

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure           LoginFailureKind
	Err               error
	Username          string
	UserID            string
	RemainingAttempts int
	WaitMinutes       int
	Access            IssuedToken
	Refresh           IssuedToken
	RefreshReused     bool
}

// RunLogin executes the login state machine: lockout checks, credential
// verification with attempt counting, then token issuance.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	ip := deps.ClientIPFromContext(ctx)
	if username == "" || password == "" {
		return LoginResult{Failure: LoginFailureInvalidInput, Username: username}
	}

	if locked, err := deps.Limiter.IsIPLockedOut(ctx, ip); err != nil {
		return LoginResult{Failure: LoginFailureLimiter, Err: err, Username: username}
	} else if locked {
		mins, err := deps.Limiter.IPLockoutMinutes(ctx, ip)
		if err != nil {
			return LoginResult{Failure: LoginFailureLimiter, Err: err, Username: username}
		}
		return LoginResult{Failure: LoginFailureIPLocked, Username: username, WaitMinutes: mins}
	}

	if locked, err := deps.Limiter.IsLockedOut(ctx, username); err != nil {
		return LoginResult{Failure: LoginFailureLimiter, Err: err, Username: username}
	} else if locked {
		mins, err := deps.Limiter.RemainingLockoutMinutes(ctx, username)
		if err != nil {
			return LoginResult{Failure: LoginFailureLimiter, Err: err, Username: username}
		}
		// Zero means the marker had outlived its stored expiry and was removed.
		if mins > 0 {
			return LoginResult{Failure: LoginFailureLockedOut, Username: username, WaitMinutes: mins}
		}
	}

	account, err := deps.FindAccount(ctx, username)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, Username: username}
	}

	verified := false
	if account == nil {
		deps.VerifyDummy(password)
	} else {
		// A hash that cannot be parsed counts as a failed attempt.
		verified, _ = deps.VerifyPassword(password, account.PasswordHash)
	}
	if !verified {
		return recordFailure(ctx, ip, username, deps)
	}

	if deps.UpgradePassword != nil {
		deps.UpgradePassword(ctx, account, password)
	}

	access, err := deps.IssueAccess(account.Username, account.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Username: username}
	}

	result := LoginResult{
		Failure:  LoginFailureNone,
		Username: account.Username,
		UserID:   account.ID,
		Access:   access,
	}

	stored, err := deps.FindStoredRefresh(ctx, account.Username)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, Username: username}
	}
	if stored != nil && stored.ExpiresAt.After(deps.Now()) {
		if csrf, ok := deps.RefreshCSRF(stored.Token); ok {
			result.Refresh = IssuedToken{Value: stored.Token, CSRF: csrf, ExpiresAt: stored.ExpiresAt}
			result.RefreshReused = true
			return result
		}
	}

	refresh, err := deps.IssueRefresh(account.Username, account.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Username: username}
	}
	if err := deps.SaveRefresh(ctx, account.Username, refresh, stored != nil); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, Username: username}
	}
	result.Refresh = refresh
	return result
}

func recordFailure(ctx context.Context, ip, username string, deps LoginDeps) LoginResult {
	count, err := deps.Limiter.RecordAttempt(ctx, ip, username)
	if err != nil {
		return LoginResult{Failure: LoginFailureLimiter, Err: err, Username: username}
	}

	maxAttempts := deps.Limiter.MaxLoginAttempts()
	if count < maxAttempts {
		return LoginResult{
			Failure:           LoginFailureInvalidCredentials,
			Username:          username,
			RemainingAttempts: maxAttempts - count,
		}
	}

	if _, err := deps.Limiter.Lockout(ctx, username); err != nil {
		return LoginResult{Failure: LoginFailureLimiter, Err: err, Username: username}
	}
	mins, err := deps.Limiter.RemainingLockoutMinutes(ctx, username)
	if err != nil {
		return LoginResult{Failure: LoginFailureLimiter, Err: err, Username: username}
	}
	return LoginResult{
		Failure:     LoginFailureLockoutTriggered,
		Username:    username,
		WaitMinutes: mins,
	}
}
