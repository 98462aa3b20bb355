package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports that the addressed record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate reports a unique-key violation (username, google id, token).
	ErrDuplicate = errors.New("store: duplicate record")
	// ErrUnavailable reports a backend failure or timeout. Callers may retry.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// Account is a native (password) account.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	IsAdmin      bool
	// IsLocked and LockedUntil are persisted for administrative use and are not
	// consulted by the login flow.
	IsLocked    bool
	LockedUntil *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AccountUpdate lists the mutable native account fields. Nil fields are left unchanged.
type AccountUpdate struct {
	Username     *string
	PasswordHash *string
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Username == nil && u.PasswordHash == nil
}

// OAuthAccount is an account identified by the external identity provider.
type OAuthAccount struct {
	ID           string
	GoogleID     string
	AccountName  string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OAuthTokens carries provider credentials written back to an OAuth account.
// An empty RefreshToken leaves the stored refresh token untouched.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// RefreshToken is the single live native refresh token for a username.
type RefreshToken struct {
	Token     string
	Username  string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *RefreshToken) Expired(now time.Time) bool {
	return r == nil || !r.ExpiresAt.After(now)
}

// AccountStore persists native accounts.
type AccountStore interface {
	FindAccount(ctx context.Context, username string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
	UpdateAccount(ctx context.Context, username string, update AccountUpdate) error
	DeleteAccount(ctx context.Context, username string) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	// IsGoogleLinkedAccount reports whether username matches the display name
	// of an OAuth-linked account.
	IsGoogleLinkedAccount(ctx context.Context, username string) (bool, error)
}

// RefreshTokenStore persists native refresh-token records, one per username.
type RefreshTokenStore interface {
	FindRefreshTokenByUsername(ctx context.Context, username string) (*RefreshToken, error)
	FindRefreshTokenByToken(ctx context.Context, token string) (*RefreshToken, error)
	// UpsertRefreshToken installs record as the live token for record.Username,
	// replacing any previous one.
	UpsertRefreshToken(ctx context.Context, record RefreshToken) error
	// InsertRefreshToken stores the first record for record.Username. It
	// returns ErrDuplicate when the username or token already has one.
	InsertRefreshToken(ctx context.Context, record RefreshToken) error
	// ReplaceRefreshToken atomically swaps the record holding oldToken for next.
	// It returns ErrNotFound when oldToken is no longer stored.
	ReplaceRefreshToken(ctx context.Context, oldToken string, next RefreshToken) error
	DeleteRefreshTokens(ctx context.Context, username string) error
}

// OAuthAccountStore persists OAuth-linked accounts.
type OAuthAccountStore interface {
	FindOAuthAccountByGoogleID(ctx context.Context, googleID string) (*OAuthAccount, error)
	FindOAuthAccountByAccessToken(ctx context.Context, accessToken string) (*OAuthAccount, error)
	FindOAuthAccountByRefreshToken(ctx context.Context, refreshToken string) (*OAuthAccount, error)
	CreateOAuthAccount(ctx context.Context, account *OAuthAccount) error
	UpdateOAuthTokens(ctx context.Context, googleID string, tokens OAuthTokens) error
}

// Store is the full credential store adapter consumed by the engine.
type Store interface {
	AccountStore
	RefreshTokenStore
	OAuthAccountStore
}
