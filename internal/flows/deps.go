package flows

import "time"

// IssuedToken is a signed token with the CSRF value bound to it.
type IssuedToken struct {
	Value     string
	CSRF      string
	ExpiresAt time.Time
}

// AccountRecord is the flow-local view of a native account.
type AccountRecord struct {
	ID           string
	Username     string
	PasswordHash string
	IsAdmin      bool
}

// StoredRefresh is the flow-local view of a persisted refresh token record.
type StoredRefresh struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// OAuthRecord is the flow-local view of an OAuth-linked account.
type OAuthRecord struct {
	GoogleID    string
	AccountName string
	IsAdmin     bool
}

// TokenClaims is the subset of verified token claims flows consume.
type TokenClaims struct {
	Username string
	UserID   string
	CSRF     string
}
