package flows

import "context"

// IdentityFailureKind classifies identity resolution failures.
type IdentityFailureKind int

const (
	IdentityFailureNone IdentityFailureKind = iota
	IdentityFailureUnauthenticated
	IdentityFailureStore
)

// Identity methods.
const (
	MethodNative = "native"
	MethodOAuth  = "oauth"
)

// ResolvedIdentity is the flow-local identity model.
type ResolvedIdentity struct {
	Method   string
	Username string
	UserID   string
	GoogleID string
	CSRF     string
}

// IdentityDeps captures identity resolution dependencies. Finders return
// (nil, nil) for absent records.
type IdentityDeps struct {
	ParseAccess            func(token string) (TokenClaims, error)
	FindAccount            func(ctx context.Context, username string) (*AccountRecord, error)
	FindOAuthByAccessToken func(ctx context.Context, token string) (*OAuthRecord, error)
}

// IdentityResult carries the resolved identity or failure metadata.
// NativeErr keeps the access-token verification error for logging when the
// OAuth fallback was taken.
type IdentityResult struct {
	Failure   IdentityFailureKind
	Err       error
	NativeErr error
	Identity  ResolvedIdentity
}

// RunResolveIdentity tries the native access token first and, when it does
// not verify, looks the OAuth access-token cookie up as an opaque store key.
// The fallback does not contact the provider.
func RunResolveIdentity(ctx context.Context, accessToken, oauthToken string, deps IdentityDeps) IdentityResult {
	var nativeErr error
	if accessToken != "" {
		claims, err := deps.ParseAccess(accessToken)
		if err == nil {
			account, err := deps.FindAccount(ctx, claims.Username)
			if err != nil {
				return IdentityResult{Failure: IdentityFailureStore, Err: err}
			}
			if account == nil {
				return IdentityResult{Failure: IdentityFailureUnauthenticated}
			}
			return IdentityResult{Identity: ResolvedIdentity{
				Method:   MethodNative,
				Username: account.Username,
				UserID:   account.ID,
				CSRF:     claims.CSRF,
			}}
		}
		nativeErr = err
	}

	if oauthToken == "" {
		return IdentityResult{Failure: IdentityFailureUnauthenticated, NativeErr: nativeErr}
	}
	record, err := deps.FindOAuthByAccessToken(ctx, oauthToken)
	if err != nil {
		return IdentityResult{Failure: IdentityFailureStore, Err: err, NativeErr: nativeErr}
	}
	if record == nil {
		return IdentityResult{Failure: IdentityFailureUnauthenticated, NativeErr: nativeErr}
	}
	return IdentityResult{
		NativeErr: nativeErr,
		Identity: ResolvedIdentity{
			Method:   MethodOAuth,
			Username: record.AccountName,
			GoogleID: record.GoogleID,
		},
	}
}

// AdminDeps captures admin-status lookup dependencies.
type AdminDeps struct {
	CacheGet            func(key string) (bool, bool)
	CacheSet            func(key string, isAdmin bool)
	FindAccount         func(ctx context.Context, username string) (*AccountRecord, error)
	FindOAuthByGoogleID func(ctx context.Context, googleID string) (*OAuthRecord, error)
}

// AdminResult is the admin flag and whether it came from the cache.
type AdminResult struct {
	IsAdmin bool
	Cached  bool
	Err     error
}

// RunIsAdmin answers from the cache, else reads the admin flag of the record
// the identity was resolved from and caches the answer. Native identities
// only consult native accounts and OAuth identities only OAuth accounts, so a
// shared display name never carries privileges across methods. Store errors
// are not cached.
func RunIsAdmin(ctx context.Context, key string, id ResolvedIdentity, deps AdminDeps) AdminResult {
	if v, ok := deps.CacheGet(key); ok {
		return AdminResult{IsAdmin: v, Cached: true}
	}

	isAdmin := false
	switch id.Method {
	case MethodNative:
		account, err := deps.FindAccount(ctx, id.Username)
		if err != nil {
			return AdminResult{Err: err}
		}
		// A re-created account with the same name is a different principal.
		if account != nil && (id.UserID == "" || account.ID == id.UserID) {
			isAdmin = account.IsAdmin
		}
	case MethodOAuth:
		record, err := deps.FindOAuthByGoogleID(ctx, id.GoogleID)
		if err != nil {
			return AdminResult{Err: err}
		}
		if record != nil {
			isAdmin = record.IsAdmin
		}
	}

	deps.CacheSet(key, isAdmin)
	return AdminResult{IsAdmin: isAdmin}
}
