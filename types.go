package bizAuth

import "time"

// AuthMethod names how an identity was resolved.
type AuthMethod string

const (
	MethodNative AuthMethod = "native"
	MethodOAuth  AuthMethod = "oauth"
)

// Identity is the resolved caller of a protected operation.
type Identity struct {
	Method   AuthMethod
	Username string
	// UserID is the native account id. Empty for OAuth identities.
	UserID string
	// GoogleID is the provider subject. Empty for native identities.
	GoogleID string
	// CSRF is the csrf claim of the native access token.
	CSRF string
}

// authenticated reports whether the identity names a principal of its method.
func (i Identity) authenticated() bool {
	switch i.Method {
	case MethodNative:
		return i.Username != ""
	case MethodOAuth:
		return i.GoogleID != ""
	default:
		return false
	}
}

// cacheKey identifies the identity in the admin-status cache by method and
// stable id, falling back to the username for native identities built
// without one.
func (i Identity) cacheKey() string {
	switch {
	case i.Method == MethodOAuth:
		return string(i.Method) + ":" + i.GoogleID
	case i.UserID != "":
		return string(i.Method) + ":" + i.UserID
	default:
		return string(i.Method) + ":name:" + i.Username
	}
}

// Credentials are the raw values a request presents for identity resolution.
type Credentials struct {
	// AccessToken is the native access JWT from the cookie or a bearer header.
	AccessToken string
	// OAuthAccessToken is the provider access token cookie, looked up verbatim.
	OAuthAccessToken string
}

// Session is a native token pair with its CSRF values.
type Session struct {
	UserID           string
	Username         string
	AccessToken      string
	AccessCSRF       string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshCSRF      string
	RefreshExpiresAt time.Time
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Session
	// RefreshReused is true when the stored, unexpired refresh token was
	// returned instead of a new one.
	RefreshReused bool
}

// RefreshRequest carries the inputs of a refresh rotation.
type RefreshRequest struct {
	RefreshToken string
	CSRFHeader   string
}

// AccountUpdateRequest describes a native account change. Password is the
// current password; NewUsername and NewPassword are optional but one is required.
type AccountUpdateRequest struct {
	Username    string
	Password    string
	NewUsername string
	NewPassword string
}

// AccountInfo is the public view of a native account.
type AccountInfo struct {
	ID        string
	Username  string
	IsAdmin   bool
	CreatedAt time.Time
}

// OAuthStart is the authorization redirect and the state bound to it.
type OAuthStart struct {
	URL   string
	State string
}

// OAuthCallback carries the values received on the provider redirect.
type OAuthCallback struct {
	StateCookie string
	StateParam  string
	Code        string
}

// OAuthSession is the result of a completed authorization-code exchange.
type OAuthSession struct {
	GoogleID     string
	AccountName  string
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
	Created      bool
}

// OAuthRefreshResult is the provider access token minted by RefreshOAuth.
type OAuthRefreshResult struct {
	AccessToken string
	Expiry      time.Time
}

// OAuthUserData is the profile view returned by OAuthUserData.
type OAuthUserData struct {
	GoogleID    string
	AccountName string
}
