package audit

// EventType names an audit event.
type EventType string

// Native login and lockouts.
const (
	EventLoginSuccess     EventType = "login_success"
	EventLoginFailure     EventType = "login_failure"
	EventLoginRateLimited EventType = "login_rate_limited"
	EventLockoutTriggered EventType = "lockout_triggered"
	EventIPLockout        EventType = "ip_lockout"
	EventPasswordUpgraded EventType = "password_hash_upgraded"
)

// Native token rotation.
const (
	EventRefreshSuccess       EventType = "refresh_success"
	EventRefreshInvalid       EventType = "refresh_invalid"
	EventRefreshReuseDetected EventType = "refresh_reuse_detected"
	EventCSRFMismatch         EventType = "csrf_mismatch"
)

// Native account administration.
const (
	EventAccountCreated      EventType = "account_created"
	EventAccountCreateFailed EventType = "account_create_failure"
	EventAccountUpdated      EventType = "account_updated"
	EventAccountUpdateFailed EventType = "account_update_failure"
	EventAccountDeleted      EventType = "account_deleted"
	EventAccountDeleteFailed EventType = "account_delete_failure"
	EventPasswordReset       EventType = "password_reset"
	EventPasswordResetFailed EventType = "password_reset_failure"
)

// Google sign-in.
const (
	EventOAuthLoginSuccess   EventType = "oauth_login_success"
	EventOAuthLoginFailure   EventType = "oauth_login_failure"
	EventOAuthRefreshSuccess EventType = "oauth_refresh_success"
	EventOAuthRefreshFailure EventType = "oauth_refresh_failure"
)

// EventLogout ends a browser session of either method.
const EventLogout EventType = "logout"

// Category groups event types for sinks and drop accounting.
type Category string

const (
	CategoryLogin   Category = "login"
	CategoryToken   Category = "token"
	CategoryAccount Category = "account"
	CategoryOAuth   Category = "oauth"
	CategorySession Category = "session"
	CategoryOther   Category = "other"
)

// Categories lists every category in reporting order.
var Categories = []Category{CategoryLogin, CategoryToken, CategoryAccount, CategoryOAuth, CategorySession, CategoryOther}

// Category returns the group t belongs to.
func (t EventType) Category() Category {
	switch t {
	case EventLoginSuccess, EventLoginFailure, EventLoginRateLimited, EventLockoutTriggered, EventIPLockout, EventPasswordUpgraded:
		return CategoryLogin
	case EventRefreshSuccess, EventRefreshInvalid, EventRefreshReuseDetected, EventCSRFMismatch:
		return CategoryToken
	case EventAccountCreated, EventAccountCreateFailed, EventAccountUpdated, EventAccountUpdateFailed,
		EventAccountDeleted, EventAccountDeleteFailed, EventPasswordReset, EventPasswordResetFailed:
		return CategoryAccount
	case EventOAuthLoginSuccess, EventOAuthLoginFailure, EventOAuthRefreshSuccess, EventOAuthRefreshFailure:
		return CategoryOAuth
	case EventLogout:
		return CategorySession
	default:
		return CategoryOther
	}
}

// Critical reports whether t records a lockout, a detected replay or a
// privileged change to someone's account. Critical events are queued even
// when the dispatcher drops under backpressure.
func (t EventType) Critical() bool {
	switch t {
	case EventLockoutTriggered, EventIPLockout, EventRefreshReuseDetected, EventCSRFMismatch,
		EventAccountDeleted, EventPasswordReset:
		return true
	default:
		return false
	}
}
