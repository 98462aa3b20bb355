package internaldefs

import (
	"github.com/MrEthical07/bizAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   bizAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   bizAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: bizAuth.MetricLoginSuccess, Name: "bizauth_login_success_total", Help: "Successful native logins."},
	{ID: bizAuth.MetricLoginFailure, Name: "bizauth_login_failure_total", Help: "Failed native logins."},
	{ID: bizAuth.MetricLoginRateLimited, Name: "bizauth_login_rate_limited_total", Help: "Logins refused under a username or IP lockout."},
	{ID: bizAuth.MetricLoginLockout, Name: "bizauth_login_lockout_total", Help: "Username lockouts triggered."},
	{ID: bizAuth.MetricIPLockout, Name: "bizauth_ip_lockout_total", Help: "IP lockouts triggered by the edge limit."},
	{ID: bizAuth.MetricEdgeRateLimited, Name: "bizauth_edge_rate_limited_total", Help: "Requests over the per-IP edge budget."},
	{ID: bizAuth.MetricRefreshSuccess, Name: "bizauth_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: bizAuth.MetricRefreshFailure, Name: "bizauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: bizAuth.MetricRefreshReuseDetected, Name: "bizauth_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: bizAuth.MetricCSRFMismatch, Name: "bizauth_csrf_mismatch_total", Help: "Missing or mismatched CSRF and OAuth state values."},
	{ID: bizAuth.MetricRefreshReused, Name: "bizauth_refresh_reused_total", Help: "Logins that returned the stored refresh token."},
	{ID: bizAuth.MetricAccountCreationSuccess, Name: "bizauth_account_creation_success_total", Help: "Native accounts created."},
	{ID: bizAuth.MetricAccountCreationDuplicate, Name: "bizauth_account_creation_duplicate_total", Help: "Account creations rejected as duplicate."},
	{ID: bizAuth.MetricAccountUpdated, Name: "bizauth_account_updated_total", Help: "Native account updates."},
	{ID: bizAuth.MetricAccountDeleted, Name: "bizauth_account_deleted_total", Help: "Native account deletions."},
	{ID: bizAuth.MetricAccountOAuthLinkedRejected, Name: "bizauth_account_oauth_linked_rejected_total", Help: "Account mutations refused for Google-linked names."},
	{ID: bizAuth.MetricPasswordReset, Name: "bizauth_password_reset_total", Help: "Administrative password resets."},
	{ID: bizAuth.MetricPasswordUpgraded, Name: "bizauth_password_upgraded_total", Help: "Password hashes upgraded on login."},
	{ID: bizAuth.MetricOAuthLoginSuccess, Name: "bizauth_oauth_login_success_total", Help: "Completed OAuth callbacks."},
	{ID: bizAuth.MetricOAuthLoginFailure, Name: "bizauth_oauth_login_failure_total", Help: "Failed OAuth callbacks."},
	{ID: bizAuth.MetricOAuthRefreshSuccess, Name: "bizauth_oauth_refresh_success_total", Help: "Provider access tokens refreshed."},
	{ID: bizAuth.MetricOAuthRefreshFailure, Name: "bizauth_oauth_refresh_failure_total", Help: "Failed provider token refreshes."},
	{ID: bizAuth.MetricIdentityNative, Name: "bizauth_identity_native_total", Help: "Requests resolved from a native access token."},
	{ID: bizAuth.MetricIdentityOAuth, Name: "bizauth_identity_oauth_total", Help: "Requests resolved from the OAuth access-token cookie."},
	{ID: bizAuth.MetricIdentityRejected, Name: "bizauth_identity_rejected_total", Help: "Requests with no resolvable identity."},
	{ID: bizAuth.MetricAdminCacheHit, Name: "bizauth_admin_cache_hit_total", Help: "Admin status answered from cache."},
	{ID: bizAuth.MetricAdminCacheMiss, Name: "bizauth_admin_cache_miss_total", Help: "Admin status looked up in the store."},
	{ID: bizAuth.MetricLogout, Name: "bizauth_logout_total", Help: "Logouts."},
	{ID: bizAuth.MetricStoreUnavailable, Name: "bizauth_store_unavailable_total", Help: "Credential store failures."},
	{ID: bizAuth.MetricRedisUnavailable, Name: "bizauth_redis_unavailable_total", Help: "Redis failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: bizAuth.MetricLoginLatency, Name: "bizauth_login_latency_seconds", Help: "Native login latency."},
}

// HistogramBounds are the upper bounds of the engine's fixed latency buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-padding short input.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
