package httpapi

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config controls cookie attributes, redirects and CORS.
type Config struct {
	// PostLoginRedirect is where the OAuth callback sends the browser.
	PostLoginRedirect string
	// AllowedOrigins lists the exact origins allowed to send credentialed
	// requests. Empty disables CORS headers.
	AllowedOrigins []string

	// SecureCookies sets Secure and SameSite=None. Only disable for plain-HTTP
	// local development; browsers drop SameSite=None cookies without Secure.
	SecureCookies bool
	CookieDomain  string

	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Every IP-keyed limit reads the client
	// IP, so leave it empty unless the service sits behind a known proxy.
	TrustedProxies []string

	AccessCookieTTL       time.Duration
	RefreshCookieTTL      time.Duration
	OAuthRefreshCookieTTL time.Duration
	StateCookieTTL        time.Duration
	LoggedInCookieTTL     time.Duration

	// MetricsEnabled mounts GET /metrics.
	MetricsEnabled bool
}

// DefaultConfig returns the production cookie policy.
func DefaultConfig() Config {
	return Config{
		PostLoginRedirect:     "/",
		SecureCookies:         true,
		AccessCookieTTL:       24 * time.Hour,
		RefreshCookieTTL:      30 * 24 * time.Hour,
		OAuthRefreshCookieTTL: 180 * 24 * time.Hour,
		StateCookieTTL:        10 * time.Minute,
		LoggedInCookieTTL:     15 * time.Minute,
		MetricsEnabled:        true,
	}
}

// Validate rejects cookie lifetimes that would delete cookies on write and
// redirects that are neither absolute nor rooted.
func (c Config) Validate() error {
	if c.AccessCookieTTL <= 0 || c.RefreshCookieTTL <= 0 || c.OAuthRefreshCookieTTL <= 0 {
		return errors.New("httpapi: cookie lifetimes must be > 0")
	}
	if c.StateCookieTTL <= 0 || c.LoggedInCookieTTL <= 0 {
		return errors.New("httpapi: state and logged_in cookie lifetimes must be > 0")
	}
	redirect := strings.TrimSpace(c.PostLoginRedirect)
	if redirect == "" {
		return errors.New("httpapi: post-login redirect is required")
	}
	if !strings.HasPrefix(redirect, "/") {
		u, err := url.Parse(redirect)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("httpapi: post-login redirect must be a path or an absolute URL")
		}
	}
	for _, origin := range c.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return errors.New("httpapi: wildcard origin cannot be used with credentialed requests")
		}
	}
	return nil
}
