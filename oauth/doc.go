// Package oauth talks to the external identity provider: it builds the
// authorization URL, exchanges codes, refreshes provider tokens and fetches the
// userinfo profile. Token exchange and refresh go through golang.org/x/oauth2.
//
// It also holds the Redis-backed store for the one-shot `state` values that
// bind a callback to the browser that started the flow.
//
// # What this package must NOT do
//
//   - Persist OAuth accounts. The engine maps profiles to stored accounts.
//   - Set cookies or decide HTTP status codes.
package oauth
