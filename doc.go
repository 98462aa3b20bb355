// Package bizAuth is the session and credential core of the business
// directory backend: native password accounts with login lockouts, rolling
// JWT refresh rotation with CSRF pairing, a Google OAuth bridge and the
// per-request identity resolution every protected endpoint performs.
//
// Build an [Engine] with [New], supplying a Redis client for rate limiting
// and OAuth state, and a store.Store for accounts and refresh tokens:
//
//	engine, err := bizAuth.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithStore(pgstore.New(pool)).
//		WithOAuthProvider(client).
//		WithLogger(logger).
//		Build()
//
// Engine methods are safe for concurrent use. Every error they return is an
// [*Error] whose Kind maps onto a transport status; the wrapped sentinels
// (ErrInvalidCredentials, ErrRefreshReuse, ...) stay matchable with errors.Is.
//
// # Architecture boundaries
//
// bizAuth is the public surface. Flow orchestration, rate limiting, the
// admin-status cache and audit dispatch live under internal/. HTTP concerns
// (cookies, status codes, request ids) live in httpapi and middleware.
//
// # What this package must NOT do
//
//   - Set or read cookies. Callers pass raw token values in and get them back.
//   - Import httpapi, middleware or metrics/export (no import cycles).
//   - Retry refresh rotation. A lost rotation race is reported, never replayed.
package bizAuth
