// Package middleware holds the gin handlers that sit in front of the bizAuth
// HTTP API.
//
// # Handlers
//
//   - [RequestLogger]: request id, client context for the engine, access log.
//   - [Recovery]: panic recovery reported to Sentry.
//   - [CORS]: credentialed CORS for the configured origins.
//   - [EdgeLimit]: per-IP request budget backed by Engine.CheckEdgeRate.
//   - [RequireIdentity] and [RequireAdmin]: resolve the caller through the
//     session façade and store it on the gin context.
//
// [AbortWithError] and [Status] translate engine errors into HTTP responses;
// handlers in httpapi use them too.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the credential store.
//   - Decide whether a credential is valid beyond what the Engine reports.
package middleware
