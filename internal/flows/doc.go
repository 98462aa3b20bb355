// Package flows contains pure-function orchestrators for the credential
// operations exposed by the root package.
//
// Each flow function (RunLogin, RunRefresh, RunResolveIdentity, etc.) accepts
// a typed dependency struct and returns a result carrying a failure kind. The
// root package maps failure kinds onto its error taxonomy, metrics and audit
// events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import bizAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through the dependency structs.
package flows
