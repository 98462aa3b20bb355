// Package store defines the persistence contract for native accounts, OAuth-linked
// accounts, and native refresh-token records.
//
// Implementations live in subpackages: memstore (in-process, used by tests and
// local runs), mongostore (MongoDB document store), and pgstore (PostgreSQL).
//
// # Contract
//
// Every operation is single-record. Refresh-token rotation is a conditional
// replace keyed by the old token value: exactly one caller observes the old
// record and installs the replacement; every other caller receives [ErrNotFound].
// Writes stamp UpdatedAt.
//
// # What this package must NOT do
//
//   - Hash passwords, mint tokens, or decide lockout policy.
//   - Retry a failed rotation.
package store
