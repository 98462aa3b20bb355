// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, username, IP and metadata.
//   - [EventType]: the closed set of session and account events, each in a
//     [Category]. Critical types (lockouts, refresh replay, admin deletes and
//     resets) are never dropped under backpressure.
//
// # What this package must NOT do
//
//   - Decide which events to emit. That belongs to the Engine.
//   - Import bizAuth or any sibling internal package.
package audit
