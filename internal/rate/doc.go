// Package rate holds the Redis counters behind login throttling.
//
// # Keys
//
//   - login_attempts:{ip}:{username}: failed-attempt counter, TTL re-set on every increment
//   - username_expiry:{username}: lockout marker holding its absolute expiry
//   - ip_rate_limit:{ip}: coarse per-IP lockout
//   - edge_requests:{ip}: fixed-window request counter for the login endpoint
//
// Counters only grow within a window and reset through TTL expiry. Nothing in
// this package decrements or deletes a counter, except the lazy removal of a
// lockout marker already past its stored expiry.
//
// # What this package must NOT do
//
//   - Decide HTTP status codes or response bodies.
//   - Be imported outside the bizAuth module.
package rate
