// Package password hashes account passwords with Argon2id and verifies both
// Argon2id and legacy bcrypt hashes.
//
// # Output format
//
// New hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Every call to [Hasher.Hash] draws a fresh random salt. [Hasher.NeedsUpgrade]
// reports true for bcrypt hashes and for Argon2id hashes produced with weaker
// parameters, so callers can re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Log plaintext passwords.
package password
