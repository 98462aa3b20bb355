// Package jwt mints and verifies the signed access and refresh tokens used by
// native sessions.
//
// Every token carries a token type, a unique jti and a csrf value. The csrf
// claim is the value clients must echo in the X-CSRF-TOKEN header; it is
// generated at mint time and is never derived from request input.
package jwt
