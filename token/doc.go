// Package token implements the signed-token lifecycle for the
// authentication core: creation with typed claims, ordered
// verification (structure, signature, expiry, type, revocation), and
// best-effort revocation keyed by the jti claim.
//
// Tokens are immutable once signed. "Destroying" a token means adding
// its jti to the revocation store with a TTL equal to the token's
// remaining lifetime, or simply letting it expire.
package token
