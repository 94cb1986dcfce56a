// Package password implements credential hashing for the authentication
// core: argon2id for all new hashes, with read-only support for legacy
// bcrypt hashes so accounts created before the scheme change can still
// log in and be upgraded in place.
package password
