// Package authcore is the authentication and authorization core of the
// Bookly book-catalog API: credential verification with transparent
// hash upgrades, JWT issuance and ordered verification, Redis-backed
// revocation and brute-force limiting, and the role/ownership decision
// model consumed by every resource service.
//
// The HTTP layer, relational schema for catalog resources, and email
// delivery are collaborators, not part of this module. They talk to the
// [Engine], which is built through the [Builder]:
//
//	engine, err := authcore.New().
//		WithRedis(rdb).
//		WithUserStore(users).
//		Build()
package authcore
