// Package authgate is the authentication and session-security control
// plane for services that keep their user records elsewhere.
//
// The engine issues and verifies signed access, refresh, and pending
// two-factor tokens, tracks per-user sessions, blacklists tokens before
// their natural expiry, throttles failed logins per source address,
// locks accounts after repeated failures, and runs the two-factor
// handshake. User records themselves live behind the [CredentialStore]
// interface, which callers implement against their own database; the
// userstore packages ship a Postgres implementation and an in-memory
// one for tests.
//
// The three shared mutable stores (revocation registry, session
// registry, throttle counters) are Redis-backed so that every node in a
// deployment observes the same revocation state. Token verification is
// pure and needs no shared state.
//
// Build an engine with the [Builder]:
//
//	engine, err := authgate.New().
//		WithConfig(authgate.DefaultConfig()).
//		WithRedis(rdb).
//		WithCredentialStore(store).
//		Build()
//
// The middleware package wraps the engine for net/http, and httpserver
// exposes the full /auth/* surface.
package authgate
