// oauthdemo demonstrates the OAuth 2.0 authorization code grant against an
// Okta-style provider: the oidc package drives the 3-legged flow and the
// session package keeps each browser session's one-time flow state and token
// set, with the internal/server package wiring both into a small HTTP
// server.
package oauthdemo
