// Package session holds the per-browser-session flow state for the
// authorization code flow: the one-time pending state between the
// authorization request and the callback, and the provider-issued tokens
// after a successful exchange.
//
// A session is always in exactly one of two shapes: unauthenticated (no
// tokens, possibly a pending state awaiting its callback) or authenticated
// (tokens present, pending state cleared). It is never half-applied. All
// mutation happens through a Store, which provides per-session atomicity;
// no other component retains token values beyond a single request.
package session

import (
	"fmt"
	"time"
)

// Session is a snapshot of one browser session's flow state, as read from a
// Store. The ID is the opaque, cookie-bound identifier; it is managed
// externally to this package.
type Session struct {
	ID string

	// PendingState is the one-time flow binding value; present only
	// between the authorization request and its callback.
	PendingState string

	// AccessToken, IDToken, TokenType and Expiry are present only after a
	// successful exchange. The IDToken may be empty even then: not every
	// provider response includes one.
	AccessToken string
	IDToken     string
	TokenType   string
	Expiry      time.Time
}

// Authenticated reports whether the session holds a token set.
func (s *Session) Authenticated() bool {
	if s == nil {
		return false
	}
	return s.AccessToken != ""
}

// String describes the session without revealing token or state values.
func (s *Session) String() string {
	if s == nil {
		return "Session(nil)"
	}
	return fmt.Sprintf("Session{ID: %s, pendingFlow: %t, authenticated: %t}", s.ID, s.PendingState != "", s.Authenticated())
}
