package session

import (
	"context"
	"errors"

	"github.com/authlabs/go-oauth-demo/oidc"
)

// ErrNoPendingState is returned by ConsumeState when the session has no
// pending (or an expired) authorization flow state. A replayed callback
// lands here deterministically: the first consume invalidated the state.
var ErrNoPendingState = errors.New("no authorization flow state is pending for the session")

// Store is the process-external key-value store holding flow sessions,
// keyed by the opaque session identifier. Implementations own all session
// mutation and must provide per-key atomicity (single writer per key), so
// no additional locking is required by callers. All implementations must be
// concurrently safe.
type Store interface {
	// Get returns a snapshot of the session. A session that has never
	// been written is returned empty (unauthenticated, no pending state)
	// rather than as an error.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// BeginFlow binds a fresh flow state to the session, overwriting any
	// prior pending value: only one flow may be in flight per session.
	// Any stored tokens are dropped, returning the session to
	// unauthenticated until the new flow completes.
	BeginFlow(ctx context.Context, sessionID string, s *oidc.State) error

	// ConsumeState returns the session's pending state value and
	// invalidates it in the same step; a second call fails with
	// ErrNoPendingState. Expired state is treated as absent.
	ConsumeState(ctx context.Context, sessionID string) (string, error)

	// SetTokens makes the session authenticated, applying the token set
	// in a single step.
	SetTokens(ctx context.Context, sessionID string, t *oidc.Token) error

	// Destroy removes all state for the session: pending state and
	// tokens, as one operation. Destroying an absent session is not an
	// error.
	Destroy(ctx context.Context, sessionID string) error
}
