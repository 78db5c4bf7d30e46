package oidc

import (
	"fmt"
	"time"
)

// State represents one authorization code flow for a user. Its ID() is the
// opaque one-time value carried as the "state" parameter between the
// authorization request and the callback, where it is checked (and
// discarded) exactly once to bind the two legs together. All States carry
// an expiration for the flow.
type State struct {
	// id is a unique identifier and an opaque value used to maintain state
	// between the authorization request and the callback
	id string

	// expiration is the expiration time for the State
	expiration time.Time
}

// NewState creates a new State which expires after expireIn.
func NewState(expireIn time.Duration) (*State, error) {
	const op = "oidc.NewState"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	id, err := NewID("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's id: %w", op, err)
	}
	return &State{
		id:         id,
		expiration: time.Now().Add(expireIn),
	}, nil
}

func (s *State) ID() string { return s.id }

// Expiration returns the time at which the flow's state stops being
// acceptable at the callback.
func (s *State) Expiration() time.Time { return s.expiration }

// DefaultStateExpirySkew defines a default time skew when checking a
// State's expiration.
const DefaultStateExpirySkew = 1 * time.Second

// IsExpired returns true if the state has expired. Supports the
// WithExpirySkew option and if none is provided it will use the
// DefaultStateExpirySkew.
func (s *State) IsExpired(opt ...Option) bool {
	opts := getStateOpts(opt...)
	return s.expiration.Before(time.Now().Add(opts.withExpirySkew))
}

// stateOptions is the set of available options for State functions
type stateOptions struct {
	withExpirySkew time.Duration
}

// stateDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func stateDefaults() stateOptions {
	return stateOptions{
		withExpirySkew: DefaultStateExpirySkew,
	}
}

// getStateOpts gets the state defaults and applies the opt overrides passed
// in.
func getStateOpts(opt ...Option) stateOptions {
	opts := stateDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
