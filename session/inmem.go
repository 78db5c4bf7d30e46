package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/authlabs/go-oauth-demo/oidc"
)

// record is the stored shape of a session. The pending state and the token
// set never coexist; the mutating methods below maintain that.
type record struct {
	pendingState  string
	pendingExpiry time.Time

	accessToken string
	idToken     string
	tokenType   string
	expiry      time.Time
}

// InmemStore is a mutex-guarded in-process Store, suitable for tests and
// single-process development runs. Production deployments should use the
// Redis store so sessions survive the process.
type InmemStore struct {
	mu       sync.Mutex
	sessions map[string]*record
}

var _ Store = (*InmemStore)(nil)

func NewInmemStore() *InmemStore {
	return &InmemStore{
		sessions: map[string]*record{},
	}
}

func (s *InmemStore) Get(_ context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return &Session{ID: sessionID}, nil
	}
	snapshot := &Session{
		ID:          sessionID,
		AccessToken: rec.accessToken,
		IDToken:     rec.idToken,
		TokenType:   rec.tokenType,
		Expiry:      rec.expiry,
	}
	if rec.pendingState != "" && rec.pendingExpiry.After(time.Now()) {
		snapshot.PendingState = rec.pendingState
	}
	return snapshot, nil
}

func (s *InmemStore) BeginFlow(_ context.Context, sessionID string, state *oidc.State) error {
	const op = "session.(InmemStore).BeginFlow"
	if state == nil {
		return fmt.Errorf("%s: state is nil: %w", op, oidc.ErrNilParameter)
	}
	if state.IsExpired() {
		return fmt.Errorf("%s: %w", op, oidc.ErrExpiredState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &record{
		pendingState:  state.ID(),
		pendingExpiry: state.Expiration(),
	}
	return nil
}

func (s *InmemStore) ConsumeState(_ context.Context, sessionID string) (string, error) {
	const op = "session.(InmemStore).ConsumeState"
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok || rec.pendingState == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNoPendingState)
	}
	state, expiry := rec.pendingState, rec.pendingExpiry
	rec.pendingState, rec.pendingExpiry = "", time.Time{}
	if !expiry.After(time.Now()) {
		return "", fmt.Errorf("%s: %w", op, ErrNoPendingState)
	}
	return state, nil
}

func (s *InmemStore) SetTokens(_ context.Context, sessionID string, t *oidc.Token) error {
	const op = "session.(InmemStore).SetTokens"
	if t == nil {
		return fmt.Errorf("%s: token is nil: %w", op, oidc.ErrNilParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &record{
		accessToken: t.AccessToken(),
		idToken:     t.IDToken(),
		tokenType:   t.TokenType(),
		expiry:      t.Expiry(),
	}
	return nil
}

func (s *InmemStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
