package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authlabs/go-oauth-demo/oidc"
)

// DefaultSessionTTL bounds how long an authenticated session's tokens are
// kept without being refreshed by a new login.
const DefaultSessionTTL = 24 * time.Hour

// tokenRecord is the persisted shape of an authenticated session. It is
// internal to the store; token values leave redis only through Session
// snapshots.
type tokenRecord struct {
	AccessToken string    `json:"access_token"`
	IDToken     string    `json:"id_token,omitempty"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

// RedisStore is a redis-backed implementation of Store. The pending flow
// state and the token set live under separate keys so each carries its own
// TTL; the single-use consume of the pending state is a GETDEL, which makes
// a replayed callback fail deterministically without any extra locking.
type RedisStore struct {
	client     *redis.Client
	sessionTTL time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redis with the given URL
// (redis://[user:pass@]host:port[/db]) and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	const op = "session.NewRedisStore"
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse redis URL: %w", op, err)
	}

	client := redis.NewClient(opts)

	// test the connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return &RedisStore{
		client:     client,
		sessionTTL: DefaultSessionTTL,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func stateKey(sessionID string) string {
	return fmt.Sprintf("oauth:state:%s", sessionID)
}

func tokenKey(sessionID string) string {
	return fmt.Sprintf("oauth:session:%s", sessionID)
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	const op = "session.(RedisStore).Get"
	snapshot := &Session{ID: sessionID}

	state, err := s.client.Get(ctx, stateKey(sessionID)).Result()
	switch {
	case err == nil:
		snapshot.PendingState = state
	case errors.Is(err, redis.Nil):
	default:
		return nil, fmt.Errorf("%s: failed to get pending state: %w", op, err)
	}

	data, err := s.client.Get(ctx, tokenKey(sessionID)).Bytes()
	switch {
	case err == nil:
		var rec tokenRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%s: failed to unmarshal session: %w", op, err)
		}
		snapshot.AccessToken = rec.AccessToken
		snapshot.IDToken = rec.IDToken
		snapshot.TokenType = rec.TokenType
		snapshot.Expiry = rec.Expiry
	case errors.Is(err, redis.Nil):
	default:
		return nil, fmt.Errorf("%s: failed to get session: %w", op, err)
	}

	return snapshot, nil
}

func (s *RedisStore) BeginFlow(ctx context.Context, sessionID string, state *oidc.State) error {
	const op = "session.(RedisStore).BeginFlow"
	if state == nil {
		return fmt.Errorf("%s: state is nil: %w", op, oidc.ErrNilParameter)
	}
	ttl := time.Until(state.Expiration())
	if ttl <= 0 {
		return fmt.Errorf("%s: %w", op, oidc.ErrExpiredState)
	}

	// the state key carries the flow's validity window as its TTL; any
	// prior pending value is overwritten and any stored tokens dropped
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, stateKey(sessionID), state.ID(), ttl)
		pipe.Del(ctx, tokenKey(sessionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: failed to save pending state: %w", op, err)
	}
	return nil
}

func (s *RedisStore) ConsumeState(ctx context.Context, sessionID string) (string, error) {
	const op = "session.(RedisStore).ConsumeState"
	state, err := s.client.GetDel(ctx, stateKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s: %w", op, ErrNoPendingState)
	}
	if err != nil {
		return "", fmt.Errorf("%s: failed to consume pending state: %w", op, err)
	}
	return state, nil
}

func (s *RedisStore) SetTokens(ctx context.Context, sessionID string, t *oidc.Token) error {
	const op = "session.(RedisStore).SetTokens"
	if t == nil {
		return fmt.Errorf("%s: token is nil: %w", op, oidc.ErrNilParameter)
	}
	data, err := json.Marshal(tokenRecord{
		AccessToken: t.AccessToken(),
		IDToken:     t.IDToken(),
		TokenType:   t.TokenType(),
		Expiry:      t.Expiry(),
	})
	if err != nil {
		return fmt.Errorf("%s: failed to marshal session: %w", op, err)
	}
	// any leftover pending state goes with the same write, keeping the
	// authenticated shape (tokens present, pending cleared) whole
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(sessionID), data, s.sessionTTL)
		pipe.Del(ctx, stateKey(sessionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: failed to save session: %w", op, err)
	}
	return nil
}

func (s *RedisStore) Destroy(ctx context.Context, sessionID string) error {
	const op = "session.(RedisStore).Destroy"
	if err := s.client.Del(ctx, stateKey(sessionID), tokenKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete session: %w", op, err)
	}
	return nil
}
