package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authlabs/go-oauth-demo/oidc"
)

func testRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestNewRedisStore(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		store, _ := testRedisStore(t)
		require.NotNil(t, store)
	})
	t.Run("bad-url", func(t *testing.T) {
		assert := assert.New(t)
		store, err := NewRedisStore(context.Background(), "not-a-redis-url")
		assert.Nil(store)
		assert.Error(err)
	})
	t.Run("unreachable", func(t *testing.T) {
		assert := assert.New(t)
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		store, err := NewRedisStore(ctx, "redis://127.0.0.1:1")
		assert.Nil(store)
		assert.Error(err)
	})
}

func TestRedisStore_flow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pending-then-authenticated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, _ := testRedisStore(t)
		state := testState(t, 2*time.Minute)
		require.NoError(store.BeginFlow(ctx, "sid", state))

		sess, err := store.Get(ctx, "sid")
		require.NoError(err)
		assert.Equal(state.ID(), sess.PendingState)
		assert.False(sess.Authenticated())

		got, err := store.ConsumeState(ctx, "sid")
		require.NoError(err)
		assert.Equal(state.ID(), got)

		require.NoError(store.SetTokens(ctx, "sid", testToken(t)))
		sess, err = store.Get(ctx, "sid")
		require.NoError(err)
		assert.True(sess.Authenticated())
		assert.Empty(sess.PendingState)
		assert.Equal("test-access-token", sess.AccessToken)
		assert.Equal("test-id-token", sess.IDToken)
		assert.Equal("Bearer", sess.TokenType)
	})
	t.Run("consume-is-single-use", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, _ := testRedisStore(t)
		require.NoError(store.BeginFlow(ctx, "sid", testState(t, 2*time.Minute)))

		_, err := store.ConsumeState(ctx, "sid")
		require.NoError(err)
		_, err = store.ConsumeState(ctx, "sid")
		assert.ErrorIs(err, ErrNoPendingState)
	})
	t.Run("pending-state-expires-with-its-ttl", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, mr := testRedisStore(t)
		require.NoError(store.BeginFlow(ctx, "sid", testState(t, 1*time.Minute)))

		mr.FastForward(2 * time.Minute)

		_, err := store.ConsumeState(ctx, "sid")
		assert.ErrorIs(err, ErrNoPendingState)
	})
	t.Run("begin-flow-drops-stored-tokens", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, _ := testRedisStore(t)
		require.NoError(store.SetTokens(ctx, "sid", testToken(t)))
		require.NoError(store.BeginFlow(ctx, "sid", testState(t, 2*time.Minute)))

		sess, err := store.Get(ctx, "sid")
		require.NoError(err)
		assert.False(sess.Authenticated())
		assert.NotEmpty(sess.PendingState)
	})
	t.Run("set-tokens-clears-a-leftover-pending-state", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, _ := testRedisStore(t)
		require.NoError(store.BeginFlow(ctx, "sid", testState(t, 2*time.Minute)))
		require.NoError(store.SetTokens(ctx, "sid", testToken(t)))

		sess, err := store.Get(ctx, "sid")
		require.NoError(err)
		assert.Empty(sess.PendingState)
		assert.True(sess.Authenticated())
	})
	t.Run("tokens-expire-with-the-session-ttl", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, mr := testRedisStore(t)
		require.NoError(store.SetTokens(ctx, "sid", testToken(t)))

		mr.FastForward(DefaultSessionTTL + time.Minute)

		sess, err := store.Get(ctx, "sid")
		require.NoError(err)
		assert.False(sess.Authenticated())
	})
	t.Run("expired-state-is-rejected", func(t *testing.T) {
		assert := assert.New(t)
		store, _ := testRedisStore(t)
		state := testState(t, 1*time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		err := store.BeginFlow(ctx, "sid", state)
		assert.ErrorIs(err, oidc.ErrExpiredState)
	})
	t.Run("destroy-removes-both-keys", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, _ := testRedisStore(t)
		require.NoError(store.BeginFlow(ctx, "sid", testState(t, 2*time.Minute)))
		require.NoError(store.SetTokens(ctx, "sid", testToken(t)))
		require.NoError(store.Destroy(ctx, "sid"))

		sess, err := store.Get(ctx, "sid")
		require.NoError(err)
		assert.False(sess.Authenticated())
		assert.Empty(sess.PendingState)

		// destroying an absent session is not an error.
		assert.NoError(store.Destroy(ctx, "sid"))
	})
	t.Run("sessions-are-isolated-by-id", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, _ := testRedisStore(t)
		require.NoError(store.SetTokens(ctx, "sid-a", testToken(t)))

		sess, err := store.Get(ctx, "sid-b")
		require.NoError(err)
		assert.False(sess.Authenticated())
	})
}
