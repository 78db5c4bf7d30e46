package callback_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authlabs/go-oauth-demo/oidc"
	"github.com/authlabs/go-oauth-demo/oidc/callback"
	"github.com/authlabs/go-oauth-demo/session"
)

type testCallbackResult struct {
	sessionID string
	token     *oidc.Token
	authenErr *callback.AuthenErrorResponse
	err       error
}

// testCallbackSetup wires a TestProvider, a real Provider and an in-memory
// session store into an AuthCode handler, recording whichever response func
// fires.
type testCallbackSetup struct {
	tp      *oidc.TestProvider
	p       *oidc.Provider
	store   *session.InmemStore
	handler http.HandlerFunc
	result  *testCallbackResult
}

func newTestCallbackSetup(t *testing.T) *testCallbackSetup {
	t.Helper()
	require := require.New(t)

	tp := oidc.StartTestProvider(t)
	tp.SetClientCreds("test-client-id", "test-client-secret")
	tp.SetExpectedAuthCode("test-code")

	c, err := oidc.NewConfig(
		tp.Addr(),
		"test-client-id",
		"test-client-secret",
		"http://localhost:3000/callback",
		oidc.WithProviderCA(tp.CACert()),
	)
	require.NoError(err)
	p, err := oidc.NewProvider(c)
	require.NoError(err)
	t.Cleanup(p.Done)

	s := &testCallbackSetup{
		tp:     tp,
		p:      p,
		store:  session.NewInmemStore(),
		result: &testCallbackResult{},
	}

	sessionIDFn := func(req *http.Request) (string, error) {
		return req.Header.Get("x-test-session-id"), nil
	}
	successFn := func(sessionID string, t *oidc.Token, w http.ResponseWriter, req *http.Request) {
		s.result.sessionID = sessionID
		s.result.token = t
		w.WriteHeader(http.StatusOK)
	}
	errorFn := func(sessionID string, r *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		s.result.sessionID = sessionID
		s.result.authenErr = r
		s.result.err = e
		w.WriteHeader(http.StatusUnauthorized)
	}
	s.handler, err = callback.AuthCode(context.Background(), p, sessionIDFn, s.store, successFn, errorFn)
	require.NoError(err)
	return s
}

// beginFlow stores a fresh pending state for the session and returns its id.
func (s *testCallbackSetup) beginFlow(t *testing.T, sessionID string) string {
	t.Helper()
	state, err := oidc.NewState(2 * time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.store.BeginFlow(context.Background(), sessionID, state))
	return state.ID()
}

// callback performs a GET against the handler the way a browser redirect
// would, with the given query parameters.
func (s *testCallbackSetup) callback(t *testing.T, sessionID string, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/callback?"+params.Encode(), nil)
	req.Header.Set("x-test-session-id", sessionID)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestAuthCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success-makes-the-session-authenticated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newTestCallbackSetup(t)
		stateID := s.beginFlow(t, "sid-1")

		rr := s.callback(t, "sid-1", url.Values{"state": {stateID}, "code": {"test-code"}})
		require.Equal(http.StatusOK, rr.Code)
		require.NotNil(s.result.token)
		assert.Equal("sid-1", s.result.sessionID)
		assert.True(s.result.token.Valid())

		sess, err := s.store.Get(ctx, "sid-1")
		require.NoError(err)
		assert.True(sess.Authenticated())
		assert.Empty(sess.PendingState)
		assert.Equal(s.tp.IssuedAccessToken(), sess.AccessToken)
	})
	t.Run("state-mismatch-is-rejected-without-an-exchange", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newTestCallbackSetup(t)
		s.beginFlow(t, "sid-1")

		rr := s.callback(t, "sid-1", url.Values{"state": {"not-the-state"}, "code": {"test-code"}})
		require.Equal(http.StatusUnauthorized, rr.Code)
		assert.ErrorIs(s.result.err, oidc.ErrInvalidCSRFState)
		assert.Equal(0, s.tp.ExchangeCount())

		sess, err := s.store.Get(ctx, "sid-1")
		require.NoError(err)
		assert.False(sess.Authenticated())
	})
	t.Run("a-checked-state-is-never-reusable", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newTestCallbackSetup(t)
		stateID := s.beginFlow(t, "sid-1")

		rr := s.callback(t, "sid-1", url.Values{"state": {stateID}, "code": {"test-code"}})
		require.Equal(http.StatusOK, rr.Code)

		// replaying the same redirect must fail: consuming the state the
		// first time removed it.
		rr = s.callback(t, "sid-1", url.Values{"state": {stateID}, "code": {"test-code"}})
		assert.Equal(http.StatusUnauthorized, rr.Code)
		assert.ErrorIs(s.result.err, oidc.ErrInvalidCSRFState)
		assert.Equal(1, s.tp.ExchangeCount())
	})
	t.Run("mismatch-also-invalidates-the-pending-state", func(t *testing.T) {
		assert := assert.New(t)
		s := newTestCallbackSetup(t)
		stateID := s.beginFlow(t, "sid-1")

		rr := s.callback(t, "sid-1", url.Values{"state": {"not-the-state"}, "code": {"test-code"}})
		assert.Equal(http.StatusUnauthorized, rr.Code)

		// even the correct state no longer works after a failed check.
		rr = s.callback(t, "sid-1", url.Values{"state": {stateID}, "code": {"test-code"}})
		assert.Equal(http.StatusUnauthorized, rr.Code)
		assert.ErrorIs(s.result.err, oidc.ErrInvalidCSRFState)
		assert.Equal(0, s.tp.ExchangeCount())
	})
	t.Run("no-pending-flow", func(t *testing.T) {
		assert := assert.New(t)
		s := newTestCallbackSetup(t)

		rr := s.callback(t, "sid-1", url.Values{"state": {"anything"}, "code": {"test-code"}})
		assert.Equal(http.StatusUnauthorized, rr.Code)
		assert.ErrorIs(s.result.err, oidc.ErrInvalidCSRFState)
	})
	t.Run("provider-error-parameter", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newTestCallbackSetup(t)
		stateID := s.beginFlow(t, "sid-1")

		rr := s.callback(t, "sid-1", url.Values{
			"state":             {stateID},
			"error":             {"access_denied"},
			"error_description": {"the user canceled"},
		})
		require.Equal(http.StatusUnauthorized, rr.Code)
		assert.ErrorIs(s.result.err, oidc.ErrAuthorizationDenied)
		require.NotNil(s.result.authenErr)
		assert.Equal("access_denied", s.result.authenErr.Error)
		assert.Equal("the user canceled", s.result.authenErr.Description)
		assert.Equal(0, s.tp.ExchangeCount())
	})
	t.Run("missing-code", func(t *testing.T) {
		assert := assert.New(t)
		s := newTestCallbackSetup(t)
		stateID := s.beginFlow(t, "sid-1")

		rr := s.callback(t, "sid-1", url.Values{"state": {stateID}})
		assert.Equal(http.StatusUnauthorized, rr.Code)
		assert.ErrorIs(s.result.err, oidc.ErrAuthorizationDenied)
		assert.Equal(0, s.tp.ExchangeCount())
	})
	t.Run("rejected-exchange-leaves-the-session-unauthenticated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newTestCallbackSetup(t)
		stateID := s.beginFlow(t, "sid-1")
		s.tp.SetTokenError("server_error", "boom")

		rr := s.callback(t, "sid-1", url.Values{"state": {stateID}, "code": {"test-code"}})
		require.Equal(http.StatusUnauthorized, rr.Code)
		assert.ErrorIs(s.result.err, oidc.ErrTokenExchangeFailed)

		sess, err := s.store.Get(ctx, "sid-1")
		require.NoError(err)
		assert.False(sess.Authenticated())
	})
}

func TestAuthCode_parameters(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	ctx := context.Background()

	s := newTestCallbackSetup(t)
	sessionIDFn := func(req *http.Request) (string, error) { return "sid", nil }
	sFn := func(string, *oidc.Token, http.ResponseWriter, *http.Request) {}
	eFn := func(string, *callback.AuthenErrorResponse, error, http.ResponseWriter, *http.Request) {}

	_, err := callback.AuthCode(ctx, nil, sessionIDFn, s.store, sFn, eFn)
	assert.ErrorIs(err, oidc.ErrNilParameter)
	_, err = callback.AuthCode(ctx, s.p, nil, s.store, sFn, eFn)
	assert.ErrorIs(err, oidc.ErrNilParameter)
	_, err = callback.AuthCode(ctx, s.p, sessionIDFn, nil, sFn, eFn)
	assert.ErrorIs(err, oidc.ErrNilParameter)
	_, err = callback.AuthCode(ctx, s.p, sessionIDFn, s.store, nil, eFn)
	assert.ErrorIs(err, oidc.ErrNilParameter)
	_, err = callback.AuthCode(ctx, s.p, sessionIDFn, s.store, sFn, nil)
	assert.ErrorIs(err, oidc.ErrNilParameter)
}
