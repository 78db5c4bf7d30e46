package oauthdemo_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/authlabs/go-oauth-demo/oidc"
	"github.com/authlabs/go-oauth-demo/oidc/callback"
	"github.com/authlabs/go-oauth-demo/session"
)

func Example_authorizationCodeFlow() {
	ctx := context.Background()

	// Create a new Config
	pc, err := oidc.NewConfig(
		"https://your-org.okta.com/oauth2/default",
		"your_client_id",
		"your_client_secret",
		"http://localhost:3000/callback",
	)
	if err != nil {
		// handle error
	}

	// Create a provider
	p, err := oidc.NewProvider(pc)
	if err != nil {
		// handle error
	}
	defer p.Done()

	// Sessions carry the one-time flow state and, after a successful
	// callback, the token set.
	store := session.NewInmemStore()

	// Begin a user's authentication attempt: bind a fresh state to their
	// session and send their browser to the authorization URL.
	loginHandler := func(w http.ResponseWriter, r *http.Request) {
		state, err := oidc.NewState(10 * time.Minute)
		if err != nil {
			// handle error
		}
		if err := store.BeginFlow(r.Context(), "the-session-id", state); err != nil {
			// handle error
		}
		authURL, err := p.AuthURL(r.Context(), state)
		if err != nil {
			// handle error
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
	http.HandleFunc("/login", loginHandler)

	// Create a http.Handler for the provider's authentication response
	// redirects; it checks the returned state against the session's pending
	// state and exchanges the authorization code for the token set.
	sessionIDFn := func(req *http.Request) (string, error) {
		return "the-session-id", nil // typically read from a session cookie
	}
	successFn := func(sessionID string, t *oidc.Token, w http.ResponseWriter, req *http.Request) {
		// Get the user's claims via the provider's UserInfo endpoint
		var infoClaims map[string]interface{}
		if err := p.UserInfo(req.Context(), t.AccessToken(), &infoClaims); err != nil {
			// handle error
		}
		enc := json.NewEncoder(w)
		if err := enc.Encode(infoClaims); err != nil {
			// handle error
		}
	}
	errorFn := func(sessionID string, r *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
	}
	callbackHandler, err := callback.AuthCode(ctx, p, sessionIDFn, store, successFn, errorFn)
	if err != nil {
		// handle error
	}
	http.HandleFunc("/callback", callbackHandler)

	fmt.Println("open /login to kick-off authentication")
}
