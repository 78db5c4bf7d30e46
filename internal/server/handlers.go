package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/authlabs/go-oauth-demo/oidc"
	"github.com/authlabs/go-oauth-demo/oidc/callback"
)

// UserClaims are the identity claims surfaced from the userinfo endpoint.
type UserClaims struct {
	Sub           string `json:"sub"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, out interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Error("error writing response", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if sid, err := s.resolveSessionID(r); err == nil {
		if sess, err := s.store.Get(r.Context(), sid); err == nil {
			authenticated = sess.Authenticated()
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "OAuth 2.0 authorization code flow demo",
		"authenticated": authenticated,
		"login":         "/login",
	})
}

func (s *Server) handleNotConfigured(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"error": "provider is not configured",
	})
}

// handleLogin begins an authorization code flow: it binds a fresh one-time
// state value to the browser session and redirects the user to the
// provider's authorization endpoint. No call to the provider happens here;
// the browser performs the navigation.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil || !s.cfg.Configured() {
		s.handleNotConfigured(w, r)
		return
	}

	sid, err := s.ensureSessionID(w, r)
	if err != nil {
		s.logger.Error("unable to establish a session", "error", err)
		http.Error(w, "unable to establish a session", http.StatusInternalServerError)
		return
	}

	state, err := oidc.NewState(s.cfg.StateTTL)
	if err != nil {
		s.logger.Error("unable to generate flow state", "error", err)
		http.Error(w, "unable to begin authorization", http.StatusInternalServerError)
		return
	}
	if err := s.store.BeginFlow(r.Context(), sid, state); err != nil {
		s.logger.Error("unable to store flow state", "error", err)
		http.Error(w, "unable to begin authorization", http.StatusInternalServerError)
		return
	}

	authURL, err := s.provider.AuthURL(r.Context(), state)
	if err != nil {
		s.logger.Error("unable to build authorization URL", "error", err)
		http.Error(w, "unable to begin authorization", http.StatusInternalServerError)
		return
	}

	s.logger.Info("redirecting to provider for authentication")
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) callbackSuccessFn() callback.SuccessResponseFunc {
	return func(sessionID string, t *oidc.Token, w http.ResponseWriter, req *http.Request) {
		s.logger.Info("token exchange succeeded",
			"access_token", oidc.Truncated(t.AccessToken()),
			"id_token", oidc.Truncated(t.IDToken()),
			"token_type", t.TokenType(),
		)
		http.Redirect(w, req, "/?success=true", http.StatusFound)
	}
}

// callbackErrorFn maps each failure kind to a distinct response so a client
// can decide whether to restart the flow or show a generic failure. Every
// flow error is terminal: the user restarts from /login.
func (s *Server) callbackErrorFn() callback.ErrorResponseFunc {
	return func(sessionID string, respErr *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		switch {
		case errors.Is(e, oidc.ErrInvalidCSRFState):
			s.logger.Error("state mismatch, possible CSRF attack")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		case errors.Is(e, oidc.ErrAuthorizationDenied):
			s.logger.Error("authorization denied", "provider_error", respErr.String())
			http.Error(w, "Authorization was denied", http.StatusBadRequest)
		case errors.Is(e, oidc.ErrTokenExchangeFailed):
			s.logger.Error("token exchange failed", "error", e)
			http.Error(w, "Token exchange failed", http.StatusBadGateway)
		default:
			s.logger.Error("callback failed", "error", e)
			http.Error(w, "Authentication failed", http.StatusInternalServerError)
		}
	}
}

// handleUserInfo fetches the identity claims for the logged-in session with
// its stored bearer access token. Token values appear in the response only
// in truncated form.
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		s.handleNotConfigured(w, r)
		return
	}

	sid, err := s.resolveSessionID(r)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		return
	}
	sess, err := s.store.Get(r.Context(), sid)
	if err != nil {
		s.logger.Error("unable to read session", "error", err)
		http.Error(w, "unable to read session", http.StatusInternalServerError)
		return
	}
	if !sess.Authenticated() {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		return
	}

	var claims UserClaims
	if err := s.provider.UserInfo(r.Context(), sess.AccessToken, &claims); err != nil {
		// the session's tokens are left untouched; the caller decides
		// whether to retry or re-authenticate
		s.logger.Error("failed to fetch user info", "error", err)
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to fetch user info"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"userInfo": claims,
		"tokens": map[string]string{
			"access_token": oidc.Truncated(sess.AccessToken),
			"id_token":     oidc.Truncated(sess.IDToken),
		},
	})
}

// handleLogout destroys the session: local state removal is guaranteed,
// provider-side logout is best effort. When a provider logout URL can be
// built the browser is sent there; the id_token hint is simply omitted when
// the session held none.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var idToken string

	sid, err := s.resolveSessionID(r)
	if err == nil {
		var result *multierror.Error
		if sess, err := s.store.Get(r.Context(), sid); err == nil {
			idToken = sess.IDToken
		} else {
			result = multierror.Append(result, err)
		}
		if err := s.store.Destroy(r.Context(), sid); err != nil {
			result = multierror.Append(result, err)
		}
		if err := s.clearSessionCookie(w, r); err != nil {
			result = multierror.Append(result, err)
		}
		if err := result.ErrorOrNil(); err != nil {
			// reported, but logout is still acknowledged to the caller
			s.logger.Error("error destroying session", "error", err)
		} else {
			s.logger.Info("session destroyed")
		}
	}

	if s.provider != nil {
		logoutURL, err := s.provider.LogoutURL(idToken, s.cfg.PostLogoutRedirectURI)
		if err == nil {
			http.Redirect(w, r, logoutURL, http.StatusFound)
			return
		}
		s.logger.Error("unable to build provider logout URL", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	domain := s.cfg.OktaDomain
	if domain == "" {
		domain = "NOT_CONFIGURED"
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "OK",
		"configured":  s.cfg.Configured(),
		"okta_domain": domain,
	})
}
