// Package server wires the authorization code flow into a small
// demonstration HTTP server: it issues the authorization redirect, receives
// the provider's callback, serves the userinfo claims for the logged-in
// session and handles logout.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"

	"github.com/authlabs/go-oauth-demo/internal/config"
	"github.com/authlabs/go-oauth-demo/oidc"
	"github.com/authlabs/go-oauth-demo/oidc/callback"
	"github.com/authlabs/go-oauth-demo/session"
)

const (
	sessionCookieName = "oauth-demo"
	sessionIDKey      = "sid"
)

type Server struct {
	cfg      *config.Config
	logger   hclog.Logger
	provider *oidc.Provider
	store    session.Store
	cookies  *sessions.CookieStore
	router   chi.Router
}

// New builds the server. The provider may be nil when the provider settings
// are absent; the server then runs degraded: it answers its health endpoint
// and refuses to begin flows.
func New(cfg *config.Config, logger hclog.Logger, provider *oidc.Provider, store session.Store) (*Server, error) {
	const op = "server.New"
	if cfg == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, oidc.ErrNilParameter)
	}
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, oidc.ErrNilParameter)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	cookies := sessions.NewCookieStore([]byte(cfg.CookieSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		store:    store,
		cookies:  cookies,
	}
	if err := s.initRoutes(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/login", s.handleLogin)
	r.Get("/api/userinfo", s.handleUserInfo)
	r.Get("/logout", s.handleLogout)
	r.Get("/api/health", s.handleHealth)

	if s.provider != nil {
		cb, err := callback.AuthCode(
			context.Background(),
			s.provider,
			s.resolveSessionID,
			s.store,
			s.callbackSuccessFn(),
			s.callbackErrorFn(),
		)
		if err != nil {
			return fmt.Errorf("unable to create callback handler: %w", err)
		}
		r.Get("/callback", cb)
	} else {
		r.Get("/callback", s.handleNotConfigured)
	}

	s.router = r
	return nil
}

// requestLogger logs one line per request without ever touching query
// parameters: callback URLs carry codes and state values that must stay out
// of the logs.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ensureSessionID returns the browser's opaque session identifier, minting
// one and setting the signed cookie when the browser doesn't have a session
// yet.
func (s *Server) ensureSessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	const op = "server.ensureSessionID"
	cs, _ := s.cookies.Get(r, sessionCookieName) // a bad cookie decodes as a new session
	if sid, ok := cs.Values[sessionIDKey].(string); ok && sid != "" {
		return sid, nil
	}
	sid, err := oidc.NewID("sid")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	cs.Values[sessionIDKey] = sid
	if err := cs.Save(r, w); err != nil {
		return "", fmt.Errorf("%s: unable to save session cookie: %w", op, err)
	}
	return sid, nil
}

// resolveSessionID returns the browser's existing session identifier
// without ever creating one; a request without a session has no flow state
// to act on. It never reads the identifier from query parameters.
func (s *Server) resolveSessionID(r *http.Request) (string, error) {
	const op = "server.resolveSessionID"
	cs, _ := s.cookies.Get(r, sessionCookieName)
	sid, ok := cs.Values[sessionIDKey].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("%s: no session: %w", op, oidc.ErrNotFound)
	}
	return sid, nil
}

// clearSessionCookie expires the browser's session cookie.
func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) error {
	cs, _ := s.cookies.Get(r, sessionCookieName)
	cs.Options.MaxAge = -1
	return cs.Save(r, w)
}
