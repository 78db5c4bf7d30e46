package callback

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/authlabs/go-oauth-demo/oidc"
)

// SessionIDFunc resolves the opaque session identifier for an inbound
// callback request (typically from a session cookie). Implementations must
// not derive the identifier from any query parameter: the redirect's
// parameters are untrusted input.
type SessionIDFunc func(req *http.Request) (string, error)

// SessionWriter defines the session store operations AuthCode needs. The
// store owns all session mutation and must provide per-key atomicity:
// ConsumeState invalidates the pending flow state as it reads it, so a
// second (replayed) callback for the same session deterministically finds
// no pending state, and SetTokens applies a token set in one step.
// Implementations must be concurrently safe, since the writer will be used
// within a concurrent http.Handler.
type SessionWriter interface {
	// ConsumeState returns the session's pending flow state, removing it
	// so it can never be checked twice.
	ConsumeState(ctx context.Context, sessionID string) (string, error)

	// SetTokens makes the session authenticated with the given token set.
	SetTokens(ctx context.Context, sessionID string, t *oidc.Token) error
}

// AuthCode creates an authorization code callback handler. The two checks
// required by the flow run strictly in order: the returned state is
// validated against (and consumes) the session's pending state first, and
// only then is the code exchanged. A callback carrying a provider error or
// no code at all is rejected before any exchange is attempted.
//
// The SuccessResponseFunc is used to create a response when the callback is
// successful. The ErrorResponseFunc is used to create a response when the
// callback fails.
func AuthCode(ctx context.Context, p *oidc.Provider, sessionID SessionIDFunc, sw SessionWriter, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	if p == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	}
	if sessionID == nil {
		return nil, fmt.Errorf("%s: session id func is nil: %w", op, oidc.ErrNilParameter)
	}
	if sw == nil {
		return nil, fmt.Errorf("%s: session writer is nil: %w", op, oidc.ErrNilParameter)
	}
	if sFn == nil {
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrNilParameter)
	}
	if eFn == nil {
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrNilParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		sid, err := sessionID(req)
		if err != nil {
			eFn("", nil, fmt.Errorf("%s: unable to resolve session: %w", op, err), w, req)
			return
		}

		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found.
		reqState := req.FormValue("state")

		// The pending state is invalidated here whether or not the rest of
		// the callback succeeds: once checked it must never be reusable
		// for a second callback attempt.
		pendingState, err := sw.ConsumeState(ctx, sid)
		if err != nil {
			eFn(sid, nil, fmt.Errorf("%s: no authorization flow is pending for the session: %w", op, oidc.ErrInvalidCSRFState), w, req)
			return
		}
		if reqState == "" || subtle.ConstantTimeCompare([]byte(reqState), []byte(pendingState)) != 1 {
			eFn(sid, nil, fmt.Errorf("%s: %w", op, oidc.ErrInvalidCSRFState), w, req)
			return
		}

		if reqError := req.FormValue("error"); reqError != "" {
			respErr := &AuthenErrorResponse{
				Error:       reqError,
				Description: req.FormValue("error_description"),
				URI:         req.FormValue("error_uri"),
			}
			eFn(sid, respErr, fmt.Errorf("%s: %w", op, oidc.ErrAuthorizationDenied), w, req)
			return
		}
		reqCode := req.FormValue("code")
		if reqCode == "" {
			eFn(sid, nil, fmt.Errorf("%s: callback did not include an authorization code: %w", op, oidc.ErrAuthorizationDenied), w, req)
			return
		}

		responseToken, err := p.Exchange(ctx, pendingState, reqState, reqCode)
		if err != nil {
			eFn(sid, nil, fmt.Errorf("%s: unable to exchange authorization code: %w", op, err), w, req)
			return
		}
		if err := sw.SetTokens(ctx, sid, responseToken); err != nil {
			eFn(sid, nil, fmt.Errorf("%s: unable to update session with the token set: %w", op, err), w, req)
			return
		}
		sFn(sid, responseToken, w, req)
	}, nil
}
