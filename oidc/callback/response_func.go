package callback

import (
	"fmt"
	"net/http"

	"github.com/authlabs/go-oauth-demo/oidc"
)

// SuccessResponseFunc is used by AuthCode to create an http response when
// the callback is successful.
//
// The sessionID parameter identifies the browser session whose flow just
// completed and the oidc.Token is the result of a successful token exchange
// with the provider. The function should use the http.ResponseWriter to
// send back whatever content (headers, html, JSON, etc) it wishes to the
// client that originated the flow.
type SuccessResponseFunc func(sessionID string, t *oidc.Token, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by AuthCode to create an http response when the
// callback fails.
//
// The function gets parameters for the provider's authentication error
// response and/or the callback error raised while processing the request.
// The error e always wraps one of the oidc sentinel errors
// (oidc.ErrInvalidCSRFState, oidc.ErrAuthorizationDenied,
// oidc.ErrTokenExchangeFailed, ...) so implementations can map it to a
// distinct user-facing message category with errors.Is.
type ErrorResponseFunc func(sessionID string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents an OAuth2 authentication error response.
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string
	Description string
	URI         string
}

func (r *AuthenErrorResponse) String() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", r.Error, r.Description)
}
