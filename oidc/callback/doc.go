/*
callback is a package that provides a callback (in the form of an
http.HandlerFunc) for handling an OIDC provider's response to an
authorization code flow authentication attempt.

The redirect back from the provider is an untrusted input channel: every
query parameter is treated as adversarial. The handler validates the
returned state against the session's pending flow state (consuming it so it
can never be checked twice), rejects denied or code-less callbacks before
any exchange is attempted, and only then drives the code-for-token exchange,
applying the resulting token set to the session atomically.
*/
package callback
