/*
oidc is a package for authenticating users against an OIDC provider using the
OAuth 2.0 authorization code grant.

Primary types provided by the package:

* State: represents one authorization code flow for a user. It holds the
one-time CSRF-binding value that ties the authorization request to its
callback, along with an expiration for the flow.

* Token: represents the immutable token set returned by a successful code
exchange (access_token, optional id_token, token_type and expiry). Its
String() and MarshalJSON() never reveal token values.

* Config: provides the configuration for the flow (client ID/secret,
issuer, redirect URL, requested scopes, etc). The ClientSecret type redacts
itself in any diagnostic output.

* Provider: provides the integration with the provider: generating an
authorization URL, exchanging an authorization code for tokens, fetching
userinfo claims with a bearer access token, and building a provider logout
URL.

The oidc/callback package provides an http.HandlerFunc for the third leg of
the flow, where the provider redirects back with an authorization code and
the state is validated (exactly once) before the code is exchanged.

This package deliberately does not verify id_token signatures or refresh
tokens; the id_token is carried as an opaque credential only.
*/
package oidc
