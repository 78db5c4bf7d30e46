package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// Provider provides integration with an OIDC provider using the typical
// 3-legged authorization code flow: generating an authorization URL,
// exchanging an authorization code for a token set, fetching userinfo
// claims and building a provider logout URL.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client
	logger   hclog.Logger

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like refreshing the provider's discovery document.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities
	// running in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider for the authorization code
// flow. Initializing the provider includes making an http request to the
// provider's issuer for endpoint discovery.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with its background ctx/cancel allows
	// p.Done() to release resources when returning errors from this
	// function.
	p := &Provider{
		config:              c,
		logger:              c.Logger,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}
	if p.logger == nil {
		p.logger = hclog.NewNullLogger()
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	provider, err := oidc.NewProvider(HTTPClientContext(p.backgroundCtx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	p.provider = provider

	return p, nil
}

// Done with the provider's background resources and must be called for
// every Provider created.
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// AuthURL will generate a URL the caller can use to kick off an
// authorization code flow with the provider. The redirect URL is taken from
// the provider's config and must match, byte for byte, the redirect URI
// registered with the provider. No network call is made here; the user's
// browser performs the actual navigation.
//
// See NewState() to create a flow State whose ID() uniquely identifies the
// user's authentication attempt throughout the flow.
func (p *Provider) AuthURL(_ context.Context, s *State) (string, error) {
	const op = "oidc.(Provider).AuthURL"
	if s == nil {
		return "", fmt.Errorf("%s: state is nil: %w", op, ErrNilParameter)
	}
	if s.IsExpired() {
		return "", fmt.Errorf("%s: %w", op, ErrExpiredState)
	}
	oauth2Config := p.oauth2Config()
	p.logger.Debug("built authorization URL", "state", s.ID())
	return oauth2Config.AuthCodeURL(s.ID()), nil
}

// Exchange will request a token set from the provider's token endpoint,
// using the authorization code received in an earlier successful
// authorization response. The code and client credentials are transmitted
// as a form-encoded POST body, never as a query string.
//
// It will also validate the receivedState against the expectedState for the
// user's flow; the two are required to be equal before any exchange is
// attempted.
//
// A failed exchange is terminal: the error carries the provider's error
// code and description when available, and the caller must restart the flow
// from the authorization request. No retry is attempted.
func (p *Provider) Exchange(ctx context.Context, expectedState string, receivedState string, authorizationCode string) (*Token, error) {
	const op = "oidc.(Provider).Exchange"
	if expectedState == "" {
		return nil, fmt.Errorf("%s: expected state is empty: %w", op, ErrInvalidCSRFState)
	}
	if receivedState != expectedState {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCSRFState)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrAuthorizationDenied)
	}

	oauth2Config := p.oauth2Config()
	oauth2Token, err := oauth2Config.Exchange(HTTPClientContext(ctx, p.client), authorizationCode)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.ErrorCode != "" {
			return nil, fmt.Errorf("%s: provider rejected the exchange: %s %s: %w", op, rErr.ErrorCode, rErr.ErrorDescription, ErrTokenExchangeFailed)
		}
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, ErrTokenExchangeFailed)
	}

	t, err := NewToken(oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token from the exchange response: %w", op, err)
	}
	p.logger.Debug("exchanged authorization code",
		"access_token", Truncated(t.AccessToken()),
		"id_token", Truncated(t.IDToken()),
		"token_type", t.TokenType(),
	)
	return t, nil
}

// UserInfo gets the userinfo claims from the provider using a bearer access
// token, unmarshaling them into claims. It fails with ErrUnauthenticated,
// without making a network call, when no access token is given.
func (p *Provider) UserInfo(ctx context.Context, accessToken string, claims interface{}) error {
	const op = "oidc.(Provider).UserInfo"
	if accessToken == "" {
		return fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	userinfo, err := p.provider.UserInfo(HTTPClientContext(ctx, p.client), tokenSource)
	if err != nil {
		return fmt.Errorf("%s: provider UserInfo request failed: %w", op, ErrUserInfoFailed)
	}
	if err := userinfo.Claims(claims); err != nil {
		return fmt.Errorf("%s: failed to get UserInfo claims: %w", op, ErrUserInfoFailed)
	}
	return nil
}

// LogoutURL builds the provider's logout URL. The idTokenHint parameter is
// simply omitted when no id_token is available; that is not an error
// condition. When the provider's discovery document does not advertise an
// end_session_endpoint, a conventional "/v1/logout" path under the issuer
// is used.
func (p *Provider) LogoutURL(idTokenHint string, postLogoutRedirectURL string) (string, error) {
	const op = "oidc.(Provider).LogoutURL"
	var discoveryClaims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := p.provider.Claims(&discoveryClaims); err != nil {
		return "", fmt.Errorf("%s: unable to read provider discovery claims: %w", op, err)
	}
	endpoint := discoveryClaims.EndSessionEndpoint
	if endpoint == "" {
		endpoint = p.config.Issuer + "/v1/logout"
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%s: end session endpoint %s is invalid: %w", op, endpoint, err)
	}
	q := u.Query()
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// oauth2Config returns the oauth2 client configuration for the provider,
// with the required "openid" scope always included.
func (p *Provider) oauth2Config() oauth2.Config {
	scopes := append([]string{oidc.ScopeOpenID}, p.config.Scopes...)
	return oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       scopes,
	}
}
