// Package config loads the demo server's configuration from the
// environment into one immutable value that is handed to each component's
// constructor; nothing reads ambient global state after startup.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// OktaDomain is the provider domain, e.g. dev-123456.okta.com. The
	// issuer is derived from it (the org's default authorization server).
	OktaDomain string `env:"OKTA_DOMAIN"`

	ClientID     string `env:"OKTA_CLIENT_ID"`
	ClientSecret string `env:"OKTA_CLIENT_SECRET"`

	// RedirectURI must match, byte for byte, the redirect URI registered
	// with the provider.
	RedirectURI string `env:"REDIRECT_URI, default=http://localhost:3000/callback"`

	// PostLogoutRedirectURI is where the provider sends the browser after
	// a provider-side logout.
	PostLogoutRedirectURI string `env:"POST_LOGOUT_REDIRECT_URI, default=http://localhost:3000"`

	ListenAddr string `env:"LISTEN_ADDR, default=0.0.0.0:3000"`

	// CookieSecret signs the session id cookie.
	CookieSecret string `env:"SESSION_SECRET, default=dev-secret-change-in-production"`

	// RedisURL enables the redis session store when set; otherwise
	// sessions are held in process memory.
	RedisURL string `env:"REDIS_URL"`

	// StateTTL bounds how long a pending authorization flow stays valid
	// between the authorization request and its callback.
	StateTTL time.Duration `env:"STATE_TTL, default=10m"`

	// ProviderCA is an optional CA cert PEM for requests to the provider.
	ProviderCA string `env:"PROVIDER_CA_PEM"`
}

// Load reads the configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	const op = "config.Load"
	var c Config
	if err := envconfig.Process(ctx, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

// Configured reports whether the provider settings required for the flow
// are all present. It is the degraded-mode signal: a server missing any of
// them still starts, answers its health endpoint and refuses to begin
// flows. It never reveals the values themselves.
func (c *Config) Configured() bool {
	return c.OktaDomain != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Issuer returns the issuer URL of the org's default authorization server;
// the authorize/token/userinfo/logout endpoints all live under it.
func (c *Config) Issuer() string {
	return fmt.Sprintf("https://%s/oauth2/default", c.OktaDomain)
}

// String describes the configuration without revealing secrets.
func (c *Config) String() string {
	domain := c.OktaDomain
	if domain == "" {
		domain = "NOT_CONFIGURED"
	}
	return fmt.Sprintf("Config{OktaDomain: %s, RedirectURI: %s, ListenAddr: %s, configured: %t}",
		domain, c.RedirectURI, c.ListenAddr, c.Configured())
}
