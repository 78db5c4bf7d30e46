package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// RedactedToken is the redacted string or json for a token value.
const RedactedToken = "[REDACTED: token]"

// Token represents the immutable token set returned atomically by a
// successful authorization code exchange: an access token, an optional
// id_token, the token type and the access token expiry. A Token is never
// partially populated: either the exchange succeeded and the set is whole,
// or there is no Token at all.
//
// Neither String() nor MarshalJSON() ever reveal token values; use
// Truncated() when a debug log needs to show that a token was received.
type Token struct {
	accessToken string
	idToken     string
	tokenType   string
	expiry      time.Time
}

// NewToken creates a Token from a successful oauth2 exchange result. The
// id_token is optional: not every provider response includes one.
func NewToken(t *oauth2.Token) (*Token, error) {
	const op = "oidc.NewToken"
	if t == nil {
		return nil, fmt.Errorf("%s: oauth2 token is nil: %w", op, ErrNilParameter)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%s: access_token is empty: %w", op, ErrInvalidParameter)
	}
	idToken, _ := t.Extra("id_token").(string)
	return &Token{
		accessToken: t.AccessToken,
		idToken:     idToken,
		tokenType:   t.Type(),
		expiry:      t.Expiry,
	}, nil
}

func (t *Token) AccessToken() string { return t.accessToken }
func (t *Token) IDToken() string     { return t.idToken }
func (t *Token) TokenType() string   { return t.tokenType }
func (t *Token) Expiry() time.Time   { return t.expiry }

const defaultTokenExpirySkew = 10 * time.Second

// IsExpired returns true if the access token has expired. Supports the
// WithExpirySkew option and if none is provided it will use a default skew
// of 10s. A zero expiry means the token never expires.
func (t *Token) IsExpired(opt ...Option) bool {
	if t.expiry.IsZero() {
		return false
	}
	opts := getTokenOpts(opt...)
	return t.expiry.Round(0).Before(time.Now().Add(opts.withExpirySkew))
}

// Valid reports whether the token set holds a usable access token.
func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	if t.accessToken == "" {
		return false
	}
	return !t.IsExpired()
}

// String will redact the token values.
func (t *Token) String() string {
	return RedactedToken
}

// MarshalJSON will redact the token values.
func (t *Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedToken)
}

// truncatedLen is how much of a token value Truncated reveals.
const truncatedLen = 20

// Truncated returns a safely truncated form of a token value, suitable for
// debug output ("eyJraWQiOiJr...").  Values at or under the truncation
// length are fully redacted since truncation would not protect them.
func Truncated(tokenValue string) string {
	if tokenValue == "" {
		return "N/A"
	}
	if len(tokenValue) <= truncatedLen {
		return RedactedToken
	}
	return tokenValue[:truncatedLen] + "..."
}

// tokenOptions is the set of available options for Token functions
type tokenOptions struct {
	withExpirySkew time.Duration
}

// tokenDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: defaultTokenExpirySkew,
	}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed
// in.
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
