package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrNilParameter        = errors.New("nil parameter")
	ErrInvalidCACert       = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed   = errors.New("id generation failed")
	ErrExpiredState        = errors.New("state is expired")
	ErrInvalidCSRFState    = errors.New("callback state does not match the pending flow state")
	ErrAuthorizationDenied = errors.New("authorization was denied by the provider or the user")
	ErrTokenExchangeFailed = errors.New("authorization code exchange failed")
	ErrUnauthenticated     = errors.New("no access token is available")
	ErrUserInfoFailed      = errors.New("user info request failed")
	ErrNotFound            = errors.New("not found")
)
