package oidc

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// idBytes is the number of random bytes drawn for an ID (256 bits of
// entropy before encoding).
const idBytes = 32

// NewID generates an opaque ID with an optional prefix. The ID is suitable
// for a one-time flow State value: it is drawn from a cryptographically
// secure source and base64url encoded.
func NewID(optionalPrefix string) (string, error) {
	const op = "oidc.NewID"
	data, err := uuid.GenerateRandomBytes(idBytes)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, ErrIDGeneratorFailed)
	}
	id := base64.RawURLEncoding.EncodeToString(data)
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
