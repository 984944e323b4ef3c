package domain

import (
	"context"
	"errors"
)

const KeyPrefix = "ffk_live_"

// Authenticator resolves a raw operator API key to its operator.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*Operator, error)
}

var (
	ErrMissingKey = errors.New("missing_api_key")
	ErrInvalidKey = errors.New("invalid_api_key")
)
