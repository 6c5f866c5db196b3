package token

import "errors"

// Verification failures. Callers branch on them: an expired access token
// can be refreshed, the other two cannot.
var (
	ErrExpired          = errors.New("token expired")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrMalformed        = errors.New("token malformed")
)
