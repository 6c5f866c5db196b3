package domain

import "errors"

// Authentication failure causes. They are attached to AppErrors at the
// service boundary and stay reachable with errors.Is, but clients only see
// the shared generic message.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrSessionRevoked     = errors.New("session revoked")
)

// MsgLogInAgain is the single client-facing message for credential and
// session failures.
const MsgLogInAgain = "please log in again"
