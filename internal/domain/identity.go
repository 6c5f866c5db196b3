package domain

import (
	"strings"
	"time"
)

// Identity is one principal: a unique handle, a hashed secret, a role and
// the single refresh anchor that ties it to its current session.
type Identity struct {
	ID           string    `json:"id"`
	Handle       string    `json:"handle"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// RefreshAnchor is the jti of the one refresh token that is currently
	// valid, or nil when no session is open.
	RefreshAnchor *string `json:"-"`
}

// PublicIdentity is what clients are allowed to see of an Identity.
type PublicIdentity struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Public projects the identity onto its client-visible fields.
func (i *Identity) Public() PublicIdentity {
	return PublicIdentity{
		ID:          i.ID,
		Handle:      i.Handle,
		DisplayName: i.DisplayName,
		Role:        i.Role,
		CreatedAt:   i.CreatedAt,
	}
}

// AnchorMatches reports whether jti is the identity's current anchor. A nil
// anchor matches nothing.
func (i *Identity) AnchorMatches(jti string) bool {
	return i.RefreshAnchor != nil && jti != "" && *i.RefreshAnchor == jti
}

// NormalizeHandle lowercases and trims a contact handle. Every lookup and
// write goes through it so "A@B.com " and "a@b.com" are one identity.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// NormalizeDisplayName trims and lowercases a display name.
func NormalizeDisplayName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// TokenPair holds a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Session is the result of a login or refresh.
type Session struct {
	Identity PublicIdentity `json:"user"`
	Tokens   TokenPair      `json:"tokens"`
}
