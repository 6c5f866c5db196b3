package http

import (
	"net/http"
	"time"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/pkg/middleware"
)

const (
	accessCookieName  = middleware.DefaultAccessCookie
	refreshCookieName = "refreshToken"

	// refreshCookiePath keeps the refresh token off every request except
	// the identity routes.
	refreshCookiePath = "/api/v1/user"
)

// CookieConfig controls the attributes of the session cookies.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

func (c CookieConfig) setSession(w http.ResponseWriter, pair domain.TokenPair) {
	http.SetCookie(w, c.cookie(accessCookieName, "/", pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, c.cookie(refreshCookieName, refreshCookiePath, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	for _, ck := range []*http.Cookie{
		c.cookie(accessCookieName, "/", "", time.Unix(0, 0)),
		c.cookie(refreshCookieName, refreshCookiePath, "", time.Unix(0, 0)),
	} {
		ck.MaxAge = -1
		http.SetCookie(w, ck)
	}
}

func (c CookieConfig) cookie(name, path, value string, expires time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
	if !expires.IsZero() && value != "" {
		ck.MaxAge = int(time.Until(expires).Seconds())
	}
	return ck
}

func refreshTokenFromCookie(r *http.Request) string {
	ck, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}
