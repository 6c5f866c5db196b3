package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
	"github.com/Girirajbhatt/careerhub/pkg/httputil"
	"github.com/Girirajbhatt/careerhub/pkg/logger"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// DefaultAccessCookie is the cookie the guard falls back to when no
// Authorization header is present.
const DefaultAccessCookie = "accessToken"

const (
	msgAuthRequired = "authentication required"
	msgForbidden    = "insufficient permissions"
)

// ErrTokenExpired is returned by a TokenValidator when the access token was
// genuine but is past its expiry. The guard still answers 401, but adds a
// WWW-Authenticate hint so clients know a refresh is worth trying.
var ErrTokenExpired = errors.New("access token expired")

// Principal is the verified caller attached to the request context.
type Principal struct {
	IdentityID string
	Handle     string
	Role       string
}

// TokenValidator verifies a raw access token and returns the caller it
// proves. It must not consult any store.
type TokenValidator func(token string) (*Principal, error)

// Guard authenticates requests against access tokens and optionally gates
// them on a role set.
type Guard struct {
	validate     TokenValidator
	accessCookie string
}

// NewGuard returns a Guard reading the bearer header first and then the
// named cookie. An empty cookie name disables the cookie fallback.
func NewGuard(validate TokenValidator, accessCookie string) *Guard {
	return &Guard{validate: validate, accessCookie: accessCookie}
}

// Require returns middleware that admits only authenticated callers whose
// role is in roles. With no roles, any authenticated caller is admitted.
func (g *Guard) Require(roles ...string) func(http.Handler) http.Handler {
	gate := RequireRole(roles...)
	return func(next http.Handler) http.Handler {
		return g.authenticate(gate(next))
	}
}

func (g *Guard) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := g.extract(r)
		if raw == "" {
			writeUnauthenticated(w, r, nil)
			return
		}

		p, err := g.validate(raw)
		if err != nil || p == nil {
			writeUnauthenticated(w, r, err)
			return
		}

		trace.SpanFromContext(r.Context()).SetAttributes(
			attribute.String("enduser.id", p.IdentityID),
			attribute.String("enduser.role", p.Role),
		)

		ctx := WithPrincipal(r.Context(), p)
		ctx = logger.WithIdentityID(ctx, p.IdentityID)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("identity_id", p.IdentityID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) extract(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if g.accessCookie == "" {
		return ""
	}
	if c, err := r.Cookie(g.accessCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireRole rejects requests whose principal role is not in roles. It
// must run behind a Guard; a request with no principal is answered 401.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeUnauthenticated(w, r, nil)
				return
			}
			if len(roleSet) > 0 {
				if _, ok := roleSet[p.Role]; !ok {
					httputil.WriteError(w, r, apperrors.Forbidden(msgForbidden), nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthenticated(w http.ResponseWriter, r *http.Request, cause error) {
	if errors.Is(cause, ErrTokenExpired) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="token expired"`)
	} else {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	httputil.WriteError(w, r, apperrors.Unauthenticated(msgAuthRequired, cause), nil)
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the verified caller, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// IdentityIDFromContext extracts the verified identity id from the request context.
func IdentityIDFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.IdentityID
	}
	return ""
}

// RoleFromContext extracts the verified role from the request context.
func RoleFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.Role
	}
	return ""
}
