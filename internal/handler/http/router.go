package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/internal/service"
	"github.com/Girirajbhatt/careerhub/internal/token"
	"github.com/Girirajbhatt/careerhub/pkg/health"
	"github.com/Girirajbhatt/careerhub/pkg/middleware"
)

// RouterConfig carries the transport settings of the identity routes.
type RouterConfig struct {
	ServiceName       string
	Cookies           CookieConfig
	CORS              middleware.CORSConfig
	RateLimitRPS      float64
	RateLimitBurst    int
	PprofAllowedCIDRs []string
	TrustedProxyCIDRs []string
}

// AccessVerifier verifies access tokens. *token.Codec satisfies it.
type AccessVerifier interface {
	Verify(tokenString string, kind token.Kind) (*token.Claims, error)
}

// AccessTokenValidator bridges the token codec to the guard. It trusts the
// signed claims alone and never reads the credential store.
func AccessTokenValidator(codec AccessVerifier) middleware.TokenValidator {
	return func(raw string) (*middleware.Principal, error) {
		claims, err := codec.Verify(raw, token.KindAccess)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				return nil, fmt.Errorf("%w: %w", middleware.ErrTokenExpired, err)
			}
			return nil, err
		}

		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", token.ErrMalformed, err)
		}

		return &middleware.Principal{
			IdentityID: claims.IdentityID,
			Handle:     claims.Handle,
			Role:       role.String(),
		}, nil
	}
}

// NewRouter creates a chi router with all identity service routes
// registered. ctx bounds the lifetime of the per-IP rate limiter.
func NewRouter(
	ctx context.Context,
	authService *service.AuthService,
	codec AccessVerifier,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.TrustedProxies(cfg.TrustedProxyCIDRs, logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	guard := middleware.NewGuard(AccessTokenValidator(codec), accessCookieName)
	authHandler := NewAuthHandler(authService, cfg.Cookies, logger)
	userHandler := NewUserHandler(authService, logger)

	r.Route("/api/v1/user", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger))

			r.Post("/register", authHandler.Register)
			r.With(middleware.NoStore).Post("/login", authHandler.Login)
			r.With(middleware.NoStore).Post("/refresh-token", authHandler.RefreshToken)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(guard.Require())

			r.Post("/logout", authHandler.Logout)
			r.Get("/get-user", userHandler.GetUser)
			r.Patch("/update-user", userHandler.UpdateUser)
			r.Post("/change-password", authHandler.ChangePassword)
		})

		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(domain.RoleAdmin.String()))

			r.Get("/admin-dashboard", userHandler.AdminDashboard)
		})
	})

	return r
}
