// Package app assembles the identity service from its configuration and owns
// the lifecycle of every connection it opens.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/Girirajbhatt/careerhub/internal/config"
	"github.com/Girirajbhatt/careerhub/internal/event"
	handler "github.com/Girirajbhatt/careerhub/internal/handler/http"
	"github.com/Girirajbhatt/careerhub/internal/password"
	"github.com/Girirajbhatt/careerhub/internal/repository"
	"github.com/Girirajbhatt/careerhub/internal/repository/memory"
	"github.com/Girirajbhatt/careerhub/internal/repository/postgres"
	"github.com/Girirajbhatt/careerhub/internal/service"
	"github.com/Girirajbhatt/careerhub/internal/throttle"
	"github.com/Girirajbhatt/careerhub/internal/token"
	"github.com/Girirajbhatt/careerhub/migrations"
	"github.com/Girirajbhatt/careerhub/pkg/database"
	"github.com/Girirajbhatt/careerhub/pkg/health"
	pkgkafka "github.com/Girirajbhatt/careerhub/pkg/kafka"
	"github.com/Girirajbhatt/careerhub/pkg/middleware"
	"github.com/Girirajbhatt/careerhub/pkg/tracing"
)

// ServiceName labels the service in logs, metrics and traces.
const ServiceName = "identity"

const (
	serviceVersion = "0.1.0"
	startupTimeout = 30 * time.Second
)

// closer releases one component. Closers run in reverse order of
// registration once the HTTP server has drained.
type closer struct {
	name  string
	close func(context.Context) error
}

// App is the running identity service.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	closers []closer
}

// NewApp opens every dependency and builds the HTTP server. Components opened
// before a failure are closed again before the error is returned.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.release(context.Background())
		}
	}()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.onClose("tracer", shutdownTracer)

	checks := health.NewHandler()

	store, err := a.openStore(ctx, checks)
	if err != nil {
		return nil, err
	}
	limiter := a.openThrottle(ctx, checks)

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	a.onClose("kafka", func(context.Context) error { return producer.Close() })
	checks.RegisterNonCritical("kafka", producer.Ping)

	hasher, err := password.NewHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	codec, err := token.NewCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}
	sameSite, err := cfg.SameSite()
	if err != nil {
		return nil, err
	}

	svc := service.NewAuthService(store, hasher, codec, limiter,
		event.NewProducer(producer, logger),
		service.Config{AccessTTL: cfg.AccessTokenExpiry, RefreshTTL: cfg.RefreshTokenExpiry},
		logger,
	)

	// The per-IP limiter sweeps idle buckets until this context ends.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	a.onClose("rate limiter", func(context.Context) error { stopSweep(); return nil })

	router := handler.NewRouter(sweepCtx, svc, codec, checks, handler.RouterConfig{
		ServiceName: ServiceName,
		Cookies: handler.CookieConfig{
			Secure:   cfg.CookieSecure,
			SameSite: sameSite,
			Domain:   cfg.CookieDomain,
		},
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			ExposedHeaders:   []string{middleware.CorrelationIDHeader},
			AllowCredentials: true,
		},
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		TrustedProxyCIDRs: cfg.TrustedProxyCIDRs,
	}, logger)

	a.server = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return a, nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// openStore returns the credential store selected by STORE_DRIVER.
func (a *App) openStore(ctx context.Context, checks *health.Handler) (repository.IdentityRepository, error) {
	if a.cfg.StoreDriver == config.StoreMemory {
		a.logger.Warn("using in-memory credential store, identities are lost on restart")
		return memory.NewIdentityRepository(), nil
	}

	pool, err := OpenPostgres(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose("postgres", func(context.Context) error { pool.Close(); return nil })

	if err := database.RegisterPoolMetrics(nil, pool, ServiceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	checks.RegisterCritical("postgres", pool.Ping)
	return postgres.NewIdentityRepository(pool), nil
}

// openThrottle connects the login throttle to Redis. Redis being down is
// logged, not fatal: the throttle fails open until it answers again.
func (a *App) openThrottle(ctx context.Context, checks *health.Handler) *throttle.Limiter {
	redisCfg := a.cfg.Redis()
	client, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		a.logger.Warn("redis unavailable, login throttle fails open",
			slog.String("addr", redisCfg.Addr()),
			slog.String("error", err.Error()),
		)
	}
	a.onClose("redis", func(context.Context) error { return client.Close() })

	limiter := throttle.New(client, throttle.Config{
		MaxAttempts: a.cfg.LoginMaxAttempts,
		Window:      a.cfg.LoginWindow,
	}, a.logger)
	checks.RegisterNonCritical("redis", limiter.Ping)
	return limiter
}

// OpenPostgres connects, applies the embedded migrations and enables slow
// query logging. It is shared with cmd/createuser.
func OpenPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, pgCfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("postgres connected",
		slog.String("addr", net.JoinHostPort(pgCfg.Host, strconv.Itoa(pgCfg.Port))),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, err
	}

	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	return pool, nil
}

// Run serves HTTP until ctx is canceled or the listener fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown drains in-flight requests, then closes every other component in
// reverse order of opening. It shares one SHUTDOWN_TIMEOUT budget.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("http drain failed", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.release(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) release(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil {
			a.logger.Error("close failed", slog.String("component", c.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
