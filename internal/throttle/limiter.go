// Package throttle counts failed logins per handle and per client IP in
// Redis fixed windows.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// ErrLimited is returned by Check when a counter is over budget.
var ErrLimited = errors.New("too many failed login attempts")

const keyPrefix = "careerhub:identity:login_fail"

// Config holds the attempt budgets.
type Config struct {
	MaxAttempts   int
	IPMaxAttempts int
	Window        time.Duration
}

// Limiter enforces the login budgets. Redis failures never block a login:
// they are logged, counted by the breaker, and the attempt is allowed.
type Limiter struct {
	redis   redis.UniversalClient
	breaker *gobreaker.CircuitBreaker[int64]
	cfg     Config
	logger  *slog.Logger
}

// New creates a Limiter backed by client.
func New(client redis.UniversalClient, cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IPMaxAttempts <= 0 {
		cfg.IPMaxAttempts = cfg.MaxAttempts * 4
	}

	settings := gobreaker.Settings{
		Name:        "login-throttle-redis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Limiter{
		redis:   client,
		breaker: gobreaker.NewCircuitBreaker[int64](settings),
		cfg:     cfg,
		logger:  logger,
	}
}

// Check returns ErrLimited when either the handle or the IP has used up its
// budget for the current window.
func (l *Limiter) Check(ctx context.Context, handle, ip string) error {
	if l.over(ctx, handleKey(handle), l.cfg.MaxAttempts) {
		return ErrLimited
	}
	if ip != "" && l.over(ctx, ipKey(ip), l.cfg.IPMaxAttempts) {
		return ErrLimited
	}
	return nil
}

// RecordFailure counts one failed attempt against the handle and the IP.
func (l *Limiter) RecordFailure(ctx context.Context, handle, ip string) {
	l.incr(ctx, handleKey(handle))
	if ip != "" {
		l.incr(ctx, ipKey(ip))
	}
}

// Reset clears the handle counter after a successful login. The IP counter
// keeps running so one good account cannot launder a spraying client.
func (l *Limiter) Reset(ctx context.Context, handle string) {
	_, err := l.breaker.Execute(func() (int64, error) {
		return l.redis.Del(ctx, handleKey(handle)).Result()
	})
	if err != nil {
		l.logFailOpen(ctx, "reset", err)
	}
}

// Ping reports whether Redis answers.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.redis.Ping(ctx).Err()
}

func (l *Limiter) over(ctx context.Context, key string, limit int) bool {
	count, err := l.breaker.Execute(func() (int64, error) {
		n, err := l.redis.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return n, err
	})
	if err != nil {
		l.logFailOpen(ctx, "check", err)
		return false
	}
	return count >= int64(limit)
}

func (l *Limiter) incr(ctx context.Context, key string) {
	_, err := l.breaker.Execute(func() (int64, error) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		// Fixed window: the TTL is set by the first hit only.
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
				return 0, err
			}
		}
		return count, nil
	})
	if err != nil {
		l.logFailOpen(ctx, "record", err)
	}
}

func (l *Limiter) logFailOpen(ctx context.Context, op string, err error) {
	l.logger.WarnContext(ctx, "login throttle unavailable, failing open",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

func handleKey(handle string) string { return fmt.Sprintf("%s:handle:%s", keyPrefix, handle) }

func ipKey(ip string) string { return fmt.Sprintf("%s:ip:%s", keyPrefix, ip) }
