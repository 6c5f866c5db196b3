package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	startupAttempts = 3
	startupBaseWait = time.Second
	jitterFraction  = 0.25
)

// backoff doubles from startupBaseWait per attempt and spreads the result
// by ±25% so replicas restarting together do not retry in lockstep.
func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := startupBaseWait << attempt
	spread := time.Duration(float64(base) * jitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- jitter only
	return base + spread
}

// retryOptions controls withRetry. A zero value retries every error.
type retryOptions struct {
	attempts  int
	retryable func(error) bool
	wait      func(attempt int) time.Duration
}

// withRetry runs fn until it succeeds, the error is not retryable, the
// attempts run out or ctx is done. Each failed attempt is logged at warn.
func withRetry(ctx context.Context, logger *slog.Logger, op string, opts retryOptions, fn func(context.Context) error) error {
	if opts.attempts <= 0 {
		opts.attempts = startupAttempts
	}
	if opts.wait == nil {
		opts.wait = backoff
	}

	var err error
	for attempt := 0; attempt < opts.attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if opts.retryable != nil && !opts.retryable(err) {
			return err
		}
		if attempt == opts.attempts-1 {
			break
		}

		wait := opts.wait(attempt)
		if logger != nil {
			logger.WarnContext(ctx, op+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", opts.attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, opts.attempts, err)
}

// isConnectionError reports whether err means the server could not be
// reached, as opposed to the server rejecting a statement.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08xxx is the connection exception class; 57P03 is "cannot connect now".
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code == "57P03")
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	}
	return pgconn.SafeToRetry(err)
}
