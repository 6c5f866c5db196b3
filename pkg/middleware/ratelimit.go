package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
	"github.com/Girirajbhatt/careerhub/pkg/httputil"
)

const bucketIdleTTL = 3 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// bucketStore keeps one token bucket per client address.
type bucketStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

func newBucketStore(rps float64, burst int, ttl time.Duration) *bucketStore {
	return &bucketStore{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// take spends one token from addr's bucket. It returns zero when the request
// may proceed, otherwise how long until a token is available.
func (s *bucketStore) take(addr string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[addr]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[addr] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return rate.InfDuration
	}
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
	}
	return delay
}

func (s *bucketStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	for addr, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, addr)
		}
	}
}

func (s *bucketStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RateLimit limits each client address to rps requests per second with the
// given burst. Rejected requests get 429 RATE_LIMITED and a Retry-After in
// whole seconds. Idle buckets are swept until ctx ends.
func RateLimit(ctx context.Context, rps float64, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	store := newBucketStore(rps, burst, bucketIdleTTL)

	go func() {
		ticker := time.NewTicker(bucketIdleTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.sweep()
			}
		}
	}()

	return limitWith(store, logger)
}

func limitWith(store *bucketStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := ClientIP(r)
			wait := store.take(addr)
			if wait == 0 {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(r.Context(), "rate limited",
				slog.String("client_ip", addr),
				slog.String("path", r.URL.Path),
				slog.Duration("retry_after", wait),
			)
			w.Header().Set("Retry-After", retryAfter(wait))
			httputil.WriteError(w, r, apperrors.RateLimited("too many requests"), logger)
		})
	}
}

// retryAfter renders wait as delta-seconds, rounded up and at least 1.
func retryAfter(wait time.Duration) string {
	if wait == rate.InfDuration {
		return strconv.Itoa(int(bucketIdleTTL.Seconds()))
	}
	return strconv.Itoa(max(1, int(math.Ceil(wait.Seconds()))))
}

// ClientIP returns the peer address from r.RemoteAddr. Forwarding headers
// are honoured only through TrustedProxies, which rewrites RemoteAddr for
// requests arriving from a trusted proxy.
func ClientIP(r *http.Request) string {
	if addr, ok := peerAddr(r.RemoteAddr); ok {
		return addr.String()
	}
	return r.RemoteAddr
}
