// Package password hashes and verifies identity secrets with bcrypt on a
// bounded pool of concurrent workers.
package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// ErrHashing is returned when a digest cannot be produced. It is never
// swallowed; the caller must fail the operation.
var ErrHashing = errors.New("password hashing failed")

// MaxLength is the largest plaintext bcrypt accepts.
const MaxLength = 72

var hashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "identity_password_hash_seconds",
		Help:    "Time spent in bcrypt hash and compare operations.",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"operation"},
)

// Hasher produces and checks salted bcrypt digests. The work factor is fixed
// at construction; at most `workers` bcrypt calls run at once and callers
// beyond that wait for a slot or for their context to end.
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

// NewHasher creates a Hasher. A workers value <= 0 means GOMAXPROCS.
func NewHasher(cost, workers int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Same cost as real digests so an unknown handle takes as long to reject
	// as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("careerhub-unknown-identity"), cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashing, err)
	}

	return &Hasher{
		cost:  cost,
		sem:   semaphore.NewWeighted(int64(workers)),
		dummy: dummy,
	}, nil
}

// Cost returns the configured bcrypt work factor.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns a new salted digest of plaintext.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > MaxLength {
		return "", fmt.Errorf("%w: plaintext longer than %d bytes", ErrHashing, MaxLength)
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	start := time.Now()
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	hashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A mismatch or a digest
// that is not bcrypt yields false with no error; only a cancelled context
// is returned as an error.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	return h.compare(ctx, []byte(digest), plaintext)
}

// VerifyDummy burns one compare against a fixed digest. Callers use it when
// there is no identity to check against so the failure costs the same.
func (h *Hasher) VerifyDummy(ctx context.Context, plaintext string) error {
	_, err := h.compare(ctx, h.dummy, plaintext)
	return err
}

// NeedsRehash reports whether digest was produced with a different cost.
func (h *Hasher) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	return err != nil || cost != h.cost
}

func (h *Hasher) compare(ctx context.Context, digest []byte, plaintext string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	start := time.Now()
	err := bcrypt.CompareHashAndPassword(digest, []byte(plaintext))
	hashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	return err == nil, nil
}
