package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/internal/repository"
	"github.com/Girirajbhatt/careerhub/internal/token"
)

// PasswordHasher is satisfied by *password.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
	VerifyDummy(ctx context.Context, plaintext string) error
	NeedsRehash(digest string) bool
}

// TokenCodec is satisfied by *token.Codec.
type TokenCodec interface {
	Mint(kind token.Kind, claims token.Claims, ttl time.Duration) (string, *token.Claims, error)
	Verify(tokenString string, kind token.Kind) (*token.Claims, error)
}

// LoginThrottle is satisfied by *throttle.Limiter.
type LoginThrottle interface {
	Check(ctx context.Context, handle, ip string) error
	RecordFailure(ctx context.Context, handle, ip string)
	Reset(ctx context.Context, handle string)
}

// EventPublisher is satisfied by *event.Producer.
type EventPublisher interface {
	PublishIdentityRegistered(ctx context.Context, identity *domain.Identity) error
	PublishPasswordChanged(ctx context.Context, identityID string) error
	PublishSessionReuseDetected(ctx context.Context, identityID, tokenID string) error
}

// Config holds token lifetimes.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthService implements registration, login, refresh rotation, logout and
// the profile operations on top of the identity store.
type AuthService struct {
	repo     repository.IdentityRepository
	hasher   PasswordHasher
	tokens   TokenCodec
	throttle LoginThrottle
	events   EventPublisher
	cfg      Config
	logger   *slog.Logger
}

// NewAuthService creates a new auth service. throttle and events may be nil.
func NewAuthService(
	repo repository.IdentityRepository,
	hasher PasswordHasher,
	tokens TokenCodec,
	throttle LoginThrottle,
	events EventPublisher,
	cfg Config,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		throttle: throttle,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
}
