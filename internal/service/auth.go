package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/internal/password"
	"github.com/Girirajbhatt/careerhub/internal/throttle"
	"github.com/Girirajbhatt/careerhub/internal/token"
	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
)

// maxAnchorAttempts bounds how often login re-reads the anchor after losing
// a compare-and-swap to a concurrent writer.
const maxAnchorAttempts = 3

// LoginInput holds the parameters for a login.
type LoginInput struct {
	Handle   string
	Password string
	ClientIP string
}

// Login checks a credential and opens a new session. Any previous session
// of the identity stops being refreshable.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.Session, error) {
	handle := domain.NormalizeHandle(input.Handle)
	if handle == "" {
		return nil, apperrors.InvalidInput("handle is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}
	if len(input.Password) > password.MaxLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", password.MaxLength))
	}

	if s.throttle != nil {
		if err := s.throttle.Check(ctx, handle, input.ClientIP); errors.Is(err, throttle.ErrLimited) {
			countAuth("login", outcomeThrottled)
			s.logger.WarnContext(ctx, "login throttled",
				slog.String("handle", handle),
				slog.String("client_ip", input.ClientIP),
			)
			return nil, apperrors.RateLimited("too many login attempts, try again later")
		}
	}

	identity, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			countAuth("login", outcomeError)
			return nil, fmt.Errorf("find identity by handle: %w", err)
		}
		if err := s.hasher.VerifyDummy(ctx, input.Password); err != nil {
			return nil, err
		}
		return nil, s.loginFailed(ctx, handle, input.ClientIP)
	}

	ok, err := s.hasher.Verify(ctx, input.Password, identity.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.loginFailed(ctx, handle, input.ClientIP)
	}

	if s.throttle != nil {
		s.throttle.Reset(ctx, handle)
	}

	if s.hasher.NeedsRehash(identity.PasswordHash) {
		s.upgradeDigest(ctx, identity, input.Password)
	}

	session, err := s.openSession(ctx, identity)
	if err != nil {
		countAuth("login", outcomeError)
		return nil, err
	}

	countAuth("login", outcomeSuccess)
	s.logger.InfoContext(ctx, "identity logged in",
		slog.String("identity_id", identity.ID),
		slog.String("role", identity.Role.String()),
	)

	return session, nil
}

func (s *AuthService) loginFailed(ctx context.Context, handle, ip string) error {
	if s.throttle != nil {
		s.throttle.RecordFailure(ctx, handle, ip)
	}
	countAuth("login", outcomeInvalid)
	s.logger.InfoContext(ctx, "login rejected", slog.String("client_ip", ip))
	return apperrors.Unauthenticated(domain.MsgLogInAgain, domain.ErrInvalidCredentials)
}

// upgradeDigest re-hashes a correct password whose digest was produced
// with a different cost. Failures keep the old digest.
func (s *AuthService) upgradeDigest(ctx context.Context, identity *domain.Identity, plaintext string) {
	digest, err := s.hasher.Hash(ctx, plaintext)
	if err == nil {
		err = s.repo.UpdateSecret(ctx, identity.ID, digest)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password digest upgrade failed",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	// UpdateSecret clears the anchor.
	identity.PasswordHash = digest
	identity.RefreshAnchor = nil
	s.logger.InfoContext(ctx, "password digest upgraded", slog.String("identity_id", identity.ID))
}

// openSession mints a pair and installs its refresh ID as the anchor,
// overwriting whatever anchor is there.
func (s *AuthService) openSession(ctx context.Context, identity *domain.Identity) (*domain.Session, error) {
	pair, jti, err := s.mintPair(identity)
	if err != nil {
		return nil, err
	}

	expected := identity.RefreshAnchor
	for attempt := 1; ; attempt++ {
		swapped, err := s.repo.UpdateAnchor(ctx, identity.ID, expected, &jti)
		if err != nil {
			return nil, fmt.Errorf("store refresh anchor: %w", err)
		}
		if swapped {
			break
		}
		if attempt == maxAnchorAttempts {
			return nil, fmt.Errorf("store refresh anchor after %d attempts: %w", attempt, apperrors.ErrConflict)
		}

		current, err := s.repo.FindByID(ctx, identity.ID)
		if err != nil {
			return nil, fmt.Errorf("reload identity: %w", err)
		}
		expected = current.RefreshAnchor
	}

	return &domain.Session{Identity: identity.Public(), Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// usable only while its ID is the stored anchor; the anchor is swapped to
// the new token's ID before the pair is returned, so each refresh token
// works at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		countAuth("refresh", outcomeInvalid)
		return nil, apperrors.Unauthenticated(domain.MsgLogInAgain, domain.ErrSessionInvalid)
	}

	claims, err := s.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		countAuth("refresh", outcomeInvalid)
		s.logger.InfoContext(ctx, "refresh token rejected", slog.String("reason", err.Error()))
		return nil, apperrors.Unauthenticated(domain.MsgLogInAgain, domain.ErrSessionInvalid, err)
	}

	identity, err := s.repo.FindByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			countAuth("refresh", outcomeInvalid)
			return nil, apperrors.Unauthenticated(domain.MsgLogInAgain, domain.ErrSessionInvalid)
		}
		countAuth("refresh", outcomeError)
		return nil, fmt.Errorf("find identity for refresh: %w", err)
	}

	if !identity.AnchorMatches(claims.ID) {
		return nil, s.sessionRevoked(ctx, identity.ID, claims.ID)
	}

	pair, jti, err := s.mintPair(identity)
	if err != nil {
		countAuth("refresh", outcomeError)
		return nil, err
	}

	swapped, err := s.repo.UpdateAnchor(ctx, identity.ID, &claims.ID, &jti)
	if err != nil {
		countAuth("refresh", outcomeError)
		return nil, fmt.Errorf("rotate refresh anchor: %w", err)
	}
	if !swapped {
		// Another request spent the same token between our read and write.
		return nil, s.sessionRevoked(ctx, identity.ID, claims.ID)
	}

	countAuth("refresh", outcomeSuccess)
	s.logger.InfoContext(ctx, "session rotated", slog.String("identity_id", identity.ID))

	return &domain.Session{Identity: identity.Public(), Tokens: pair}, nil
}

func (s *AuthService) sessionRevoked(ctx context.Context, identityID, tokenID string) error {
	countAuth("refresh", outcomeRevoked)
	s.logger.WarnContext(ctx, "stale refresh token presented",
		slog.String("identity_id", identityID),
		slog.String("token_id", tokenID),
	)
	if s.events != nil {
		if err := s.events.PublishSessionReuseDetected(ctx, identityID, tokenID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish identity.session_reuse_detected event",
				slog.String("identity_id", identityID),
				slog.String("error", err.Error()),
			)
		}
	}
	return apperrors.Unauthenticated(domain.MsgLogInAgain, domain.ErrSessionRevoked)
}

// Logout clears the identity's anchor. Calling it again, or for an identity
// that no longer exists, succeeds.
func (s *AuthService) Logout(ctx context.Context, identityID string) error {
	if err := s.repo.ClearAnchor(ctx, identityID); err != nil {
		countAuth("logout", outcomeError)
		return fmt.Errorf("clear refresh anchor: %w", err)
	}

	countAuth("logout", outcomeSuccess)
	s.logger.InfoContext(ctx, "identity logged out", slog.String("identity_id", identityID))
	return nil
}

func (s *AuthService) mintPair(identity *domain.Identity) (domain.TokenPair, string, error) {
	access, accessClaims, err := s.tokens.Mint(token.KindAccess, token.Claims{
		IdentityID: identity.ID,
		Role:       identity.Role.String(),
		Handle:     identity.Handle,
	}, s.cfg.AccessTTL)
	if err != nil {
		return domain.TokenPair{}, "", fmt.Errorf("mint access token: %w", err)
	}

	refresh, refreshClaims, err := s.tokens.Mint(token.KindRefresh, token.Claims{
		IdentityID: identity.ID,
	}, s.cfg.RefreshTTL)
	if err != nil {
		return domain.TokenPair{}, "", fmt.Errorf("mint refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, refreshClaims.ID, nil
}
