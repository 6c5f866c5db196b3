package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/internal/password"
	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
	"github.com/Girirajbhatt/careerhub/pkg/pagination"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// RegisterInput holds the parameters for creating an identity.
type RegisterInput struct {
	Handle      string
	DisplayName string
	Password    string
	Role        domain.Role
}

// UpdateProfileInput holds the parameters for updating a profile.
type UpdateProfileInput struct {
	DisplayName *string
}

// Register creates a student or recruiter identity. It does not log in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.PublicIdentity, error) {
	if !input.Role.SelfAssignable() {
		return nil, apperrors.InvalidInput("role must be student or recruiter")
	}
	return s.create(ctx, input)
}

// Provision creates an identity with any role, admin included. It is the
// operator path used by the createuser command.
func (s *AuthService) Provision(ctx context.Context, input RegisterInput) (*domain.PublicIdentity, error) {
	if _, err := domain.ParseRole(string(input.Role)); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return s.create(ctx, input)
}

func (s *AuthService) create(ctx context.Context, input RegisterInput) (*domain.PublicIdentity, error) {
	handle := domain.NormalizeHandle(input.Handle)
	if handle == "" {
		return nil, apperrors.InvalidInput("handle is required")
	}
	displayName := domain.NormalizeDisplayName(input.DisplayName)
	if displayName == "" {
		return nil, apperrors.InvalidInput("display name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	identity := &domain.Identity{
		ID:           uuid.New().String(),
		Handle:       handle,
		DisplayName:  displayName,
		PasswordHash: digest,
		Role:         input.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishIdentityRegistered(ctx, identity); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish identity.registered event",
				slog.String("identity_id", identity.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	countAuth("register", outcomeSuccess)
	s.logger.InfoContext(ctx, "identity registered",
		slog.String("identity_id", identity.ID),
		slog.String("role", identity.Role.String()),
	)

	public := identity.Public()
	return &public, nil
}

// CurrentIdentity returns the public view of the identity.
func (s *AuthService) CurrentIdentity(ctx context.Context, identityID string) (*domain.PublicIdentity, error) {
	identity, err := s.findByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	public := identity.Public()
	return &public, nil
}

// UpdateProfile changes the display name. The secret is never re-hashed.
func (s *AuthService) UpdateProfile(ctx context.Context, identityID string, input UpdateProfileInput) (*domain.PublicIdentity, error) {
	identity, err := s.findByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		name := domain.NormalizeDisplayName(*input.DisplayName)
		if name == "" {
			return nil, apperrors.InvalidInput("display name must not be empty")
		}
		identity.DisplayName = name
	}

	if err := s.repo.UpdateProfile(ctx, identity); err != nil {
		return nil, fmt.Errorf("update identity profile: %w", err)
	}

	s.logger.InfoContext(ctx, "identity profile updated", slog.String("identity_id", identity.ID))

	public := identity.Public()
	return &public, nil
}

// ChangePassword verifies the current secret, stores a digest of the new
// one and ends the current session.
func (s *AuthService) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	identity, err := s.findByID(ctx, identityID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(ctx, currentPassword, identity.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		countAuth("change_password", outcomeInvalid)
		return apperrors.Unauthenticated(domain.MsgLogInAgain, domain.ErrInvalidCredentials)
	}

	digest, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.repo.UpdateSecret(ctx, identity.ID, digest); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishPasswordChanged(ctx, identity.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish identity.password_changed event",
				slog.String("identity_id", identity.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	countAuth("change_password", outcomeSuccess)
	s.logger.InfoContext(ctx, "password changed", slog.String("identity_id", identity.ID))

	return nil
}

// ListIdentities returns one page of identities for the admin dashboard.
func (s *AuthService) ListIdentities(ctx context.Context, params pagination.Params) (pagination.Result[domain.PublicIdentity], error) {
	identities, total, err := s.repo.List(ctx, params)
	if err != nil {
		return pagination.Result[domain.PublicIdentity]{}, fmt.Errorf("list identities: %w", err)
	}

	public := make([]domain.PublicIdentity, 0, len(identities))
	for i := range identities {
		public = append(public, identities[i].Public())
	}

	return pagination.NewResult(public, total, params), nil
}

func (s *AuthService) findByID(ctx context.Context, identityID string) (*domain.Identity, error) {
	identity, err := s.repo.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("identity", identityID)
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return identity, nil
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(pw string) error {
	if len(pw) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(pw) > password.MaxLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", password.MaxLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range pw {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
