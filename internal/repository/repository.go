package repository

import (
	"context"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/pkg/pagination"
)

// IdentityRepository is the credential store. Lookups that find nothing
// return apperrors.ErrNotFound.
type IdentityRepository interface {
	// FindByHandle retrieves an identity by its normalized handle.
	FindByHandle(ctx context.Context, handle string) (*domain.Identity, error)

	// FindByID retrieves an identity by its unique identifier.
	FindByID(ctx context.Context, id string) (*domain.Identity, error)

	// Create inserts a new identity. The password hash must already be set.
	// A taken handle yields apperrors.ErrAlreadyExists.
	Create(ctx context.Context, identity *domain.Identity) error

	// UpdateAnchor sets the refresh anchor to next only if it currently
	// equals expected (nil meaning no anchor). It reports whether the swap
	// happened; a false result with a nil error is a lost race or a stale
	// expectation, not a failure.
	UpdateAnchor(ctx context.Context, id string, expected, next *string) (bool, error)

	// ClearAnchor removes the refresh anchor. Clearing an identity that has
	// no anchor, or that does not exist, is not an error.
	ClearAnchor(ctx context.Context, id string) error

	// UpdateSecret replaces the password hash and clears the refresh anchor
	// in one write.
	UpdateSecret(ctx context.Context, id, passwordHash string) error

	// UpdateProfile writes the non-secret profile fields.
	UpdateProfile(ctx context.Context, identity *domain.Identity) error

	// List returns one page of identities, newest first, and the total count.
	List(ctx context.Context, params pagination.Params) ([]domain.Identity, int, error)
}
