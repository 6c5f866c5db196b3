// Package memory is an in-process identity store for local runs and tests.
// The anchor compare-and-swap is done under one mutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
	"github.com/Girirajbhatt/careerhub/pkg/pagination"
)

// IdentityRepository implements repository.IdentityRepository in memory.
type IdentityRepository struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Identity
	byHandle map[string]string
	now      func() time.Time
}

// NewIdentityRepository creates an empty store.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		byID:     make(map[string]*domain.Identity),
		byHandle: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a copy of identity.
func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	handle := domain.NormalizeHandle(identity.Handle)
	if _, taken := r.byHandle[handle]; taken {
		return apperrors.AlreadyExists("identity", "handle", handle)
	}
	if _, taken := r.byID[identity.ID]; taken {
		return apperrors.AlreadyExists("identity", "id", identity.ID)
	}

	stored := clone(identity)
	stored.Handle = handle
	r.byID[stored.ID] = stored
	r.byHandle[handle] = stored.ID
	return nil
}

// FindByID returns a copy of the identity with the given id.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(i), nil
}

// FindByHandle returns a copy of the identity with the given handle.
func (r *IdentityRepository) FindByHandle(ctx context.Context, handle string) (*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byHandle[domain.NormalizeHandle(handle)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

// UpdateAnchor swaps the anchor if it still equals expected.
func (r *IdentityRepository) UpdateAnchor(ctx context.Context, id string, expected, next *string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok || !sameAnchor(i.RefreshAnchor, expected) {
		return false, nil
	}
	i.RefreshAnchor = copyString(next)
	i.UpdatedAt = r.now()
	return true, nil
}

// ClearAnchor drops the anchor. Unknown ids are ignored.
func (r *IdentityRepository) ClearAnchor(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byID[id]; ok && i.RefreshAnchor != nil {
		i.RefreshAnchor = nil
		i.UpdatedAt = r.now()
	}
	return nil
}

// UpdateSecret replaces the hash and clears the anchor.
func (r *IdentityRepository) UpdateSecret(ctx context.Context, id, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return apperrors.NotFound("identity", id)
	}
	i.PasswordHash = passwordHash
	i.RefreshAnchor = nil
	i.UpdatedAt = r.now()
	return nil
}

// UpdateProfile writes the display name only.
func (r *IdentityRepository) UpdateProfile(ctx context.Context, identity *domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[identity.ID]
	if !ok {
		return apperrors.NotFound("identity", identity.ID)
	}
	i.DisplayName = identity.DisplayName
	i.UpdatedAt = r.now()
	identity.UpdatedAt = i.UpdatedAt
	return nil
}

// List returns identities newest first.
func (r *IdentityRepository) List(ctx context.Context, params pagination.Params) ([]domain.Identity, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	all := make([]domain.Identity, 0, len(r.byID))
	for _, i := range r.byID {
		all = append(all, *clone(i))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(a, b int) bool {
		if all[a].CreatedAt.Equal(all[b].CreatedAt) {
			return all[a].ID < all[b].ID
		}
		return all[a].CreatedAt.After(all[b].CreatedAt)
	})

	total := len(all)
	start := min(params.Offset(), total)
	end := min(start+params.Limit(), total)
	return all[start:end], total, nil
}

func clone(i *domain.Identity) *domain.Identity {
	c := *i
	c.RefreshAnchor = copyString(i.RefreshAnchor)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func sameAnchor(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
