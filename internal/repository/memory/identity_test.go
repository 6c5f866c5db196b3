package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
	"github.com/Girirajbhatt/careerhub/pkg/pagination"
)

func strPtr(s string) *string { return &s }

func seed(t *testing.T, r *IdentityRepository, id, handle string, created time.Time) *domain.Identity {
	t.Helper()
	i := &domain.Identity{
		ID:           id,
		Handle:       handle,
		PasswordHash: "digest",
		Role:         domain.RoleStudent,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, r.Create(context.Background(), i))
	return i
}

func TestCreate_DuplicateHandle(t *testing.T) {
	r := NewIdentityRepository()
	seed(t, r, "id-1", "a@b.com", time.Now())

	err := r.Create(context.Background(), &domain.Identity{ID: "id-2", Handle: " A@B.com"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestFind_ReturnsCopies(t *testing.T) {
	r := NewIdentityRepository()
	seed(t, r, "id-1", "a@b.com", time.Now())

	got, err := r.FindByHandle(context.Background(), "A@B.COM")
	require.NoError(t, err)
	got.PasswordHash = "mutated"

	again, err := r.FindByID(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, "digest", again.PasswordHash)
}

func TestFind_NotFound(t *testing.T) {
	r := NewIdentityRepository()

	_, err := r.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.FindByHandle(context.Background(), "nope@x.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateAnchor_CompareAndSwap(t *testing.T) {
	r := NewIdentityRepository()
	seed(t, r, "id-1", "a@b.com", time.Now())
	ctx := context.Background()

	ok, err := r.UpdateAnchor(ctx, "id-1", nil, strPtr("j1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.UpdateAnchor(ctx, "id-1", nil, strPtr("j2"))
	require.NoError(t, err)
	assert.False(t, ok, "nil expectation must not match a set anchor")

	ok, err = r.UpdateAnchor(ctx, "id-1", strPtr("j1"), strPtr("j2"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.UpdateAnchor(ctx, "id-1", strPtr("j1"), strPtr("j3"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.UpdateAnchor(ctx, "missing", nil, strPtr("j1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateAnchor_ConcurrentSingleWinner(t *testing.T) {
	r := NewIdentityRepository()
	seed(t, r, "id-1", "a@b.com", time.Now())
	ctx := context.Background()

	_, err := r.UpdateAnchor(ctx, "id-1", nil, strPtr("j0"))
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for n := 0; n < 32; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := r.UpdateAnchor(ctx, "id-1", strPtr("j0"), strPtr(fmt.Sprintf("j-%d", n)))
			if err == nil && ok {
				wins.Add(1)
			}
		}(n)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestClearAnchor_Idempotent(t *testing.T) {
	r := NewIdentityRepository()
	seed(t, r, "id-1", "a@b.com", time.Now())
	ctx := context.Background()

	_, err := r.UpdateAnchor(ctx, "id-1", nil, strPtr("j1"))
	require.NoError(t, err)

	require.NoError(t, r.ClearAnchor(ctx, "id-1"))
	require.NoError(t, r.ClearAnchor(ctx, "id-1"))
	require.NoError(t, r.ClearAnchor(ctx, "missing"))

	got, err := r.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Nil(t, got.RefreshAnchor)
}

func TestUpdateSecret_ClearsAnchor(t *testing.T) {
	r := NewIdentityRepository()
	seed(t, r, "id-1", "a@b.com", time.Now())
	ctx := context.Background()

	_, err := r.UpdateAnchor(ctx, "id-1", nil, strPtr("j1"))
	require.NoError(t, err)

	require.NoError(t, r.UpdateSecret(ctx, "id-1", "new-digest"))

	got, err := r.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "new-digest", got.PasswordHash)
	assert.Nil(t, got.RefreshAnchor)

	assert.ErrorIs(t, r.UpdateSecret(ctx, "missing", "x"), apperrors.ErrNotFound)
}

func TestUpdateProfile_KeepsSecret(t *testing.T) {
	r := NewIdentityRepository()
	seed(t, r, "id-1", "a@b.com", time.Now())
	ctx := context.Background()

	require.NoError(t, r.UpdateProfile(ctx, &domain.Identity{ID: "id-1", DisplayName: "ana", PasswordHash: "ignored"}))

	got, err := r.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "ana", got.DisplayName)
	assert.Equal(t, "digest", got.PasswordHash)
}

func TestList_NewestFirstAndPaged(t *testing.T) {
	r := NewIdentityRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for n := 0; n < 5; n++ {
		seed(t, r, fmt.Sprintf("id-%d", n), fmt.Sprintf("u%d@x.com", n), base.Add(time.Duration(n)*time.Hour))
	}

	page, total, err := r.List(context.Background(), pagination.Params{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "id-4", page[0].ID)
	assert.Equal(t, "id-3", page[1].ID)

	page, _, err = r.List(context.Background(), pagination.Params{Page: 3, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "id-0", page[0].ID)

	page, _, err = r.List(context.Background(), pagination.Params{Page: 9, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestCancelledContext(t *testing.T) {
	r := NewIdentityRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.FindByID(ctx, "id-1")
	assert.ErrorIs(t, err, context.Canceled)
}
