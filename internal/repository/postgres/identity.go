package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/pkg/database"
	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
	"github.com/Girirajbhatt/careerhub/pkg/pagination"
)

const identityColumns = `id, handle, display_name, password_hash, role, refresh_anchor, created_at, updated_at`

// IdentityRepository implements repository.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewIdentityRepository creates a new PostgreSQL-backed identity repository.
func NewIdentityRepository(db database.DBTX) *IdentityRepository {
	return &IdentityRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new identity into the database.
func (r *IdentityRepository) Create(ctx context.Context, i *domain.Identity) (err error) {
	query := `
		INSERT INTO identities (id, handle, display_name, password_hash, role, refresh_anchor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	ctx, end := database.TraceQuery(ctx, "CreateIdentity", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		i.ID,
		i.Handle,
		i.DisplayName,
		i.PasswordHash,
		i.Role,
		i.RefreshAnchor,
		i.CreatedAt,
		i.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("identity", "handle", i.Handle)
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

// FindByID retrieves an identity by its ID.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return r.scanIdentity(ctx, "FindIdentityByID", query, id)
}

// FindByHandle retrieves an identity by its normalized handle.
func (r *IdentityRepository) FindByHandle(ctx context.Context, handle string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE handle = $1`
	return r.scanIdentity(ctx, "FindIdentityByHandle", query, domain.NormalizeHandle(handle))
}

// UpdateAnchor swaps the refresh anchor in a single conditional UPDATE.
// IS NOT DISTINCT FROM makes a nil expectation match a NULL column.
func (r *IdentityRepository) UpdateAnchor(ctx context.Context, id string, expected, next *string) (swapped bool, err error) {
	query := `
		UPDATE identities
		SET refresh_anchor = $3, updated_at = $4
		WHERE id = $1 AND refresh_anchor IS NOT DISTINCT FROM $2`

	ctx, end := database.TraceQuery(ctx, "UpdateIdentityAnchor", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, expected, next, r.now())
	if err != nil {
		return false, fmt.Errorf("update refresh anchor: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// ClearAnchor sets the refresh anchor to NULL.
func (r *IdentityRepository) ClearAnchor(ctx context.Context, id string) (err error) {
	query := `
		UPDATE identities
		SET refresh_anchor = NULL, updated_at = $2
		WHERE id = $1 AND refresh_anchor IS NOT NULL`

	ctx, end := database.TraceQuery(ctx, "ClearIdentityAnchor", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id, r.now()); err != nil {
		return fmt.Errorf("clear refresh anchor: %w", err)
	}

	return nil
}

// UpdateSecret replaces the password hash and ends the current session.
func (r *IdentityRepository) UpdateSecret(ctx context.Context, id, passwordHash string) (err error) {
	query := `
		UPDATE identities
		SET password_hash = $2, refresh_anchor = NULL, updated_at = $3
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateIdentitySecret", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, passwordHash, r.now())
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", id)
	}

	return nil
}

// UpdateProfile writes the display name. The password hash and anchor
// columns are not touched.
func (r *IdentityRepository) UpdateProfile(ctx context.Context, i *domain.Identity) (err error) {
	i.UpdatedAt = r.now()

	query := `
		UPDATE identities
		SET display_name = $2, updated_at = $3
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateIdentityProfile", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, i.ID, i.DisplayName, i.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update identity profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", i.ID)
	}

	return nil
}

// List returns a page of identities ordered by creation time, newest first.
func (r *IdentityRepository) List(ctx context.Context, params pagination.Params) (_ []domain.Identity, _ int, err error) {
	countQuery := `SELECT COUNT(*) FROM identities`

	ctx, end := database.TraceQuery(ctx, "ListIdentities", countQuery)
	defer func() { end(err) }()

	var total int
	if err = r.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count identities: %w", err)
	}

	query := `
		SELECT ` + identityColumns + `
		FROM identities
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, params.Limit(), params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	identities := []domain.Identity{}
	for rows.Next() {
		var i domain.Identity
		if err = scanInto(rows, &i); err != nil {
			return nil, 0, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, i)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate identity rows: %w", err)
	}

	return identities, total, nil
}

func (r *IdentityRepository) scanIdentity(ctx context.Context, op, query string, args ...any) (_ *domain.Identity, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var i domain.Identity
	if err = scanInto(r.db.QueryRow(ctx, query, args...), &i); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &i, nil
}

func scanInto(row pgx.Row, i *domain.Identity) error {
	return row.Scan(
		&i.ID,
		&i.Handle,
		&i.DisplayName,
		&i.PasswordHash,
		&i.Role,
		&i.RefreshAnchor,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}

// isUniqueViolation checks if a PostgreSQL error is a unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
