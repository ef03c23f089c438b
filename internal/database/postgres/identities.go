package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
	dim  int // 0 lets the first insert fix the dimension
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool, dim int) *IdentityRepository {
	return &IdentityRepository{pool: pool, dim: dim}
}

// LookupAll returns every identity in enrollment order.
func (r *IdentityRepository) LookupAll(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, embedding, enrolled_at
		FROM identities
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query identities: %w", database.ErrStorage, err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate identities: %w", database.ErrStorage, err)
	}
	return identities, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (database.Identity, error) {
	var id database.Identity
	var vec pgvector.Vector
	if err := row.Scan(&id.Name, &vec, &id.EnrolledAt); err != nil {
		return database.Identity{}, fmt.Errorf("%w: scan identity: %w", database.ErrStorage, err)
	}
	id.Embedding = vec.Slice()
	id.EnrolledAt = id.EnrolledAt.UTC()
	return id, nil
}

// Get retrieves an identity by case-insensitive name, returns nil if not found.
func (r *IdentityRepository) Get(ctx context.Context, name string) (*database.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT name, embedding, enrolled_at
		FROM identities
		WHERE folded_name = $1
	`, database.FoldName(name))

	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ContainsFold checks whether the case-folded name is enrolled.
func (r *IdentityRepository) ContainsFold(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM identities WHERE folded_name = $1)", database.FoldName(name),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check identity exists: %w", database.ErrStorage, err)
	}
	return exists, nil
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count identities: %w", database.ErrStorage, err)
	}
	return count, nil
}

// Insert stores a new identity. Writers are serialized by a table lock that
// still admits readers; the unique index on folded_name is the final arbiter.
func (r *IdentityRepository) Insert(ctx context.Context, identity database.Identity) error {
	name := strings.TrimSpace(identity.Name)
	key := database.FoldName(name)
	if key == "" {
		return database.ErrEmptyName
	}
	if len(identity.Embedding) == 0 || (r.dim > 0 && len(identity.Embedding) != r.dim) {
		return fmt.Errorf("%w: have %d, want %d", database.ErrDimensionMismatch, len(identity.Embedding), r.dim)
	}

	enrolledAt := identity.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now()
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", database.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "LOCK TABLE identities IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return fmt.Errorf("%w: lock identities: %w", database.ErrStorage, err)
	}

	var existingDim int
	err = tx.QueryRowContext(ctx, "SELECT dim FROM identities ORDER BY id LIMIT 1").Scan(&existingDim)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("%w: read dimension: %w", database.ErrStorage, err)
	case existingDim != len(identity.Embedding):
		return fmt.Errorf("%w: have %d, want %d", database.ErrDimensionMismatch, len(identity.Embedding), existingDim)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO identities (name, folded_name, embedding, dim, enrolled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (folded_name) DO NOTHING
	`, name, key, pgvector.NewVector(identity.Embedding), len(identity.Embedding), enrolledAt.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return database.ErrDuplicateIdentity
		}
		return fmt.Errorf("%w: insert identity: %w", database.ErrStorage, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected: %w", database.ErrStorage, err)
	}
	if inserted == 0 {
		return database.ErrDuplicateIdentity
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit identity: %w", database.ErrStorage, err)
	}
	return nil
}
