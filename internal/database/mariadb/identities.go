package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-login/internal/database"
)

// duplicateEntry is the MySQL/MariaDB error number for unique key violations.
const duplicateEntry = 1062

const identitiesLock = "face_login.identities"

// IdentityRepository provides MariaDB-backed identity storage.
type IdentityRepository struct {
	pool *Pool
	dim  int
}

// NewIdentityRepository creates a new MariaDB identity repository.
func NewIdentityRepository(pool *Pool, dim int) *IdentityRepository {
	return &IdentityRepository{pool: pool, dim: dim}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (database.Identity, error) {
	var id database.Identity
	var raw []byte
	if err := row.Scan(&id.Name, &raw, &id.EnrolledAt); err != nil {
		return database.Identity{}, fmt.Errorf("%w: scan identity: %w", database.ErrStorage, err)
	}
	if err := json.Unmarshal(raw, &id.Embedding); err != nil {
		return database.Identity{}, fmt.Errorf("%w: decode embedding for %q: %w", database.ErrStorage, id.Name, err)
	}
	id.EnrolledAt = id.EnrolledAt.UTC()
	return id, nil
}

// LookupAll returns every identity in enrollment order.
func (r *IdentityRepository) LookupAll(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx, "SELECT name, embedding, enrolled_at FROM identities ORDER BY id")
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

// Get retrieves an identity by case-insensitive name, returns nil if not found.
func (r *IdentityRepository) Get(ctx context.Context, name string) (*database.Identity, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT name, embedding, enrolled_at FROM identities WHERE folded_name = ?", database.FoldName(name))
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
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM identities WHERE folded_name = ?)", database.FoldName(name),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check identity exists: %w", database.ErrStorage, err)
	}
	return exists, nil
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count identities: %w", database.ErrStorage, err)
	}
	return count, nil
}

// Insert stores a new identity under a named lock; the unique key on
// folded_name still rejects anything that slips past the existence check.
func (r *IdentityRepository) Insert(ctx context.Context, identity database.Identity) error {
	name := strings.TrimSpace(identity.Name)
	key := database.FoldName(name)
	if key == "" {
		return database.ErrEmptyName
	}
	if len(identity.Embedding) == 0 || (r.dim > 0 && len(identity.Embedding) != r.dim) {
		return fmt.Errorf("%w: have %d, want %d", database.ErrDimensionMismatch, len(identity.Embedding), r.dim)
	}

	data, err := json.Marshal(identity.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	enrolledAt := identity.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now()
	}

	var domainErr error
	err = r.pool.withNamedLock(ctx, identitiesLock, func(conn *sql.Conn) error {
		var existingDim int
		err := conn.QueryRowContext(ctx, "SELECT dim FROM identities ORDER BY id LIMIT 1").Scan(&existingDim)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read dimension: %w", err)
		case existingDim != len(identity.Embedding):
			domainErr = fmt.Errorf("%w: have %d, want %d",
				database.ErrDimensionMismatch, len(identity.Embedding), existingDim)
			return nil
		}

		_, err = conn.ExecContext(ctx, `
			INSERT INTO identities (name, folded_name, embedding, dim, enrolled_at)
			VALUES (?, ?, ?, ?, ?)
		`, name, key, data, len(identity.Embedding), enrolledAt.UTC())
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == duplicateEntry {
			domainErr = database.ErrDuplicateIdentity
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", database.ErrStorage, err)
	}
	return domainErr
}
