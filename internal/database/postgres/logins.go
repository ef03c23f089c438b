package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-login/internal/database"
)

// LoginRepository provides PostgreSQL-backed login audit storage.
type LoginRepository struct {
	pool     *Pool
	capacity int
}

// NewLoginRepository creates a new PostgreSQL login repository.
func NewLoginRepository(pool *Pool) *LoginRepository {
	return &LoginRepository{pool: pool, capacity: database.AuditLogCapacity}
}

// Append records a login and trims the table to the newest entries in the same transaction.
func (r *LoginRepository) Append(ctx context.Context, name string, timestamp time.Time) (database.LoginEntry, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return database.LoginEntry{}, fmt.Errorf("%w: %w", database.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "LOCK TABLE login_history IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return database.LoginEntry{}, fmt.Errorf("%w: lock login history: %w", database.ErrStorage, err)
	}

	ts := timestamp.UTC().Truncate(time.Microsecond) // TIMESTAMPTZ precision
	var last time.Time
	err = tx.QueryRowContext(ctx, "SELECT logged_in_at FROM login_history ORDER BY id DESC LIMIT 1").Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return database.LoginEntry{}, fmt.Errorf("%w: read last login: %w", database.ErrStorage, err)
	case ts.Before(last):
		ts = last.UTC()
	}

	entry := database.LoginEntry{ID: uuid.NewString(), Name: name, Timestamp: ts}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO login_history (entry_id, identity_name, logged_in_at)
		VALUES ($1, $2, $3)
	`, entry.ID, entry.Name, entry.Timestamp); err != nil {
		return database.LoginEntry{}, fmt.Errorf("%w: insert login: %w", database.ErrStorage, err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM login_history
		WHERE id NOT IN (SELECT id FROM login_history ORDER BY id DESC LIMIT $1)
	`, r.capacity); err != nil {
		return database.LoginEntry{}, fmt.Errorf("%w: trim login history: %w", database.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return database.LoginEntry{}, fmt.Errorf("%w: commit login: %w", database.ErrStorage, err)
	}
	return entry, nil
}

// Recent returns the retained logins, newest first.
func (r *LoginRepository) Recent(ctx context.Context) ([]database.LoginEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT entry_id, identity_name, logged_in_at
		FROM login_history
		ORDER BY id DESC
		LIMIT $1
	`, r.capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: query login history: %w", database.ErrStorage, err)
	}
	defer rows.Close()

	entries := make([]database.LoginEntry, 0, r.capacity)
	for rows.Next() {
		var e database.LoginEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan login: %w", database.ErrStorage, err)
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate login history: %w", database.ErrStorage, err)
	}
	return entries, nil
}
