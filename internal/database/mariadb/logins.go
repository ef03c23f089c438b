package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-login/internal/database"
)

const loginHistoryLock = "face_login.login_history"

// LoginRepository provides MariaDB-backed login audit storage.
type LoginRepository struct {
	pool     *Pool
	capacity int
}

// NewLoginRepository creates a new MariaDB login repository.
func NewLoginRepository(pool *Pool) *LoginRepository {
	return &LoginRepository{pool: pool, capacity: database.AuditLogCapacity}
}

// Append records a login and drops everything older than the newest capacity entries.
func (r *LoginRepository) Append(ctx context.Context, name string, timestamp time.Time) (database.LoginEntry, error) {
	var entry database.LoginEntry
	err := r.pool.withNamedLock(ctx, loginHistoryLock, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // no-op after commit

		ts := timestamp.UTC().Truncate(time.Microsecond)
		var last time.Time
		err = tx.QueryRowContext(ctx, "SELECT logged_in_at FROM login_history ORDER BY id DESC LIMIT 1").Scan(&last)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read last login: %w", err)
		case ts.Before(last):
			ts = last.UTC()
		}

		entry = database.LoginEntry{ID: uuid.NewString(), Name: name, Timestamp: ts}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO login_history (entry_id, identity_name, logged_in_at) VALUES (?, ?, ?)",
			entry.ID, entry.Name, entry.Timestamp,
		); err != nil {
			return fmt.Errorf("insert login: %w", err)
		}

		// Oldest id still inside the window; everything below it goes.
		var floor int64
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM login_history ORDER BY id DESC LIMIT 1 OFFSET ?", r.capacity-1,
		).Scan(&floor)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("find trim boundary: %w", err)
		default:
			if _, err := tx.ExecContext(ctx, "DELETE FROM login_history WHERE id < ?", floor); err != nil {
				return fmt.Errorf("trim login history: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit login: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.LoginEntry{}, fmt.Errorf("%w: %w", database.ErrStorage, err)
	}
	return entry, nil
}

// Recent returns the retained entries, newest first.
func (r *LoginRepository) Recent(ctx context.Context) ([]database.LoginEntry, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT entry_id, identity_name, logged_in_at
		FROM login_history
		ORDER BY id DESC
		LIMIT ?
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
