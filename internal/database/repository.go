package database

import (
	"context"
	"time"
)

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// LookupAll returns a consistent snapshot of all identities in enrollment order.
	// Callers must treat the returned embeddings as read-only.
	LookupAll(ctx context.Context) ([]Identity, error)
	// Get retrieves an identity by case-insensitive name, returns nil if not found
	Get(ctx context.Context, name string) (*Identity, error)
	// ContainsFold checks if an identity with the same case-folded name exists
	ContainsFold(ctx context.Context, name string) (bool, error)
	// Count returns the number of enrolled identities
	Count(ctx context.Context) (int, error)
}

// IdentityWriter provides write access to enrolled identities.
type IdentityWriter interface {
	IdentityReader

	// Insert atomically checks the case-folded name for collisions and stores the identity.
	// It returns only after the identity is durable. Fails with ErrDuplicateIdentity,
	// ErrDimensionMismatch or an error wrapping ErrStorage.
	Insert(ctx context.Context, identity Identity) error
}

// LoginReader provides read-only access to the login audit log
type LoginReader interface {
	// Recent returns a snapshot of the audit log, newest entry first
	Recent(ctx context.Context) ([]LoginEntry, error)
}

// LoginWriter appends to the login audit log.
type LoginWriter interface {
	LoginReader

	// Append durably records a successful authentication, evicting the oldest
	// entries beyond AuditLogCapacity.
	Append(ctx context.Context, name string, timestamp time.Time) (LoginEntry, error)
}
