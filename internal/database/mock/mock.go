// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-login/internal/database"
)

// MockIdentityStore is a mock implementation of database.IdentityWriter
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities []database.Identity

	// Error injection
	LookupAllError error
	GetError       error
	ContainsError  error
	CountError     error
	InsertError    error

	// InsertCalls counts Insert invocations, including failed ones
	InsertCalls int
}

// NewMockIdentityStore creates a new mock identity store
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{}
}

// AddIdentity adds an identity to the mock store without any checks
func (m *MockIdentityStore) AddIdentity(identity database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = append(m.identities, identity)
}

// LookupAll returns all identities in insertion order
func (m *MockIdentityStore) LookupAll(ctx context.Context) ([]database.Identity, error) {
	if m.LookupAllError != nil {
		return nil, m.LookupAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.identities), nil
}

// Get retrieves an identity by case-insensitive name
func (m *MockIdentityStore) Get(ctx context.Context, name string) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.identities {
		if database.EqualFold(id.Name, name) {
			found := id
			return &found, nil
		}
	}
	return nil, nil
}

// ContainsFold checks if an identity exists
func (m *MockIdentityStore) ContainsFold(ctx context.Context, name string) (bool, error) {
	if m.ContainsError != nil {
		return false, m.ContainsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.containsLocked(name), nil
}

func (m *MockIdentityStore) containsLocked(name string) bool {
	for _, id := range m.identities {
		if database.EqualFold(id.Name, name) {
			return true
		}
	}
	return false
}

// Count returns the number of identities
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// Insert stores an identity unless the case-folded name is taken
func (m *MockIdentityStore) Insert(ctx context.Context, identity database.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertError != nil {
		return m.InsertError
	}
	if database.FoldName(identity.Name) == "" {
		return database.ErrEmptyName
	}
	if m.containsLocked(identity.Name) {
		return database.ErrDuplicateIdentity
	}
	if len(m.identities) > 0 && len(m.identities[0].Embedding) != len(identity.Embedding) {
		return fmt.Errorf("%w: have %d, want %d",
			database.ErrDimensionMismatch, len(identity.Embedding), len(m.identities[0].Embedding))
	}
	identity.Name = strings.TrimSpace(identity.Name)
	if identity.EnrolledAt.IsZero() {
		identity.EnrolledAt = time.Now().UTC()
	}
	m.identities = append(m.identities, identity)
	return nil
}

// MockLoginHistory is a mock implementation of database.LoginWriter
type MockLoginHistory struct {
	mu      sync.RWMutex
	entries []database.LoginEntry // oldest first

	// Error injection
	AppendError error
	RecentError error
}

// NewMockLoginHistory creates a new mock login history
func NewMockLoginHistory() *MockLoginHistory {
	return &MockLoginHistory{}
}

// Append records a login, keeping at most database.AuditLogCapacity entries
func (m *MockLoginHistory) Append(ctx context.Context, name string, timestamp time.Time) (database.LoginEntry, error) {
	if m.AppendError != nil {
		return database.LoginEntry{}, m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := database.LoginEntry{ID: uuid.NewString(), Name: name, Timestamp: timestamp.UTC()}
	m.entries = append(m.entries, entry)
	if len(m.entries) > database.AuditLogCapacity {
		m.entries = slices.Clone(m.entries[len(m.entries)-database.AuditLogCapacity:])
	}
	return entry, nil
}

// Recent returns entries newest first
func (m *MockLoginHistory) Recent(ctx context.Context) ([]database.LoginEntry, error) {
	if m.RecentError != nil {
		return nil, m.RecentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.entries)
	slices.Reverse(out)
	return out, nil
}

// Len returns the number of stored entries
func (m *MockLoginHistory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
