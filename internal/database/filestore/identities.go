// Package filestore keeps identities and the login audit log in versioned JSON
// files. Every write replaces the whole file atomically, and the in-memory
// state is only swapped after the write succeeded.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-login/internal/database"
)

// Default file names inside the data directory.
const (
	IdentitiesFileName   = "identities.json"
	LoginHistoryFileName = "login_history.json"
)

// IdentityStore is a file-backed database.IdentityWriter.
type IdentityStore struct {
	mu         sync.RWMutex
	path       string
	dim        int                 // 0 until fixed by config or the first insert
	identities []database.Identity // copy-on-write, enrollment order
	folded     []string            // folded names, parallel to identities
	now        func() time.Time
}

// OpenIdentityStore loads the identities file at path, or starts empty if it does not exist.
// A non-zero dim fixes the embedding dimensionality up front.
func OpenIdentityStore(path string, dim int) (*IdentityStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %w", database.ErrStorage, err)
	}

	s := &IdentityStore{path: path, dim: dim, now: time.Now}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *IdentityStore) load() error {
	data, err := os.ReadFile(s.path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading identities: %w", database.ErrStorage, err)
	}

	var doc database.IdentitiesFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if doc.Version < 1 || doc.Version > database.IdentitiesFileVersion {
		return fmt.Errorf("unsupported identities file version %d", doc.Version)
	}

	dim := s.dim
	if dim == 0 {
		dim = doc.Dim
	}

	identities := make([]database.Identity, 0, len(doc.Identities))
	folded := make([]string, 0, len(doc.Identities))
	seen := make(map[string]struct{}, len(doc.Identities))
	for _, rec := range doc.Identities {
		key := database.FoldName(rec.Name)
		if key == "" {
			return fmt.Errorf("identities file contains an empty name")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("identities file contains duplicate name %q", rec.Name)
		}
		if dim == 0 {
			dim = len(rec.Embedding)
		}
		if len(rec.Embedding) != dim {
			return fmt.Errorf("identity %q: %w (have %d, want %d)",
				rec.Name, database.ErrDimensionMismatch, len(rec.Embedding), dim)
		}
		seen[key] = struct{}{}
		identities = append(identities, database.Identity{
			Name:       rec.Name,
			Embedding:  rec.Embedding,
			EnrolledAt: rec.EnrolledAt,
		})
		folded = append(folded, key)
	}

	s.identities = identities
	s.folded = folded
	s.dim = dim
	return nil
}

// persist writes a full snapshot. The caller holds the write lock.
func (s *IdentityStore) persist(identities []database.Identity, dim int) error {
	doc := database.IdentitiesFile{
		Version:    database.IdentitiesFileVersion,
		Dim:        dim,
		SavedAt:    s.now().UTC(),
		Identities: make([]database.IdentityRecord, len(identities)),
	}
	for i, id := range identities {
		doc.Identities[i] = database.IdentityRecord{
			Name:       id.Name,
			Embedding:  id.Embedding,
			EnrolledAt: id.EnrolledAt,
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding identities: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// LookupAll returns the identities in enrollment order.
func (s *IdentityStore) LookupAll(ctx context.Context) ([]database.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.identities), nil
}

// Get retrieves an identity by case-insensitive name.
func (s *IdentityStore) Get(ctx context.Context, name string) (*database.Identity, error) {
	key := database.FoldName(name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := slices.Index(s.folded, key); i >= 0 {
		id := s.identities[i]
		return &id, nil
	}
	return nil, nil
}

// ContainsFold checks whether the case-folded name is enrolled.
func (s *IdentityStore) ContainsFold(ctx context.Context, name string) (bool, error) {
	key := database.FoldName(name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.folded, key), nil
}

// Count returns the number of enrolled identities.
func (s *IdentityStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), nil
}

// Dim returns the fixed embedding dimensionality, or 0 if nothing fixed it yet.
func (s *IdentityStore) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Insert stores a new identity. The duplicate check is a linear scan over the
// folded names, done under the same lock as the write.
func (s *IdentityStore) Insert(ctx context.Context, identity database.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := strings.TrimSpace(identity.Name)
	key := database.FoldName(name)
	if key == "" {
		return database.ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.folded, key) {
		return database.ErrDuplicateIdentity
	}

	dim := s.dim
	if dim == 0 {
		dim = len(identity.Embedding)
	}
	if dim == 0 || len(identity.Embedding) != dim {
		return fmt.Errorf("%w: have %d, want %d", database.ErrDimensionMismatch, len(identity.Embedding), dim)
	}

	enrolledAt := identity.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = s.now()
	}
	record := database.Identity{
		Name:       name,
		Embedding:  slices.Clone(identity.Embedding),
		EnrolledAt: enrolledAt.UTC(),
	}

	// Clip forces append to allocate, so snapshots handed to readers stay intact.
	next := append(slices.Clip(s.identities), record)
	if err := s.persist(next, dim); err != nil {
		return fmt.Errorf("%w: %w", database.ErrStorage, err)
	}

	s.identities = next
	s.folded = append(slices.Clip(s.folded), key)
	s.dim = dim
	return nil
}
