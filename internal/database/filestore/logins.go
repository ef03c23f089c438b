package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-login/internal/database"
)

// LoginHistory is a file-backed, bounded database.LoginWriter.
type LoginHistory struct {
	mu       sync.RWMutex
	path     string
	capacity int
	entries  []database.LoginEntry // oldest first, copy-on-write
	now      func() time.Time
}

// OpenLoginHistory loads the login history file at path, or starts empty if it does not exist.
func OpenLoginHistory(path string) (*LoginHistory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %w", database.ErrStorage, err)
	}

	h := &LoginHistory{path: path, capacity: database.AuditLogCapacity, now: time.Now}
	if err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *LoginHistory) load() error {
	data, err := os.ReadFile(h.path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading login history: %w", database.ErrStorage, err)
	}

	var doc database.LoginHistoryFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", h.path, err)
	}
	if doc.Version < 1 || doc.Version > database.LoginHistoryFileVersion {
		return fmt.Errorf("unsupported login history file version %d", doc.Version)
	}

	records := doc.Entries
	if len(records) > h.capacity {
		records = records[len(records)-h.capacity:]
	}
	entries := make([]database.LoginEntry, len(records))
	for i, rec := range records {
		entries[i] = database.LoginEntry{ID: rec.ID, Name: rec.Name, Timestamp: rec.Timestamp.UTC()}
	}
	h.entries = entries
	return nil
}

func (h *LoginHistory) persist(entries []database.LoginEntry) error {
	doc := database.LoginHistoryFile{
		Version: database.LoginHistoryFileVersion,
		SavedAt: h.now().UTC(),
		Entries: make([]database.LoginRecord, len(entries)),
	}
	for i, e := range entries {
		doc.Entries[i] = database.LoginRecord{ID: e.ID, Name: e.Name, Timestamp: e.Timestamp}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding login history: %w", err)
	}
	if err := renameio.WriteFile(h.path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", h.path, err)
	}
	return nil
}

// Append records a successful login. Timestamps never go backwards: an entry
// stamped earlier than its predecessor takes the predecessor's timestamp.
func (h *LoginHistory) Append(ctx context.Context, name string, timestamp time.Time) (database.LoginEntry, error) {
	if err := ctx.Err(); err != nil {
		return database.LoginEntry{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ts := timestamp.UTC()
	if n := len(h.entries); n > 0 && ts.Before(h.entries[n-1].Timestamp) {
		ts = h.entries[n-1].Timestamp
	}
	entry := database.LoginEntry{ID: uuid.NewString(), Name: name, Timestamp: ts}

	keep := h.entries
	if len(keep) >= h.capacity {
		keep = keep[len(keep)-h.capacity+1:]
	}
	next := make([]database.LoginEntry, 0, len(keep)+1)
	next = append(next, keep...)
	next = append(next, entry)

	if err := h.persist(next); err != nil {
		return database.LoginEntry{}, fmt.Errorf("%w: %w", database.ErrStorage, err)
	}
	h.entries = next
	return entry, nil
}

// Recent returns the retained entries, newest first.
func (h *LoginHistory) Recent(ctx context.Context) ([]database.LoginEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]database.LoginEntry, len(h.entries))
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out, nil
}
