package database

import (
	"time"
)

// Identity is an enrolled person: one name bound to one face embedding.
// Records are never mutated after a successful insert.
type Identity struct {
	Name       string
	Embedding  []float32
	EnrolledAt time.Time
}

// Dim returns the dimensionality of the identity's embedding.
func (i Identity) Dim() int {
	return len(i.Embedding)
}

// LoginEntry is one successful authentication recorded in the audit log.
type LoginEntry struct {
	ID        string // uuid assigned on append
	Name      string
	Timestamp time.Time // always UTC
}

// IdentitiesFile is the on-disk document holding all enrolled identities.
type IdentitiesFile struct {
	Version    int              `json:"version"`
	Dim        int              `json:"dim"`
	SavedAt    time.Time        `json:"saved_at"`
	Identities []IdentityRecord `json:"identities"`
}

// IdentityRecord is the serialized form of an Identity.
type IdentityRecord struct {
	Name       string    `json:"name"`
	Embedding  []float32 `json:"embedding"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// LoginHistoryFile is the on-disk document holding the audit log, oldest entry first.
type LoginHistoryFile struct {
	Version int           `json:"version"`
	SavedAt time.Time     `json:"saved_at"`
	Entries []LoginRecord `json:"entries"`
}

// LoginRecord is the serialized form of a LoginEntry.
type LoginRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// File format versions written by this build.
const (
	IdentitiesFileVersion   = 1
	LoginHistoryFileVersion = 1
)
