package database

// AuditLogCapacity is the number of most recent successful logins retained.
const AuditLogCapacity = 100

// MaxNameLength bounds identity names so every backend can index them.
const MaxNameLength = 255

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100
)
