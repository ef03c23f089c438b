// Package facematch compares face embeddings: distance metrics, the exact
// best-match scan used for login decisions, and an HNSW index for finding
// look-alike identities.
package facematch
