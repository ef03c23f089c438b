// Package fingerprint turns camera frames into face embeddings: it decodes
// browser data URLs, normalises images and calls the embedding server.
package fingerprint
