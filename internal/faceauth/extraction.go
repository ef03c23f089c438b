package faceauth

import "context"

// Extraction is what the feature extractor made of one image: an embedding per
// detected face in detection order, or the reason the image could not be used.
type Extraction struct {
	Embeddings [][]float32
	Err        error
}

// Faces returns the number of detected faces.
func (e Extraction) Faces() int {
	return len(e.Embeddings)
}

// Extractor turns raw image bytes into face embeddings. Image-level problems
// are reported through Extraction.Err; the returned error is reserved for
// failures that say nothing about the image and should wrap ErrExtractorUnavailable.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (Extraction, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, image []byte) (Extraction, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, image []byte) (Extraction, error) {
	return f(ctx, image)
}
