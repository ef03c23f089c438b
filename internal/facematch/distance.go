package facematch

import (
	"fmt"
	"math"
	"strings"

	"github.com/coder/hnsw"
)

// Metric names the dissimilarity function of the extractor's embedding space.
type Metric string

const (
	// Euclidean is the L2 distance, the space dlib-style face encoders are trained for.
	Euclidean Metric = "euclidean"
	// Cosine is 1 - cosine similarity, for encoders that emit direction-only embeddings.
	Cosine Metric = "cosine"
)

// ParseMetric parses a metric name, case-insensitively. Empty means Euclidean.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", Euclidean:
		return Euclidean, nil
	case Cosine:
		return Cosine, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q (want euclidean or cosine)", s)
	}
}

// Distance computes the metric between two embeddings.
func (m Metric) Distance(a, b []float32) float64 {
	if m == Cosine {
		return CosineDistance(a, b)
	}
	return EuclideanDistance(a, b)
}

// graphDistance returns the equivalent HNSW distance function.
func (m Metric) graphDistance() hnsw.DistanceFunc {
	if m == Cosine {
		return hnsw.CosineDistance
	}
	return hnsw.EuclideanDistance
}

// EuclideanDistance computes the L2 distance between two vectors.
// Vectors of different or zero length are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance returns 1 minus the cosine similarity of a and b, a value
// between 0 (same direction) and 2 (opposite). Mismatched or empty vectors
// score the maximum distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}
