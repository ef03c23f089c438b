package facematch

import (
	"math"
	"testing"
)

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit apart", []float32{0, 0}, []float32{1, 0}, 1},
		{"3-4-5 triangle", []float32{0, 0}, []float32{3, 4}, 5},
		{"symmetric", []float32{3, 4}, []float32{0, 0}, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := EuclideanDistance(tc.a, tc.b)
			if math.Abs(result-tc.expected) > 1e-9 {
				t.Errorf("EuclideanDistance(%v, %v) = %v; want %v", tc.a, tc.b, result, tc.expected)
			}
		})
	}
}

func TestEuclideanDistance_InvalidInput(t *testing.T) {
	if d := EuclideanDistance([]float32{1, 2}, []float32{1}); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for length mismatch, got %v", d)
	}
	if d := EuclideanDistance(nil, nil); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for empty vectors, got %v", d)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"scaled", []float32{1, 1}, []float32{2, 2}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
		{"empty", nil, nil, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := CosineDistance(tc.a, tc.b)
			if math.Abs(result-tc.expected) > 1e-6 {
				t.Errorf("CosineDistance(%v, %v) = %v; want %v", tc.a, tc.b, result, tc.expected)
			}
		})
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		input   string
		want    Metric
		wantErr bool
	}{
		{"", Euclidean, false},
		{"euclidean", Euclidean, false},
		{"Cosine", Cosine, false},
		{" COSINE ", Cosine, false},
		{"manhattan", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseMetric(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseMetric(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseMetric(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
