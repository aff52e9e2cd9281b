// Package embeddings provides utilities for embedding vectors (L2 normalization, cosine distance).
package embeddings

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrZeroNorm is returned when a vector has zero magnitude and has no direction.
	ErrZeroNorm = errors.New("embeddings: vector norm is zero")
	// ErrNonFinite is returned when a vector contains NaN or infinite components.
	ErrNonFinite = errors.New("embeddings: vector has non-finite components")
	// ErrDimensionMismatch is returned when a vector does not have the expected length.
	ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")
)

// NormalizeL2 normalizes the vector to unit length in place.
// The vector is left untouched when an error is returned.
func NormalizeL2(vector []float32) error {
	var sumSquares float64

	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrNonFinite
		}

		sumSquares += f * f
	}

	if sumSquares == 0 {
		return ErrZeroNorm
	}

	magnitude := math.Sqrt(sumSquares)
	if math.IsInf(magnitude, 0) {
		return ErrNonFinite
	}

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}

	return nil
}

// Prepare returns a unit-length copy of vector after checking it has
// dimensions components. The input is not modified.
func Prepare(vector []float32, dimensions int) ([]float32, error) {
	if len(vector) != dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dimensions)
	}

	out := slices.Clone(vector)
	if err := NormalizeL2(out); err != nil {
		return nil, err
	}

	return out, nil
}

// Norm returns the Euclidean length of the vector.
func Norm(vector []float32) float64 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// CosineDistance returns 1 - cos(a, b). For unit vectors this is 1 - dot(a, b),
// matching pgvector's <=> operator.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0, ErrZeroNorm
	}

	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}
