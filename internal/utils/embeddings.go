package utils

import (
	"fmt"
	"math"
)

// L2Distance returns the Euclidean distance between two vectors of equal length.
// This is the same metric pgvector's <-> operator uses.
func L2Distance(vec1, vec2 []float32) (float64, error) {
	if len(vec1) == 0 || len(vec2) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	if len(vec1) != len(vec2) {
		return 0, fmt.Errorf("vectors must have the same dimension (%d != %d)", len(vec1), len(vec2))
	}
	var sumOfSquares float64
	for i := range vec1 {
		d := float64(vec1[i]) - float64(vec2[i])
		sumOfSquares += d * d
	}
	return math.Sqrt(sumOfSquares), nil
}
