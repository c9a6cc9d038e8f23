package vector

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|). A zero-magnitude or
// mismatched pair yields 0 rather than NaN, so callers always see a
// deterministic value.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := vek32.Norm(a)
	nb := vek32.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := vek32.Dot(a, b) / (na * nb)
	if math.IsNaN(float64(sim)) {
		return 0
	}
	return sim
}

// CosineDistance returns 1 - CosineSimilarity: 0 means identical, larger is
// less similar. Degenerate vectors get the maximal distance 1.
func CosineDistance(a, b []float32) float32 {
	return 1 - CosineSimilarity(a, b)
}
