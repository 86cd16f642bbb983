package badger

import "math"

// l2Distance returns the Euclidean distance between two vectors. Vectors
// of mismatched dimensionality are treated as maximally distant so a
// model change never silently matches stale rows.
func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
