package match

import (
	"math"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
)

// Distance is the Euclidean distance between two descriptors of equal length.
func Distance(a, b model.Descriptor) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Similarity is 1 - Distance, clamped to [0,1].
func Similarity(a, b model.Descriptor) float64 {
	return clamp01(1 - Distance(a, b))
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
