package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier[T tensor.Float, B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[T, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Rand[T](shape, -bound, bound, rng, backend)
}
