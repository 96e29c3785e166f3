package losses

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// Frustums holds the metric extent of every sample along its ray.
type Frustums[T tensor.Float, B tensor.Backend] struct {
	Starts *tensor.Tensor[T, B] // [..., S, 1]
	Ends   *tensor.Tensor[T, B] // [..., S, 1]
}

// RaySamples describes the samples a renderer evaluated along a batch of rays.
//
// SpacingStarts and SpacingEnds are the same intervals in the normalized
// spacing the proposal sampler works in. Deltas defaults to Ends - Starts.
type RaySamples[T tensor.Float, B tensor.Backend] struct {
	Frustums      Frustums[T, B]
	SpacingStarts *tensor.Tensor[T, B] // [..., S, 1]
	SpacingEnds   *tensor.Tensor[T, B] // [..., S, 1]
	Deltas        *tensor.Tensor[T, B] // [..., S, 1], optional
}

// NewRaySamples builds samples whose metric and normalized intervals both
// come from the boundaries bins [..., S+1].
func NewRaySamples[T tensor.Float, B tensor.Backend](bins *tensor.Tensor[T, B]) *RaySamples[T, B] {
	starts := dropLast(bins, -1).Unsqueeze(-1)
	ends := dropFirst(bins, -1).Unsqueeze(-1)
	return &RaySamples[T, B]{
		Frustums:      Frustums[T, B]{Starts: starts, Ends: ends},
		SpacingStarts: starts,
		SpacingEnds:   ends,
	}
}

// NumSamples returns S.
func (r *RaySamples[T, B]) NumSamples() int {
	return r.SpacingStarts.Shape()[r.SpacingStarts.Dims()-2]
}

func (r *RaySamples[T, B]) deltas() *tensor.Tensor[T, B] {
	if r.Deltas != nil {
		return r.Deltas
	}
	return r.Frustums.Ends.Sub(r.Frustums.Starts)
}

// GetWeights converts per-sample densities [..., S, 1] into volume rendering
// weights:
//
//	w_i = (1 - exp(-σ_i δ_i)) · exp(-Σ_{j<i} σ_j δ_j)
func (r *RaySamples[T, B]) GetWeights(densities *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	deltas := r.deltas()
	if !densities.Shape().Equal(deltas.Shape()) {
		panic(fmt.Sprintf("get_weights: densities shape %v != samples shape %v", densities.Shape(), deltas.Shape()))
	}
	deltaDensity := deltas.Mul(densities)
	alphas := deltaDensity.Neg().Exp().Neg().AddScalar(1)

	n := deltaDensity.Shape()[deltaDensity.Dims()-2]
	zeroShape := deltaDensity.Shape().Clone()
	zeroShape[len(zeroShape)-2] = 1
	transmittance := tensor.Zeros[T](zeroShape, densities.Backend())
	if n > 1 {
		accumulated := deltaDensity.Narrow(-2, 0, n-1).CumSum(-2)
		transmittance = tensor.Cat([]*tensor.Tensor[T, B]{transmittance, accumulated}, -2)
	}
	return alphas.Mul(transmittance.Neg().Exp())
}

// RaySamplesToSDist returns the normalized interval boundaries [..., S+1]:
// every spacing start followed by the last spacing end.
func RaySamplesToSDist[T tensor.Float, B tensor.Backend](samples *RaySamples[T, B]) *tensor.Tensor[T, B] {
	starts := samples.SpacingStarts.Squeeze(-1)
	ends := samples.SpacingEnds.Squeeze(-1)
	return tensor.Cat([]*tensor.Tensor[T, B]{starts, ends.Narrow(-1, -1, 1)}, -1)
}
