package losses

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// PairwiseDistortion evaluates the mip-NeRF 360 distortion of the step
// function (t, w) directly:
//
//	Σ_i Σ_j w_i w_j |m_i - m_j| + Σ_i w_i² (t_{i+1} - t_i) / 3
//
// where m are interval midpoints. t is [..., n+1], w is [..., n]; the result
// is [...]. Memory and time are O(n²) per ray.
func PairwiseDistortion[T tensor.Float, B tensor.Backend](t, w *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	checkDistortionShapes("pairwise_distortion", t, w)
	lo, hi := dropLast(t, -1), dropFirst(t, -1)
	mid := lo.Add(hi).MulScalar(0.5)

	dist := mid.Unsqueeze(-1).Sub(mid.Unsqueeze(-2)).Abs() // [..., n, n]
	inter := w.Mul(w.Unsqueeze(-2).Mul(dist).SumDim(-1, false)).SumDim(-1, false)
	return inter.Add(intraDistortion(lo, hi, w))
}

// EfficientDistortion computes the same value as PairwiseDistortion in O(n)
// using exclusive prefix sums, valid because midpoints are sorted:
//
//	Σ_ij w_i w_j |m_i - m_j| = 2 Σ_i w_i (m_i W_{<i} - (wm)_{<i})
func EfficientDistortion[T tensor.Float, B tensor.Backend](t, w *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	checkDistortionShapes("efficient_distortion", t, w)
	lo, hi := dropLast(t, -1), dropFirst(t, -1)
	mid := lo.Add(hi).MulScalar(0.5)

	wm := w.Mul(mid)
	wBefore := w.CumSum(-1).Sub(w)
	wmBefore := wm.CumSum(-1).Sub(wm)
	inter := w.Mul(mid.Mul(wBefore).Sub(wmBefore)).SumDim(-1, false).MulScalar(2)
	return inter.Add(intraDistortion(lo, hi, w))
}

func intraDistortion[T tensor.Float, B tensor.Backend](lo, hi, w *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return w.Square().Mul(hi.Sub(lo)).SumDim(-1, false).DivScalar(3)
}

func checkDistortionShapes[T tensor.Float, B tensor.Backend](op string, t, w *tensor.Tensor[T, B]) {
	if t.Dims() != w.Dims() || t.Shape().Last() != w.Shape().Last()+1 {
		panic(fmt.Sprintf("%s: boundaries %v do not match weights %v", op, t.Shape(), w.Shape()))
	}
}

// DistortionLoss is the mean distortion of the finest level over all rays.
// Weights are [..., S, 1] per level.
func DistortionLoss[T tensor.Float, B tensor.Backend](weightsList []*tensor.Tensor[T, B], samplesList []*RaySamples[T, B]) *tensor.Tensor[T, B] {
	if len(weightsList) == 0 || len(weightsList) != len(samplesList) {
		panic(fmt.Sprintf("distortion_loss: got %d weight levels and %d sample levels", len(weightsList), len(samplesList)))
	}
	last := len(weightsList) - 1
	c := RaySamplesToSDist(samplesList[last])
	w := weightsList[last].Squeeze(-1)
	return EfficientDistortion(c, w).Mean()
}

// RayDistortionLoss returns the per-ray distortion [..., 1] on the spacing
// midpoints of samples. Exactly one of densities and weights ([..., S, 1])
// must be given; densities are converted with samples.GetWeights.
func RayDistortionLoss[T tensor.Float, B tensor.Backend](samples *RaySamples[T, B], densities, weights *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	switch {
	case densities != nil && weights != nil:
		panic("ray_distortion_loss: cannot use both densities and weights")
	case densities == nil && weights == nil:
		panic("ray_distortion_loss: one of densities or weights is required")
	case densities != nil:
		weights = samples.GetWeights(densities)
	}
	starts, ends := samples.SpacingStarts, samples.SpacingEnds
	if starts == nil || ends == nil {
		panic("ray_distortion_loss: ray samples must have spacing starts and ends")
	}

	mid := starts.Add(ends).MulScalar(0.5) // [..., S, 1]
	midRow := rowVector(mid)               // [..., 1, S]
	pair := weights.Mul(rowVector(weights)).Mul(mid.Sub(midRow).Abs())
	loss := pair.SumDim(-1, false).SumDim(-1, false).Unsqueeze(-1)

	intra := weights.Square().Mul(ends.Sub(starts)).SumDim(-2, false).DivScalar(3)
	return loss.Add(intra)
}

// rowVector turns [..., S, 1] into [..., 1, S].
func rowVector[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	shape := x.Shape().Clone()
	n := len(shape)
	shape[n-2], shape[n-1] = shape[n-1], shape[n-2]
	return x.Reshape(shape...)
}
