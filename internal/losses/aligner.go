package losses

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// Aligner finds per-image scale and shift [B] that best map a prediction
// onto a target over the masked pixels of [B, H, W] maps.
type Aligner[T tensor.Float, B tensor.Backend] interface {
	Align(prediction, target, mask *tensor.Tensor[T, B]) (scale, shift *tensor.Tensor[T, B])
}

// ClosedFormAligner solves the 2×2 normal equations of the masked least
// squares problem with tensor ops, so gradients flow through scale and shift.
type ClosedFormAligner[T tensor.Float, B tensor.Backend] struct{}

// Align implements Aligner.
func (ClosedFormAligner[T, B]) Align(prediction, target, mask *tensor.Tensor[T, B]) (scale, shift *tensor.Tensor[T, B]) {
	return NormalizedDepthScaleAndShift(prediction, target, mask)
}

// NormalizedDepthScaleAndShift returns the scale and shift minimizing
// Σ mask·(s·p + b - t)² per image. Images whose system is singular (fewer
// than two distinct valid prediction values) get scale = shift = 0.
func NormalizedDepthScaleAndShift[T tensor.Float, B tensor.Backend](prediction, target, mask *tensor.Tensor[T, B]) (scale, shift *tensor.Tensor[T, B]) {
	checkDepthMaps("normalized_depth_scale_and_shift", prediction, target, mask)

	mp := mask.Mul(prediction)
	a00 := sumHW(mp.Mul(prediction))
	a01 := sumHW(mp)
	a11 := sumHW(mask)
	b0 := sumHW(mp.Mul(target))
	b1 := sumHW(mask.Mul(target))

	det := a00.Mul(a11).Sub(a01.Square())
	valid := det.Abs().GreaterScalar(0)
	safeDet := tensor.Where(valid, det, tensor.OnesLike(det))
	zeros := tensor.ZerosLike(det)

	scale = tensor.Where(valid, a11.Mul(b0).Sub(a01.Mul(b1)).Div(safeDet), zeros)
	shift = tensor.Where(valid, a00.Mul(b1).Sub(a01.Mul(b0)).Div(safeDet), zeros)
	return scale, shift
}

// LeastSquaresAligner solves each image's masked regression t ≈ s·p + b with
// a QR decomposition. The result is a constant for the gradient tape.
// Images whose valid pixels hold fewer than two distinct prediction values
// get scale = shift = 0.
type LeastSquaresAligner[T tensor.Float, B tensor.Backend] struct{}

// Align implements Aligner.
func (LeastSquaresAligner[T, B]) Align(prediction, target, mask *tensor.Tensor[T, B]) (scale, shift *tensor.Tensor[T, B]) {
	checkDepthMaps("least_squares_align", prediction, target, mask)
	shape := prediction.Shape()
	batch, pixels := shape[0], shape[1]*shape[2]
	p, t, m := prediction.Data(), target.Data(), mask.Data()

	scales := make([]T, batch)
	shifts := make([]T, batch)
	for i := range batch {
		var rows, rhs []float64
		distinct := false
		for j := i * pixels; j < (i+1)*pixels; j++ {
			if m[j] == 0 {
				continue
			}
			if len(rows) > 0 && float64(p[j]) != rows[0] {
				distinct = true
			}
			rows = append(rows, float64(p[j]), 1)
			rhs = append(rhs, float64(t[j]))
		}
		if !distinct {
			continue
		}
		var qr mat.QR
		qr.Factorize(mat.NewDense(len(rhs), 2, rows))
		var x mat.Dense
		if err := qr.SolveTo(&x, false, mat.NewDense(len(rhs), 1, rhs)); err != nil {
			continue
		}
		scales[i], shifts[i] = T(x.At(0, 0)), T(x.At(1, 0))
	}

	b := prediction.Backend()
	return tensor.MustFromSlice(scales, tensor.Shape{batch}, b), tensor.MustFromSlice(shifts, tensor.Shape{batch}, b)
}

// NewAligner returns the aligner named "closed_form" or "least_squares".
func NewAligner[T tensor.Float, B tensor.Backend](name string) (Aligner[T, B], error) {
	switch name {
	case "closed_form", "":
		return ClosedFormAligner[T, B]{}, nil
	case "least_squares":
		return LeastSquaresAligner[T, B]{}, nil
	default:
		return nil, fmt.Errorf("aligner %q: %w", name, ErrNotImplemented)
	}
}

func checkDepthMaps[T tensor.Float, B tensor.Backend](op string, prediction, target, mask *tensor.Tensor[T, B]) {
	requireRank(op, "prediction", prediction, 3)
	requireSameShape(op, [2]string{"prediction", "target"}, prediction, target)
	requireSameShape(op, [2]string{"prediction", "mask"}, prediction, mask)
}
