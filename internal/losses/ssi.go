package losses

import (
	"fmt"
	"strings"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// MiDaSMSELoss is the data term of MiDaS: the masked squared error per image,
// reduced with twice the valid pixel count.
//
// prediction, target and mask are [B, H, W]; mask holds 0/1 values.
type MiDaSMSELoss[T tensor.Float, B tensor.Backend] struct {
	Reduction Reduction[T, B]
}

// Forward returns the 0-d loss.
func (l *MiDaSMSELoss[T, B]) Forward(prediction, target, mask *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	checkDepthMaps("midas_mse_loss", prediction, target, mask)
	counts := sumHW(mask)
	imageLoss := sumHW(prediction.Sub(target).Square().Mul(mask))
	return reductionOrDefault(l.Reduction).Reduce(imageLoss, counts.MulScalar(2))
}

// GradientNorm selects how GradientLoss penalizes residual differences.
type GradientNorm int

const (
	// L2Gradient sums squared differences.
	L2Gradient GradientNorm = iota
	// L1Gradient uses absolute differences (MiDaS, Eq. 11).
	L1Gradient
)

// String returns "l1" or "l2".
func (n GradientNorm) String() string {
	if n == L1Gradient {
		return "l1"
	}
	return "l2"
}

// ParseGradientNorm accepts "l1" and "l2" in any case.
func ParseGradientNorm(s string) (GradientNorm, error) {
	switch strings.ToLower(s) {
	case "l2", "":
		return L2Gradient, nil
	case "l1":
		return L1Gradient, nil
	default:
		return 0, fmt.Errorf("gradient norm %q: %w", s, ErrNotImplemented)
	}
}

// GradientLoss is the multiscale gradient matching term of MiDaS. At scale k
// the maps are subsampled by 2^k in both spatial dimensions, and the x and y
// finite differences of the masked residual are penalized where both
// neighbours are valid.
type GradientLoss[T tensor.Float, B tensor.Backend] struct {
	Scales    int
	Reduction Reduction[T, B]
	Norm      GradientNorm
}

// Forward returns the 0-d loss summed over scales.
func (l *GradientLoss[T, B]) Forward(prediction, target, mask *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	checkDepthMaps("gradient_loss", prediction, target, mask)
	total := zero(prediction)
	for scale := range l.Scales {
		step := 1 << scale
		total = total.Add(l.atScale(
			subsampleHW(prediction, step),
			subsampleHW(target, step),
			subsampleHW(mask, step),
		))
	}
	return total
}

func (l *GradientLoss[T, B]) atScale(prediction, target, mask *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	counts := sumHW(mask)
	diff := mask.Mul(prediction.Sub(target))

	imageLoss := tensor.ZerosLike(counts)
	for _, dim := range []int{2, 1} {
		if diff.Shape()[dim] < 2 {
			continue
		}
		grad := dropFirst(diff, dim).Sub(dropLast(diff, dim))
		if l.Norm == L1Gradient {
			grad = grad.Abs()
		} else {
			grad = grad.Square()
		}
		pairMask := dropFirst(mask, dim).Mul(dropLast(mask, dim))
		imageLoss = imageLoss.Add(sumHW(grad.Mul(pairMask)))
	}
	return reductionOrDefault(l.Reduction).Reduce(imageLoss, counts)
}

// subsampleHW returns x[:, ::step, ::step].
func subsampleHW[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B], step int) *tensor.Tensor[T, B] {
	return x.Subsample(1, step).Subsample(2, step)
}

// ScaleAndShiftInvariantLoss aligns the prediction to the target with a
// per-image scale and shift, then applies the MiDaS data term plus Alpha
// times the gradient matching term (skipped when Alpha <= 0).
//
// Reference: "Towards Robust Monocular Depth Estimation: Mixing Datasets for
// Zero-shot Cross-dataset Transfer" (Ranftl et al.)
type ScaleAndShiftInvariantLoss[T tensor.Float, B tensor.Backend] struct {
	Alpha     float64
	Scales    int
	Norm      GradientNorm
	Reduction Reduction[T, B]
	Aligner   Aligner[T, B]
}

// NewScaleAndShiftInvariantLoss creates the loss with the closed-form aligner.
func NewScaleAndShiftInvariantLoss[T tensor.Float, B tensor.Backend](alpha float64, scales int, reduction Reduction[T, B]) *ScaleAndShiftInvariantLoss[T, B] {
	return &ScaleAndShiftInvariantLoss[T, B]{
		Alpha:     alpha,
		Scales:    scales,
		Reduction: reduction,
		Aligner:   ClosedFormAligner[T, B]{},
	}
}

// SSIResult is the outcome of ScaleAndShiftInvariantLoss.Forward.
type SSIResult[T tensor.Float, B tensor.Backend] struct {
	Loss          *tensor.Tensor[T, B] // 0-d
	PredictionSSI *tensor.Tensor[T, B] // [B, H, W] aligned prediction
	Scale         *tensor.Tensor[T, B] // [B]
	Shift         *tensor.Tensor[T, B] // [B]
}

// Forward aligns prediction (unnormalized) to target (normalized) over mask
// and returns the loss with the aligned prediction.
func (l *ScaleAndShiftInvariantLoss[T, B]) Forward(prediction, target, mask *tensor.Tensor[T, B]) SSIResult[T, B] {
	checkDepthMaps("scale_and_shift_invariant_loss", prediction, target, mask)
	aligner := l.Aligner
	if aligner == nil {
		aligner = ClosedFormAligner[T, B]{}
	}
	scale, shift := aligner.Align(prediction, target, mask)
	predictionSSI := scale.Reshape(-1, 1, 1).Mul(prediction).Add(shift.Reshape(-1, 1, 1))

	data := &MiDaSMSELoss[T, B]{Reduction: l.Reduction}
	total := data.Forward(predictionSSI, target, mask)
	if l.Alpha > 0 {
		reg := &GradientLoss[T, B]{Scales: l.Scales, Reduction: l.Reduction, Norm: l.Norm}
		total = total.Add(reg.Forward(predictionSSI, target, mask).MulScalar(l.Alpha))
	}

	return SSIResult[T, B]{
		Loss:          total,
		PredictionSSI: predictionSSI,
		Scale:         scale,
		Shift:         shift,
	}
}

func reductionOrDefault[T tensor.Float, B tensor.Backend](r Reduction[T, B]) Reduction[T, B] {
	if r == nil {
		return BatchReduction[T, B]{}
	}
	return r
}
