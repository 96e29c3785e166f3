package losses

import (
	"fmt"
	"math"
	"strings"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// DepthLossKind selects the depth supervision objective.
type DepthLossKind int

const (
	// GaussianWeighted is the Depth-supervised NeRF loss (Deng et al., 2022).
	GaussianWeighted DepthLossKind = iota + 1
	// LineOfSight is the Urban Radiance Fields lidar loss (Rematas et al., 2022).
	LineOfSight
)

// String returns the configuration name of the kind.
func (k DepthLossKind) String() string {
	switch k {
	case GaussianWeighted:
		return "gaussian_weighted"
	case LineOfSight:
		return "line_of_sight"
	default:
		return fmt.Sprintf("DepthLossKind(%d)", int(k))
	}
}

// ParseDepthLossKind accepts the configuration names and the paper aliases
// "ds_nerf" and "urf".
func ParseDepthLossKind(s string) (DepthLossKind, error) {
	switch strings.ToLower(s) {
	case "gaussian_weighted", "ds_nerf":
		return GaussianWeighted, nil
	case "line_of_sight", "urf":
		return LineOfSight, nil
	default:
		return 0, fmt.Errorf("depth loss %q: %w", s, ErrNotImplemented)
	}
}

// DepthLoss is a depth supervision objective over rays.
//
// weights and steps are [R, S, 1]; terminationDepth and predictedDepth are
// [R, 1]. Rays with terminationDepth <= 0 contribute 0 to the mean.
type DepthLoss[T tensor.Float, B tensor.Backend] interface {
	Kind() DepthLossKind
	Forward(weights, terminationDepth, predictedDepth, steps, lengths *tensor.Tensor[T, B], sigma float64) *tensor.Tensor[T, B]
}

// NewDepthLoss returns the objective for kind, or an error wrapping
// ErrNotImplemented.
func NewDepthLoss[T tensor.Float, B tensor.Backend](kind DepthLossKind) (DepthLoss[T, B], error) {
	switch kind {
	case GaussianWeighted:
		return gaussianWeighted[T, B]{}, nil
	case LineOfSight:
		return lineOfSight[T, B]{}, nil
	default:
		return nil, fmt.Errorf("depth loss %v: %w", kind, ErrNotImplemented)
	}
}

type gaussianWeighted[T tensor.Float, B tensor.Backend] struct{}

func (gaussianWeighted[T, B]) Kind() DepthLossKind { return GaussianWeighted }

func (gaussianWeighted[T, B]) Forward(weights, terminationDepth, _, steps, lengths *tensor.Tensor[T, B], sigma float64) *tensor.Tensor[T, B] {
	return DSNeRFDepthLoss(weights, terminationDepth, steps, lengths, sigma)
}

type lineOfSight[T tensor.Float, B tensor.Backend] struct{}

func (lineOfSight[T, B]) Kind() DepthLossKind { return LineOfSight }

func (lineOfSight[T, B]) Forward(weights, terminationDepth, predictedDepth, steps, _ *tensor.Tensor[T, B], sigma float64) *tensor.Tensor[T, B] {
	return URFDepthLoss(weights, terminationDepth, predictedDepth, steps, sigma)
}

// DSNeRFDepthLoss is the Depth-supervised NeRF objective:
//
//	mean_rays( mask · Σ_s -log(w + EPS) · exp(-(step - d)² / (2σ)) · len )
func DSNeRFDepthLoss[T tensor.Float, B tensor.Backend](weights, terminationDepth, steps, lengths *tensor.Tensor[T, B], sigma float64) *tensor.Tensor[T, B] {
	checkDepthShapes("ds_nerf_depth_loss", weights, terminationDepth, steps)
	requireSameShape("ds_nerf_depth_loss", [2]string{"lengths", "steps"}, lengths, steps)

	valid := terminationDepth.GreaterScalar(0)
	target := terminationDepth.Unsqueeze(1) // [R, 1, 1]

	nll := weights.AddScalar(EPS).Log().Neg()
	kernel := steps.Sub(target).Square().DivScalar(-2 * sigma).Exp()
	perRay := nll.Mul(kernel).Mul(lengths).SumDim(-2, false) // [R, 1]

	return tensor.Where(valid, perRay, zero(perRay)).Mean()
}

// URFDepthLoss is the Urban Radiance Fields objective: the squared expected
// depth error, plus a line-of-sight term pulling weights within σ of the
// surface towards N(0, σ/3) and pushing weights in front of it to zero.
func URFDepthLoss[T tensor.Float, B tensor.Backend](weights, terminationDepth, predictedDepth, steps *tensor.Tensor[T, B], sigma float64) *tensor.Tensor[T, B] {
	checkDepthShapes("urf_depth_loss", weights, terminationDepth, steps)
	requireSameShape("urf_depth_loss", [2]string{"predicted_depth", "termination_depth"}, predictedDepth, terminationDepth)

	valid := terminationDepth.GreaterScalar(0)
	expectedDepth := terminationDepth.Sub(predictedDepth).Square()

	target := terminationDepth.Unsqueeze(1)
	offset := steps.Sub(target)
	std := sigma / URFSigmaScaleFactor
	density := offset.Square().DivScalar(-2 * std * std).Exp().DivScalar(std * math.Sqrt(2*math.Pi))

	near := offset.LowerEqual(scalarOf(offset, sigma)).And(offset.GreaterEqual(scalarOf(offset, -sigma)))
	empty := offset.Lower(scalarOf(offset, -sigma))

	zeros := tensor.ZerosLike(weights)
	nearLoss := tensor.Where(near, weights.Sub(density).Square(), zeros).SumDim(-2, false)
	emptyLoss := tensor.Where(empty, weights.Square(), zeros).SumDim(-2, false)

	perRay := expectedDepth.Add(nearLoss).Add(emptyLoss)
	return tensor.Where(valid, perRay, zero(perRay)).Mean()
}

// DepthInputs gathers everything ComputeDepthLoss needs for one batch of rays.
type DepthInputs[T tensor.Float, B tensor.Backend] struct {
	Weights          *tensor.Tensor[T, B] // [R, S, 1]
	Samples          *RaySamples[T, B]
	TerminationDepth *tensor.Tensor[T, B] // [R, 1], <= 0 means no ground truth
	PredictedDepth   *tensor.Tensor[T, B] // [R, 1]
	DirectionsNorm   *tensor.Tensor[T, B] // [R, 1]
	Sigma            float64
	// IsEuclidean reports that TerminationDepth is measured along normalized
	// directions. Otherwise it is z-depth and is scaled by DirectionsNorm.
	IsEuclidean bool
}

// ComputeDepthLoss evaluates the depth loss of kind on a batch of rays.
// Panics with ErrNotImplemented for an unknown kind.
func ComputeDepthLoss[T tensor.Float, B tensor.Backend](in DepthInputs[T, B], kind DepthLossKind) *tensor.Tensor[T, B] {
	loss, err := NewDepthLoss[T, B](kind)
	if err != nil {
		panic(fmt.Sprintf("depth_loss: %v", err))
	}

	terminationDepth := in.TerminationDepth
	if !in.IsEuclidean {
		terminationDepth = terminationDepth.Mul(in.DirectionsNorm)
	}
	starts, ends := in.Samples.Frustums.Starts, in.Samples.Frustums.Ends
	steps := starts.Add(ends).MulScalar(0.5)
	lengths := ends.Sub(starts)
	return loss.Forward(in.Weights, terminationDepth, in.PredictedDepth, steps, lengths, in.Sigma)
}

func checkDepthShapes[T tensor.Float, B tensor.Backend](op string, weights, terminationDepth, steps *tensor.Tensor[T, B]) {
	requireRank(op, "weights", weights, 3)
	requireSameShape(op, [2]string{"weights", "steps"}, weights, steps)
	rays := weights.Shape()[0]
	if !terminationDepth.Shape().Equal(tensor.Shape{rays, 1}) {
		panic(fmt.Sprintf("%s: termination_depth shape %v, want [%d 1]", op, terminationDepth.Shape(), rays))
	}
}

// scalarOf returns a 0-d tensor holding v on the backend of like.
func scalarOf[T tensor.Float, B tensor.Backend](like *tensor.Tensor[T, B], v float64) *tensor.Tensor[T, B] {
	return tensor.Scalar(T(v), like.Backend())
}
