// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package losses provides the volumetric rendering losses of NeRF training:
// the proposal interlevel loss, the distortion loss, DS-NeRF and URF depth
// supervision, normal losses, the scale-and-shift-invariant monocular depth
// loss and the GAN loss with R1 regularization.
//
// All losses are generic over the element type and backend. Evaluate them on
// backend/cpu, or on an autodiff backend to train through them.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	weights := samples.GetWeights(densities)
//	loss := losses.InterlevelLoss(
//	    []*tensor.Tensor[float64, B]{proposalWeights, weights},
//	    []*losses.RaySamples[float64, B]{proposalSamples, samples},
//	)
//	grads := autodiff.Backward(loss, backend)
package losses

import (
	"github.com/born-ml/nerfloss/autodiff"
	"github.com/born-ml/nerfloss/internal/losses"
	"github.com/born-ml/nerfloss/tensor"
)

// Constants.
const (
	EPS                 = losses.EPS
	URFSigmaScaleFactor = losses.URFSigmaScaleFactor
	DefaultR1Gamma      = losses.DefaultR1Gamma
	DefaultRegStep      = losses.DefaultRegStep
)

// ErrNotImplemented is returned for unknown loss kinds and policies.
var ErrNotImplemented = losses.ErrNotImplemented

// Ray samples.
type (
	Frustums[T tensor.Float, B tensor.Backend]   = losses.Frustums[T, B]
	RaySamples[T tensor.Float, B tensor.Backend] = losses.RaySamples[T, B]
)

// NewRaySamples builds samples from interval boundaries bins [..., S+1].
func NewRaySamples[T tensor.Float, B tensor.Backend](bins *tensor.Tensor[T, B]) *RaySamples[T, B] {
	return losses.NewRaySamples(bins)
}

// RaySamplesToSDist returns the normalized boundaries [..., S+1] of samples.
func RaySamplesToSDist[T tensor.Float, B tensor.Backend](samples *RaySamples[T, B]) *tensor.Tensor[T, B] {
	return losses.RaySamplesToSDist(samples)
}

// Outer resamples the step function (t1, y1) onto the intervals of t0 by
// summing y1 over every t1 interval that overlaps each t0 interval.
func Outer[T tensor.Float, B tensor.Backend](t0Starts, t0Ends, t1Starts, t1Ends, y1 *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return losses.Outer(t0Starts, t0Ends, t1Starts, t1Ends, y1)
}

// LossOuter is the per-interval proposal penalty of weights w on boundaries t
// against the envelope wEnv on tEnv.
func LossOuter[T tensor.Float, B tensor.Backend](t, w, tEnv, wEnv *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return losses.LossOuter(t, w, tEnv, wEnv)
}

// InterlevelLoss penalizes every proposal level for failing to bound the
// weights of the last level.
func InterlevelLoss[T tensor.Float, B tensor.Backend](weightsList []*tensor.Tensor[T, B], samplesList []*RaySamples[T, B]) *tensor.Tensor[T, B] {
	return losses.InterlevelLoss(weightsList, samplesList)
}

// PairwiseDistortion is the O(n²) distortion of weights w [..., n] on
// boundaries t [..., n+1].
func PairwiseDistortion[T tensor.Float, B tensor.Backend](t, w *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return losses.PairwiseDistortion(t, w)
}

// EfficientDistortion computes the same value as PairwiseDistortion in O(n).
func EfficientDistortion[T tensor.Float, B tensor.Backend](t, w *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return losses.EfficientDistortion(t, w)
}

// DistortionLoss is the mean mip-NeRF 360 distortion of the last level.
func DistortionLoss[T tensor.Float, B tensor.Backend](weightsList []*tensor.Tensor[T, B], samplesList []*RaySamples[T, B]) *tensor.Tensor[T, B] {
	return losses.DistortionLoss(weightsList, samplesList)
}

// RayDistortionLoss returns the per-ray distortion from either densities or
// weights; the other must be nil.
func RayDistortionLoss[T tensor.Float, B tensor.Backend](samples *RaySamples[T, B], densities, weights *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return losses.RayDistortionLoss(samples, densities, weights)
}

// Depth supervision.
type (
	DepthLossKind                                 = losses.DepthLossKind
	DepthLoss[T tensor.Float, B tensor.Backend]   = losses.DepthLoss[T, B]
	DepthInputs[T tensor.Float, B tensor.Backend] = losses.DepthInputs[T, B]
)

// Depth loss kinds.
const (
	GaussianWeighted = losses.GaussianWeighted
	LineOfSight      = losses.LineOfSight
)

// ParseDepthLossKind parses "gaussian_weighted" or "line_of_sight".
func ParseDepthLossKind(s string) (DepthLossKind, error) {
	return losses.ParseDepthLossKind(s)
}

// ComputeDepthLoss evaluates the depth loss of kind on a batch of rays.
func ComputeDepthLoss[T tensor.Float, B tensor.Backend](in DepthInputs[T, B], kind DepthLossKind) *tensor.Tensor[T, B] {
	return losses.ComputeDepthLoss(in, kind)
}

// Normal losses.

// OrientationLoss penalizes visible normals facing away from the camera.
func OrientationLoss[T tensor.Float, B tensor.Backend](weights, normals, viewdirs *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return losses.OrientationLoss(weights, normals, viewdirs)
}

// PredNormalLoss ties density-field normals to predicted normals.
func PredNormalLoss[T tensor.Float, B tensor.Backend](weights, normals, predNormals *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return losses.PredNormalLoss(weights, normals, predNormals)
}

// MonoSDFNormalLoss compares rendered normals with monocular estimates.
func MonoSDFNormalLoss[T tensor.Float, B tensor.Backend](normalPred, normalGT *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return losses.MonoSDFNormalLoss(normalPred, normalGT)
}

// Scale-and-shift-invariant depth.
type (
	Reduction[T tensor.Float, B tensor.Backend]                  = losses.Reduction[T, B]
	Aligner[T tensor.Float, B tensor.Backend]                    = losses.Aligner[T, B]
	GradientNorm                                                 = losses.GradientNorm
	ScaleAndShiftInvariantLoss[T tensor.Float, B tensor.Backend] = losses.ScaleAndShiftInvariantLoss[T, B]
	SSIResult[T tensor.Float, B tensor.Backend]                  = losses.SSIResult[T, B]
)

// Gradient norms of the multi-scale gradient loss.
const (
	L1Gradient = losses.L1Gradient
	L2Gradient = losses.L2Gradient
)

// NewScaleAndShiftInvariantLoss creates the loss with the closed-form aligner.
func NewScaleAndShiftInvariantLoss[T tensor.Float, B tensor.Backend](alpha float64, scales int, reduction Reduction[T, B]) *ScaleAndShiftInvariantLoss[T, B] {
	return losses.NewScaleAndShiftInvariantLoss(alpha, scales, reduction)
}

// NewReduction returns the "batch" or "image" reduction policy.
func NewReduction[T tensor.Float, B tensor.Backend](name string) (Reduction[T, B], error) {
	return losses.NewReduction[T, B](name)
}

// NewAligner returns the "closed_form" or "least_squares" aligner.
func NewAligner[T tensor.Float, B tensor.Backend](name string) (Aligner[T, B], error) {
	return losses.NewAligner[T, B](name)
}

// NormalizedDepthScaleAndShift solves the per-image least squares alignment
// of prediction to target over mask in closed form.
func NormalizedDepthScaleAndShift[T tensor.Float, B tensor.Backend](prediction, target, mask *tensor.Tensor[T, B]) (scale, shift *tensor.Tensor[T, B]) {
	return losses.NormalizedDepthScaleAndShift(prediction, target, mask)
}

// GAN loss.
type (
	GANLoss[T tensor.Float, B autodiff.BackwardCapable]             = losses.GANLoss[T, B]
	DiscriminatorInputs[T tensor.Float, B autodiff.BackwardCapable] = losses.DiscriminatorInputs[T, B]
)

// NewGANLoss returns a GANLoss with the default R1 settings.
func NewGANLoss[T tensor.Float, B autodiff.BackwardCapable]() *GANLoss[T, B] {
	return losses.NewGANLoss[T, B]()
}
