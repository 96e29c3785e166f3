// Package losses implements the training objectives of a volumetric
// radiance-field renderer: proposal (interlevel) and distortion losses over
// ray weight histograms, depth supervision, normal consistency,
// scale-and-shift-invariant monocular depth and a non-saturating GAN loss
// with R1 regularization.
//
// Every loss is a pure function of its tensor inputs. Run them on an
// autodiff backend with the tape recording to get gradients:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := losses.InterlevelLoss(weightsList, samplesList)
//	grads := autodiff.Backward(loss, backend)
//
// Shapes follow the renderer's conventions: per-sample tensors are
// [..., numSamples, 1], interval boundaries are [..., numSamples+1].
package losses

import (
	"errors"
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// EPS guards divisions and logarithms.
const EPS = 1e-7

// URFSigmaScaleFactor divides the depth uncertainty to get the standard
// deviation of the line-of-sight target distribution (Rematas et al., 2022).
const URFSigmaScaleFactor = 3.0

// ErrNotImplemented is returned for loss variants that do not exist.
var ErrNotImplemented = errors.New("not implemented")

// dropLast returns x[..., :-1] along dim.
func dropLast[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B], dim int) *tensor.Tensor[T, B] {
	d := tensor.NormalizeDim(dim, x.Dims())
	return x.Narrow(d, 0, x.Shape()[d]-1)
}

// dropFirst returns x[..., 1:] along dim.
func dropFirst[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B], dim int) *tensor.Tensor[T, B] {
	d := tensor.NormalizeDim(dim, x.Dims())
	return x.Narrow(d, 1, x.Shape()[d]-1)
}

// zero returns a 0-d zero on the backend of like.
func zero[T tensor.Float, B tensor.Backend](like *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return tensor.Zeros[T](tensor.Shape{}, like.Backend())
}

// mask01 converts a comparison result into 0/1 values of type T.
func mask01[T tensor.Float, B tensor.Backend](m *tensor.Tensor[bool, B]) *tensor.Tensor[T, B] {
	return tensor.Cast[T](m)
}

// sumHW reduces [B, H, W] to [B].
func sumHW[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return x.SumDim(2, false).SumDim(1, false)
}

func requireSameShape[T tensor.Float, B tensor.Backend](op string, names [2]string, a, b *tensor.Tensor[T, B]) {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: %s shape %v != %s shape %v", op, names[0], a.Shape(), names[1], b.Shape()))
	}
}

func requireRank[T tensor.Float, B tensor.Backend](op, name string, x *tensor.Tensor[T, B], rank int) {
	if x.Dims() != rank {
		panic(fmt.Sprintf("%s: %s must have rank %d, got shape %v", op, name, rank, x.Shape()))
	}
}
