// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Backend wraps any backend and records operations on a gradient tape while
// recording is on. Backward rules are themselves built from backend
// operations, so with GradOptions.CreateGraph the gradients can be
// differentiated again (the R1 penalty of losses.GANLoss relies on this).
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	weights := samples.GetWeights(densities)
//	loss := losses.DistortionLoss(weightsList, samplesList)
//	grads := autodiff.Backward(loss, backend)
//	backend.Tape().StopRecording()
package autodiff

import (
	"github.com/born-ml/nerfloss/internal/autodiff"
	"github.com/born-ml/nerfloss/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// BackwardCapable is implemented by backends that support backpropagation.
type BackwardCapable = autodiff.BackwardCapable

// GradOptions controls Grad.
type GradOptions = autodiff.GradOptions

// Backward computes the gradient of t.Sum() with respect to every tensor it
// depends on, keyed by RawTensor.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}

// Grad computes the gradient of output.Sum() with respect to each of inputs.
func Grad[T tensor.Float, B BackwardCapable](
	output *tensor.Tensor[T, B],
	inputs []*tensor.Tensor[T, B],
	backend B,
	opts GradOptions,
) []*tensor.Tensor[T, B] {
	return autodiff.Grad(output, inputs, backend, opts)
}
