// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the small set of layers used around the losses:
// parameters, linear layers and activations for discriminators, the
// truncated exponential density activation and the photometric losses.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	disc := nn.NewSequential[float64, *autodiff.Backend[*cpu.Backend]](
//	    nn.NewLinear[float64](3, 16, rng, backend),
//	    nn.NewLeakyReLU[float64, *autodiff.Backend[*cpu.Backend]](0.2),
//	    nn.NewLinear[float64](16, 1, rng, backend),
//	)
package nn

import (
	"math/rand"

	"github.com/born-ml/nerfloss/internal/nn"
	"github.com/born-ml/nerfloss/tensor"
)

// Module is a layer with trainable parameters.
type Module[T tensor.Float, B tensor.Backend] = nn.Module[T, B]

// Parameter is a trainable tensor.
type Parameter[T tensor.Float, B tensor.Backend] = nn.Parameter[T, B]

// NewParameter creates a named trainable parameter.
func NewParameter[T tensor.Float, B tensor.Backend](name string, t *tensor.Tensor[T, B]) *Parameter[T, B] {
	return nn.NewParameter(name, t)
}

// Linear computes x · Wᵀ + b.
type Linear[T tensor.Float, B tensor.Backend] = nn.Linear[T, B]

// NewLinear creates a Linear layer with Xavier-initialized weights.
func NewLinear[T tensor.Float, B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[T, B] {
	return nn.NewLinear[T](inFeatures, outFeatures, rng, backend)
}

// Sequential chains modules.
type Sequential[T tensor.Float, B tensor.Backend] = nn.Sequential[T, B]

// NewSequential creates a Sequential of modules.
func NewSequential[T tensor.Float, B tensor.Backend](modules ...Module[T, B]) *Sequential[T, B] {
	return nn.NewSequential(modules...)
}

// Activations.
type (
	Softplus[T tensor.Float, B tensor.Backend]  = nn.Softplus[T, B]
	Sigmoid[T tensor.Float, B tensor.Backend]   = nn.Sigmoid[T, B]
	LeakyReLU[T tensor.Float, B tensor.Backend] = nn.LeakyReLU[T, B]
)

// NewSoftplus creates a Softplus activation.
func NewSoftplus[T tensor.Float, B tensor.Backend]() *Softplus[T, B] { return nn.NewSoftplus[T, B]() }

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid[T tensor.Float, B tensor.Backend]() *Sigmoid[T, B] { return nn.NewSigmoid[T, B]() }

// NewLeakyReLU creates a LeakyReLU with the given negative slope.
func NewLeakyReLU[T tensor.Float, B tensor.Backend](slope float64) *LeakyReLU[T, B] {
	return nn.NewLeakyReLU[T, B](slope)
}

// TruncExpClamp bounds the input of the TruncExp derivative.
const TruncExpClamp = nn.TruncExpClamp

// TruncExp is exp(x) whose gradient uses exp(clamp(x, ±TruncExpClamp)).
func TruncExp[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return nn.TruncExp(x)
}

// Loss compares a prediction with a target and returns a 0-d tensor.
type Loss[T tensor.Float, B tensor.Backend] = nn.Loss[T, B]

// NewLoss returns the loss registered under name ("L1" or "MSE").
func NewLoss[T tensor.Float, B tensor.Backend](name string) (Loss[T, B], error) {
	return nn.NewLoss[T, B](name)
}
