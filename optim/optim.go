// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers that update nn parameters from the
// gradient maps returned by autodiff.Backward.
//
// Example:
//
//	optimizer := optim.NewAdam(disc.Parameters(), optim.AdamConfig{LR: 1e-3})
//	for step := range steps {
//	    backend.Tape().Clear()
//	    backend.Tape().StartRecording()
//	    loss := gan.Discriminator(inputs(step))
//	    grads := autodiff.Backward(loss, backend)
//	    backend.Tape().StopRecording()
//	    optimizer.Step(grads)
//	}
package optim

import (
	"github.com/born-ml/nerfloss/internal/nn"
	"github.com/born-ml/nerfloss/internal/optim"
	"github.com/born-ml/nerfloss/tensor"
)

// Optimizer is the common interface of all optimizers.
type Optimizer = optim.Optimizer

// SGD is stochastic gradient descent with optional momentum.
type SGD[T tensor.Float, B tensor.Backend] = optim.SGD[T, B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer over params.
func NewSGD[T tensor.Float, B tensor.Backend](params []*nn.Parameter[T, B], config SGDConfig) *SGD[T, B] {
	return optim.NewSGD(params, config)
}

// Adam is the Adam optimizer with bias correction and decoupled weight decay.
type Adam[T tensor.Float, B tensor.Backend] = optim.Adam[T, B]

// AdamConfig configures Adam. Zero fields take their defaults.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over params.
func NewAdam[T tensor.Float, B tensor.Backend](params []*nn.Parameter[T, B], config AdamConfig) *Adam[T, B] {
	return optim.NewAdam(params, config)
}
