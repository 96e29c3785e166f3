// Package nn implements the neural network building blocks used around the
// loss layer: trainable parameters, small MLPs for proposal and
// discriminator networks, activations and elementary losses.
//
// Every module is generic over the float type T and the backend B. Wrap the
// backend with autodiff.New to train.
package nn

import (
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[float64, Backend](
//	    nn.NewLinear[float64](8, 32, rng, backend),
//	    nn.NewSoftplus[float64, Backend](),
//	    nn.NewLinear[float64](32, 1, rng, backend),
//	)
type Module[T tensor.Float, B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[T, B]) *tensor.Tensor[T, B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[T, B]
}
