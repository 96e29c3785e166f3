// Package ops defines operation interfaces and implementations for automatic differentiation.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the backend
//   - Backward pass: computes gradients for inputs given output gradient
//
// Backward rules are written only in terms of tensor.Backend methods. When the
// backend passed to Backward is itself recording (autodiff.GradOptions.CreateGraph),
// the gradient computation lands on the tape and can be differentiated again.
package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	// A nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// SelectiveOperation is implemented by operations whose input gradients are
// expensive enough that computing only the requested ones pays off.
//
// need[i] reports whether the gradient for Inputs()[i] is wanted; entries
// for unwanted inputs may be nil.
type SelectiveOperation interface {
	Operation
	BackwardSelected(outputGrad *tensor.RawTensor, backend tensor.Backend, need []bool) []*tensor.RawTensor
}
