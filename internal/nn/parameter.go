package nn

import (
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// The parameter tensor is a leaf for the gradient tape: its RawTensor is the
// key under which autodiff.Backward reports the gradient.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	grads := autodiff.Backward(loss, backend)
//	g := grads[weight.Tensor().Raw()]
type Parameter[T tensor.Float, B tensor.Backend] struct {
	name   string               // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[T, B] // The parameter tensor
	grad   *tensor.Tensor[T, B] // Gradient tensor (computed during backward pass)
}

// NewParameter creates a new trainable parameter.
func NewParameter[T tensor.Float, B tensor.Backend](name string, t *tensor.Tensor[T, B]) *Parameter[T, B] {
	return &Parameter[T, B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[T, B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[T, B]) Tensor() *tensor.Tensor[T, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before a backward pass.
func (p *Parameter[T, B]) Grad() *tensor.Tensor[T, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[T, B]) SetGrad(grad *tensor.Tensor[T, B]) {
	p.grad = grad
}

// CollectGrad picks this parameter's gradient out of a backward result.
// Returns false if the parameter did not take part in the computation.
func (p *Parameter[T, B]) CollectGrad(grads map[*tensor.RawTensor]*tensor.RawTensor) bool {
	g, ok := grads[p.tensor.Raw()]
	if !ok {
		return false
	}
	p.grad = tensor.New[T, B](g, p.tensor.Backend())
	return true
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter[T, B]) ZeroGrad() {
	p.grad = nil
}
