package nn

import (
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Softplus is a smooth ReLU: f(x) = log(1 + exp(x)).
//
// It is twice differentiable, which the R1 gradient penalty needs when it
// backpropagates through the discriminator's input gradient.
type Softplus[T tensor.Float, B tensor.Backend] struct{}

// NewSoftplus creates a new Softplus activation module.
func NewSoftplus[T tensor.Float, B tensor.Backend]() *Softplus[T, B] {
	return &Softplus[T, B]{}
}

// Forward applies softplus element-wise.
func (s *Softplus[T, B]) Forward(input *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return input.Softplus()
}

// Parameters returns nil (no trainable parameters).
func (s *Softplus[T, B]) Parameters() []*Parameter[T, B] {
	return nil
}

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)).
type Sigmoid[T tensor.Float, B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[T tensor.Float, B tensor.Backend]() *Sigmoid[T, B] {
	return &Sigmoid[T, B]{}
}

// Forward applies the sigmoid element-wise.
func (s *Sigmoid[T, B]) Forward(input *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return input.Sigmoid()
}

// Parameters returns nil (no trainable parameters).
func (s *Sigmoid[T, B]) Parameters() []*Parameter[T, B] {
	return nil
}

// LeakyReLU applies f(x) = x for x >= 0 and slope·x otherwise.
type LeakyReLU[T tensor.Float, B tensor.Backend] struct {
	slope float64
}

// NewLeakyReLU creates a LeakyReLU with the given negative slope (0.2 is the
// usual discriminator choice).
func NewLeakyReLU[T tensor.Float, B tensor.Backend](slope float64) *LeakyReLU[T, B] {
	return &LeakyReLU[T, B]{slope: slope}
}

// Forward computes x + (slope-1)·min(x, 0).
func (l *LeakyReLU[T, B]) Forward(input *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return input.Add(input.ClampMax(0).MulScalar(l.slope - 1))
}

// Parameters returns nil (no trainable parameters).
func (l *LeakyReLU[T, B]) Parameters() []*Parameter[T, B] {
	return nil
}
