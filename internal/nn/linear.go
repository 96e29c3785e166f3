package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//
// Weights use Xavier/Glorot initialization, biases start at zero.
type Linear[T tensor.Float, B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[T, B] // [out_features, in_features]
	bias        *Parameter[T, B] // [out_features]
}

// NewLinear creates a new Linear layer.
func NewLinear[T tensor.Float, B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[T, B] {
	weight := Xavier[T](inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng, backend)
	bias := tensor.Zeros[T](tensor.Shape{outFeatures}, backend)

	return &Linear[T, B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
	}
}

// Forward computes y = x @ W.T + b for input of shape [batch_size, in_features].
func (l *Linear[T, B]) Forward(input *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	output := input.MatMul(l.weight.Tensor().T())
	return output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
}

// Parameters returns [weight, bias].
func (l *Linear[T, B]) Parameters() []*Parameter[T, B] {
	return []*Parameter[T, B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[T, B]) Weight() *Parameter[T, B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[T, B]) Bias() *Parameter[T, B] {
	return l.bias
}

// StateDict returns a map of parameter names to raw tensors.
func (l *Linear[T, B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict copies parameters from a state dictionary.
func (l *Linear[T, B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(l.weight, stateDict["weight"]); err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	if err := loadInto(l.bias, stateDict["bias"]); err != nil {
		return fmt.Errorf("bias: %w", err)
	}
	return nil
}

func loadInto[T tensor.Float, B tensor.Backend](p *Parameter[T, B], raw *tensor.RawTensor) error {
	if raw == nil {
		return fmt.Errorf("missing from state dict")
	}
	want := p.Tensor()
	if !raw.Shape().Equal(want.Shape()) {
		return fmt.Errorf("shape mismatch: expected %v, got %v", want.Shape(), raw.Shape())
	}
	if raw.DType() != want.DType() {
		return fmt.Errorf("dtype mismatch: expected %s, got %s", want.DType(), raw.DType())
	}
	copy(want.Data(), tensor.Slice[T](raw))
	return nil
}
