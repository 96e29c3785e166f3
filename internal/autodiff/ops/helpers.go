package ops

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// unary is the common storage for single-input operations.
type unary struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns [x].
func (u *unary) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{u.input}
}

// Output returns the operation result.
func (u *unary) Output() *tensor.RawTensor {
	return u.output
}

// binary is the common storage for two-input operations.
type binary struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
}

// Inputs returns [a, b].
func (b *binary) Inputs() []*tensor.RawTensor {
	return b.inputs
}

// Output returns the operation result.
func (b *binary) Output() *tensor.RawTensor {
	return b.output
}

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	// NumPy broadcasting aligns shapes from the right: sum leading dimensions first.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	for i, n := range targetShape {
		if n == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		panic(fmt.Sprintf("reduceBroadcast: cannot reduce %v to %v", grad.Shape(), targetShape))
	}
	return result
}

// zerosLike creates a zero tensor shaped like t. It is a constant for the tape.
func zerosLike(t *tensor.RawTensor) *tensor.RawTensor {
	return tensor.MustNewRaw(t.Shape(), t.DType(), t.Device())
}

// keepDimShape returns shape with dimension dim set to 1.
func keepDimShape(shape tensor.Shape, dim int) tensor.Shape {
	out := shape.Clone()
	out[dim] = 1
	return out
}
