package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// TransposeOp represents a permutation of dimensions.
//
// Backward applies the inverse permutation to the gradient.
type TransposeOp struct {
	unary
	axes []int
}

// NewTransposeOp creates a new TransposeOp. axes must be a full, normalized permutation.
func NewTransposeOp(x, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{unary: unary{input: x, output: output}, axes: append([]int(nil), axes...)}
}

// Backward computes the input gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}
