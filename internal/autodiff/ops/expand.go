package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// ExpandOp represents broadcasting x to a larger shape.
//
// Backward sums the gradient over the broadcast dimensions.
type ExpandOp struct {
	unary
}

// NewExpandOp creates a new ExpandOp.
func NewExpandOp(x, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{reduceBroadcast(outputGrad, op.input.Shape(), backend)}
}
