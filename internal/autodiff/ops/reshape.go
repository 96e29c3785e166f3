package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// ReshapeOp represents a reshape. Backward reshapes the gradient back.
type ReshapeOp struct {
	unary
}

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}
