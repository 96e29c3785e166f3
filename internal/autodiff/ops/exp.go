package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// ExpOp represents output = e^x.
//
// Backward: grad_x = outputGrad * e^x = outputGrad * output.
type ExpOp struct {
	unary
}

// NewExpOp creates a new ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}
