package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// AbsOp represents output = |x|.
//
// Backward: grad_x = outputGrad * sign(x). The subgradient at 0 is 0.
type AbsOp struct {
	unary
}

// NewAbsOp creates a new AbsOp.
func NewAbsOp(x, output *tensor.RawTensor) *AbsOp {
	return &AbsOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *AbsOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Sign(op.input))}
}
