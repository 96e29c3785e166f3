package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// SqrtOp represents output = √x.
//
// Backward: grad_x = outputGrad / (2√x).
type SqrtOp struct {
	unary
}

// NewSqrtOp creates a new SqrtOp.
func NewSqrtOp(x, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(backend.Div(outputGrad, op.output), 0.5)}
}
