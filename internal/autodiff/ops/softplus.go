package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// SoftplusOp represents output = log(1 + e^x).
//
// Backward: grad_x = outputGrad * σ(x). The sigmoid is recomputed through the
// backend so that second derivatives are available.
type SoftplusOp struct {
	unary
}

// NewSoftplusOp creates a new SoftplusOp.
func NewSoftplusOp(x, output *tensor.RawTensor) *SoftplusOp {
	return &SoftplusOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *SoftplusOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Sigmoid(op.input))}
}
