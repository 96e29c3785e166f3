package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// SigmoidOp represents output = σ(x) = 1 / (1 + e^-x).
//
// Backward: grad_x = outputGrad * σ(x) * (1 - σ(x)).
type SigmoidOp struct {
	unary
}

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	s := op.output
	oneMinus := backend.AddScalar(backend.MulScalar(s, -1), 1)
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Mul(s, oneMinus))}
}
