package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// CastOp represents a conversion between float types.
// Backward casts the gradient back to the input dtype.
type CastOp struct {
	unary
}

// NewCastOp creates a new CastOp.
func NewCastOp(x, output *tensor.RawTensor) *CastOp {
	return &CastOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *CastOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Cast(outputGrad, op.input.DType())}
}
