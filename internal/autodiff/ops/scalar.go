package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// AddScalarOp represents output = x + s. The gradient passes through unchanged.
type AddScalarOp struct {
	unary
}

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{unary{input: x, output: output}}
}

// Backward returns outputGrad.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// MulScalarOp represents output = x * s.
type MulScalarOp struct {
	unary
	scalar float64
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(x, output *tensor.RawTensor, s float64) *MulScalarOp {
	return &MulScalarOp{unary: unary{input: x, output: output}, scalar: s}
}

// Backward returns outputGrad * s.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}
