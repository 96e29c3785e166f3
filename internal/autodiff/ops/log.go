package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// LogOp represents output = ln(x).
//
// Backward: grad_x = outputGrad / x.
type LogOp struct {
	unary
}

// NewLogOp creates a new LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}
