package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// DivOp represents element-wise division: output = a / b.
//
// Backward pass:
//   - grad_a = outputGrad / b
//   - grad_b = -outputGrad * a / b²  = -(outputGrad / b) * (a / b)
type DivOp struct {
	binary
}

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{binary{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for division.
func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gOverB := backend.Div(outputGrad, b)
	gradB := backend.MulScalar(backend.Mul(gOverB, backend.Div(a, b)), -1)
	return []*tensor.RawTensor{
		reduceBroadcast(gOverB, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}
