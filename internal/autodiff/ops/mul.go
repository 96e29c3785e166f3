package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// MulOp represents element-wise multiplication: output = a * b.
//
// Backward pass:
//   - grad_a = outputGrad * b
//   - grad_b = outputGrad * a
type MulOp struct {
	binary
}

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{binary{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return op.BackwardSelected(outputGrad, backend, []bool{true, true})
}

// BackwardSelected computes only the requested input gradients.
func (op *MulOp) BackwardSelected(outputGrad *tensor.RawTensor, backend tensor.Backend, need []bool) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	grads := make([]*tensor.RawTensor, 2)
	if need[0] {
		grads[0] = reduceBroadcast(backend.Mul(outputGrad, b), a.Shape(), backend)
	}
	if need[1] {
		grads[1] = reduceBroadcast(backend.Mul(outputGrad, a), b.Shape(), backend)
	}
	return grads
}
