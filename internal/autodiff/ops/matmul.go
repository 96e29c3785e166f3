package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// MatMulOp represents matrix multiplication: output = A @ B.
//
// Backward pass:
//   - grad_A = outputGrad @ B^T
//   - grad_B = A^T @ outputGrad
type MatMulOp struct {
	binary
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{binary{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes both input gradients.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return op.BackwardSelected(outputGrad, backend, []bool{true, true})
}

// BackwardSelected computes only the requested gradients. The R1 penalty
// differentiates with respect to the input batch only and skips the weights.
func (op *MatMulOp) BackwardSelected(outputGrad *tensor.RawTensor, backend tensor.Backend, need []bool) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	grads := make([]*tensor.RawTensor, 2)
	if need[0] {
		grads[0] = backend.MatMul(outputGrad, backend.Transpose(b))
	}
	if need[1] {
		grads[1] = backend.MatMul(backend.Transpose(a), outputGrad)
	}
	return grads
}
