package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// CumSumOp represents an inclusive scan along a dimension.
//
// Backward: each input contributes to every output at or after its position
// (before it, for a reverse scan), so grad_x is the scan of the gradient in
// the opposite direction.
type CumSumOp struct {
	unary
	dim     int
	reverse bool
}

// NewCumSumOp creates a new CumSumOp. dim must already be normalized.
func NewCumSumOp(x, output *tensor.RawTensor, dim int, reverse bool) *CumSumOp {
	return &CumSumOp{unary: unary{input: x, output: output}, dim: dim, reverse: reverse}
}

// Backward computes the input gradient.
func (op *CumSumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.CumSum(outputGrad, op.dim, !op.reverse)}
}
