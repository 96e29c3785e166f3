package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// SumOp represents a full reduction to a 0-d tensor.
//
// Backward: the scalar gradient is broadcast back to the input shape.
type SumOp struct {
	unary
}

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{unary{input: x, output: output}}
}

// Backward computes the input gradient.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	if len(shape) == 0 {
		return []*tensor.RawTensor{outputGrad}
	}
	ones := make(tensor.Shape, len(shape))
	for i := range ones {
		ones[i] = 1
	}
	g := backend.Reshape(outputGrad, ones)
	return []*tensor.RawTensor{backend.Expand(g, shape)}
}

// SumDimOp represents a sum along one dimension.
//
// Example:
//
//	Forward: x[2,3,4] -> sum(dim=1) -> y[2,4]
//	Backward: grad_y[2,4] -> reshape [2,1,4] -> expand [2,3,4]
type SumDimOp struct {
	unary
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp. dim must already be normalized.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{unary: unary{input: x, output: output}, dim: dim, keepDim: keepDim}
}

// Backward computes the input gradient.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	g := outputGrad
	if !op.keepDim {
		g = backend.Reshape(g, keepDimShape(shape, op.dim))
	}
	return []*tensor.RawTensor{backend.Expand(g, shape)}
}
