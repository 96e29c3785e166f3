package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// GatherOp represents output = gather(x, dim, index).
//
// Backward scatters the gradient back to the gathered positions, summing
// where an index repeats. The index has no gradient.
type GatherOp struct {
	unary
	dim   int
	index *tensor.RawTensor
}

// NewGatherOp creates a new GatherOp. dim must already be normalized.
func NewGatherOp(x, index, output *tensor.RawTensor, dim int) *GatherOp {
	return &GatherOp{unary: unary{input: x, output: output}, dim: dim, index: index}
}

// Backward computes the input gradient.
func (op *GatherOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ScatterAdd(op.input.Shape(), op.dim, op.index, outputGrad)}
}

// ScatterAddOp represents output = scatter_add(zeros, dim, index, src).
//
// Backward gathers the gradient at the scattered positions.
type ScatterAddOp struct {
	unary
	dim   int
	index *tensor.RawTensor
}

// NewScatterAddOp creates a new ScatterAddOp. dim must already be normalized.
func NewScatterAddOp(src, index, output *tensor.RawTensor, dim int) *ScatterAddOp {
	return &ScatterAddOp{unary: unary{input: src, output: output}, dim: dim, index: index}
}

// Backward computes the gradient for src.
func (op *ScatterAddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Gather(outputGrad, op.dim, op.index)}
}
