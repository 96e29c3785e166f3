package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// NarrowOp represents taking a contiguous range along a dimension.
//
// Backward pads the gradient with zeros back to the input size.
type NarrowOp struct {
	unary
	dim, start int
}

// NewNarrowOp creates a new NarrowOp. dim and start must already be normalized.
func NewNarrowOp(x, output *tensor.RawTensor, dim, start int) *NarrowOp {
	return &NarrowOp{unary: unary{input: x, output: output}, dim: dim, start: start}
}

// Backward computes the input gradient.
func (op *NarrowOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.input.Shape()
	length := outputGrad.Shape()[op.dim]
	after := inShape[op.dim] - op.start - length

	parts := make([]*tensor.RawTensor, 0, 3)
	if op.start > 0 {
		parts = append(parts, zerosAlong(outputGrad, op.dim, op.start))
	}
	parts = append(parts, outputGrad)
	if after > 0 {
		parts = append(parts, zerosAlong(outputGrad, op.dim, after))
	}
	if len(parts) == 1 {
		return []*tensor.RawTensor{outputGrad}
	}
	return []*tensor.RawTensor{backend.Cat(parts, op.dim)}
}

func zerosAlong(like *tensor.RawTensor, dim, size int) *tensor.RawTensor {
	shape := like.Shape().Clone()
	shape[dim] = size
	return tensor.MustNewRaw(shape, like.DType(), like.Device())
}
