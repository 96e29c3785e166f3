package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// CatOp represents concatenation along a dimension.
//
// Backward splits the gradient into the original pieces with Narrow.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a new CatOp. dim must already be normalized.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{
		inputs: append([]*tensor.RawTensor(nil), inputs...),
		output: output,
		dim:    dim,
	}
}

// Inputs returns the concatenated tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the concatenation result.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes input gradients.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		size := in.Shape()[op.dim]
		grads[i] = backend.Narrow(outputGrad, op.dim, offset, size)
		offset += size
	}
	return grads
}
