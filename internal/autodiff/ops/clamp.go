package ops

import (
	"math"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// ClampOp represents output = min(max(x, lo), hi).
//
// Backward: the gradient passes where lo <= x <= hi and is zero elsewhere.
type ClampOp struct {
	unary
	lo, hi float64
}

// NewClampOp creates a new ClampOp.
func NewClampOp(x, output *tensor.RawTensor, lo, hi float64) *ClampOp {
	return &ClampOp{unary: unary{input: x, output: output}, lo: lo, hi: hi}
}

// Backward computes the input gradient.
func (op *ClampOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.input
	var inside *tensor.RawTensor
	if !math.IsInf(op.lo, -1) {
		inside = backend.GreaterEqual(x, scalarLike(x, op.lo))
	}
	if !math.IsInf(op.hi, 1) {
		upper := backend.LowerEqual(x, scalarLike(x, op.hi))
		if inside == nil {
			inside = upper
		} else {
			inside = backend.And(inside, upper)
		}
	}
	if inside == nil {
		return []*tensor.RawTensor{outputGrad}
	}
	return []*tensor.RawTensor{backend.Where(inside, outputGrad, zerosLike(outputGrad))}
}

// scalarLike creates a 0-d constant with x's dtype.
func scalarLike(x *tensor.RawTensor, v float64) *tensor.RawTensor {
	s := tensor.MustNewRaw(tensor.Shape{}, x.DType(), x.Device())
	switch x.DType() {
	case tensor.Float32:
		s.AsFloat32()[0] = float32(v)
	case tensor.Float64:
		s.AsFloat64()[0] = v
	default:
		panic("clamp: unsupported dtype " + x.DType().String())
	}
	return s
}
