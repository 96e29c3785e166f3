// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient tracking
// through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op (Add, Mul, Gather, ...) implements backward pass
//   - Reverse-mode AD: Computes gradients efficiently using chain rule
//
// Backward rules are expressed with backend operations. Grad with
// CreateGraph runs them on the recording backend, so gradients are
// themselves differentiable (used by the R1 gradient penalty).
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	x := tensor.MustFromSlice([]float64{2.0}, tensor.Shape{1}, backend)
//	y := x.Mul(x) // y = x²
//
//	grads := autodiff.Backward(y, backend)
//	fmt.Println(grads[x.Raw()]) // dy/dx = 2x = 4.0
package autodiff

import (
	"github.com/born-ml/nerfloss/internal/autodiff/ops"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend (CPU, GPU, etc.)
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
// Useful for:
//   - Starting/stopping recording
//   - Clearing tape between iterations
//   - Inspecting recorded operations
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// NoGrad runs f with recording paused.
func (b *AutodiffBackend[B]) NoGrad(f func()) {
	was := b.tape.IsRecording()
	b.tape.StopRecording()
	defer func() {
		if was {
			b.tape.StartRecording()
		}
	}()
	f()
}

// record adds op to the tape when recording. Operations producing
// non-float tensors carry no gradient and are never recorded.
func (b *AutodiffBackend[B]) record(op ops.Operation) {
	if b.tape.IsRecording() && op.Output().DType().IsFloat() {
		b.tape.Record(op)
	}
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.record(ops.NewMulOp(a, c, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.record(ops.NewDivOp(a, c, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.record(ops.NewMatMulOp(a, c, result))
	return result
}

// AddScalar adds a scalar and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	result := b.inner.AddScalar(x, s)
	b.record(ops.NewAddScalarOp(x, result))
	return result
}

// MulScalar multiplies by a scalar and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	result := b.inner.MulScalar(x, s)
	b.record(ops.NewMulScalarOp(x, result, s))
	return result
}

// Exp computes e^x and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Exp(x)
	b.record(ops.NewExpOp(x, result))
	return result
}

// Log computes ln(x) and records the operation.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Log(x)
	b.record(ops.NewLogOp(x, result))
	return result
}

// Sqrt computes √x and records the operation.
func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sqrt(x)
	b.record(ops.NewSqrtOp(x, result))
	return result
}

// Abs computes |x| and records the operation.
func (b *AutodiffBackend[B]) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Abs(x)
	b.record(ops.NewAbsOp(x, result))
	return result
}

// Sign computes sign(x). Its derivative is zero almost everywhere, so it is
// not recorded.
func (b *AutodiffBackend[B]) Sign(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Sign(x)
}

// Sigmoid computes σ(x) and records the operation.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sigmoid(x)
	b.record(ops.NewSigmoidOp(x, result))
	return result
}

// Softplus computes log(1 + e^x) and records the operation.
func (b *AutodiffBackend[B]) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Softplus(x)
	b.record(ops.NewSoftplusOp(x, result))
	return result
}

// Clamp limits x to [lo, hi] and records the operation.
func (b *AutodiffBackend[B]) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	result := b.inner.Clamp(x, lo, hi)
	b.record(ops.NewClampOp(x, result, lo, hi))
	return result
}

// Apply runs a custom function and records it with its own backward rule.
func (b *AutodiffBackend[B]) Apply(fn tensor.UnaryFunction, x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Apply(fn, x)
	b.record(ops.NewFunctionOp(fn, x, result))
	return result
}

// Sum reduces to a 0-d tensor and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	b.record(ops.NewSumOp(x, result))
	return result
}

// SumDim sums along dim and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	dim = tensor.NormalizeDim(dim, len(x.Shape()))
	result := b.inner.SumDim(x, dim, keepDim)
	b.record(ops.NewSumDimOp(x, result, dim, keepDim))
	return result
}

// CumSum scans along dim and records the operation.
func (b *AutodiffBackend[B]) CumSum(x *tensor.RawTensor, dim int, reverse bool) *tensor.RawTensor {
	dim = tensor.NormalizeDim(dim, len(x.Shape()))
	result := b.inner.CumSum(x, dim, reverse)
	b.record(ops.NewCumSumOp(x, result, dim, reverse))
	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape must be recorded even though it only creates a view: the view is a
// distinct tensor for the tape, and without ReshapeOp its gradient would never
// reach the original.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose permutes dimensions and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	ndim := len(t.Shape())
	perm := make([]int, ndim)
	if len(axes) == 0 {
		for i := range perm {
			perm[i] = ndim - 1 - i
		}
	} else {
		for i, ax := range axes {
			perm[i] = tensor.NormalizeDim(ax, ndim)
		}
	}

	result := b.inner.Transpose(t, perm...)
	b.record(ops.NewTransposeOp(t, result, perm))
	return result
}

// Expand broadcasts to shape and records the operation.
func (b *AutodiffBackend[B]) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Expand(x, shape)
	b.record(ops.NewExpandOp(x, result))
	return result
}

// Cat concatenates along dim and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	dim = tensor.NormalizeDim(dim, len(tensors[0].Shape()))
	result := b.inner.Cat(tensors, dim)
	b.record(ops.NewCatOp(tensors, result, dim))
	return result
}

// Narrow takes a range along dim and records the operation.
func (b *AutodiffBackend[B]) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	dim = tensor.NormalizeDim(dim, len(x.Shape()))
	result := b.inner.Narrow(x, dim, start, length)
	b.record(ops.NewNarrowOp(x, result, dim, start))
	return result
}

// Gather selects along dim and records the operation.
func (b *AutodiffBackend[B]) Gather(x *tensor.RawTensor, dim int, index *tensor.RawTensor) *tensor.RawTensor {
	dim = tensor.NormalizeDim(dim, len(x.Shape()))
	result := b.inner.Gather(x, dim, index)
	b.record(ops.NewGatherOp(x, index, result, dim))
	return result
}

// ScatterAdd accumulates src into zeros and records the operation.
func (b *AutodiffBackend[B]) ScatterAdd(shape tensor.Shape, dim int, index, src *tensor.RawTensor) *tensor.RawTensor {
	dim = tensor.NormalizeDim(dim, len(shape))
	result := b.inner.ScatterAdd(shape, dim, index, src)
	b.record(ops.NewScatterAddOp(src, index, result, dim))
	return result
}

// Where selects between x and y and records the operation.
func (b *AutodiffBackend[B]) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Where(cond, x, y)
	b.record(ops.NewWhereOp(cond, x, y, result))
	return result
}

// Cast converts dtype. Only float-to-float casts carry gradient.
func (b *AutodiffBackend[B]) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	result := b.inner.Cast(x, dtype)
	if x.DType().IsFloat() {
		b.record(ops.NewCastOp(x, result))
	}
	return result
}

// SearchSorted is not differentiable and is forwarded unrecorded.
func (b *AutodiffBackend[B]) SearchSorted(sorted, values *tensor.RawTensor, right bool) *tensor.RawTensor {
	return b.inner.SearchSorted(sorted, values, right)
}

// Greater is forwarded unrecorded.
func (b *AutodiffBackend[B]) Greater(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Greater(a, c)
}

// GreaterEqual is forwarded unrecorded.
func (b *AutodiffBackend[B]) GreaterEqual(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.GreaterEqual(a, c)
}

// Lower is forwarded unrecorded.
func (b *AutodiffBackend[B]) Lower(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Lower(a, c)
}

// LowerEqual is forwarded unrecorded.
func (b *AutodiffBackend[B]) LowerEqual(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.LowerEqual(a, c)
}

// And is forwarded unrecorded.
func (b *AutodiffBackend[B]) And(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.And(a, c)
}

// Or is forwarded unrecorded.
func (b *AutodiffBackend[B]) Or(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Or(a, c)
}

// Not is forwarded unrecorded.
func (b *AutodiffBackend[B]) Not(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Not(x)
}
