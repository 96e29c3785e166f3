package tensor

import (
	"fmt"
	"math"
)

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones[float32](Shape{3, 1}, backend)
//	b := tensor.Ones[float32](Shape{3, 5}, backend)
//	c := a.Add(b) // Shape: [3, 5] (broadcasted)
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Div(t.raw, other.raw), t.backend)
}

// AddScalar adds s to every element.
func (t *Tensor[T, B]) AddScalar(s float64) *Tensor[T, B] {
	return New[T, B](t.backend.AddScalar(t.raw, s), t.backend)
}

// SubScalar subtracts s from every element.
func (t *Tensor[T, B]) SubScalar(s float64) *Tensor[T, B] {
	return t.AddScalar(-s)
}

// MulScalar multiplies every element by s.
func (t *Tensor[T, B]) MulScalar(s float64) *Tensor[T, B] {
	return New[T, B](t.backend.MulScalar(t.raw, s), t.backend)
}

// DivScalar divides every element by s.
func (t *Tensor[T, B]) DivScalar(s float64) *Tensor[T, B] {
	return t.MulScalar(1 / s)
}

// Neg negates every element.
func (t *Tensor[T, B]) Neg() *Tensor[T, B] {
	return t.MulScalar(-1)
}

// Square returns t*t.
func (t *Tensor[T, B]) Square() *Tensor[T, B] {
	return t.Mul(t)
}

// MatMul performs 2-D matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMul(t.raw, other.raw), t.backend)
}

// Exp computes e^x element-wise.
func (t *Tensor[T, B]) Exp() *Tensor[T, B] {
	return New[T, B](t.backend.Exp(t.raw), t.backend)
}

// Log computes the natural logarithm element-wise.
func (t *Tensor[T, B]) Log() *Tensor[T, B] {
	return New[T, B](t.backend.Log(t.raw), t.backend)
}

// Sqrt computes the square root element-wise.
func (t *Tensor[T, B]) Sqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Sqrt(t.raw), t.backend)
}

// Abs computes |x| element-wise.
func (t *Tensor[T, B]) Abs() *Tensor[T, B] {
	return New[T, B](t.backend.Abs(t.raw), t.backend)
}

// Sign returns -1, 0 or 1 element-wise. It carries no gradient.
func (t *Tensor[T, B]) Sign() *Tensor[T, B] {
	return New[T, B](t.backend.Sign(t.raw), t.backend)
}

// Sigmoid computes 1 / (1 + e^-x) element-wise.
func (t *Tensor[T, B]) Sigmoid() *Tensor[T, B] {
	return New[T, B](t.backend.Sigmoid(t.raw), t.backend)
}

// Softplus computes log(1 + e^x) element-wise.
func (t *Tensor[T, B]) Softplus() *Tensor[T, B] {
	return New[T, B](t.backend.Softplus(t.raw), t.backend)
}

// Clamp limits every element to [lo, hi]. Use ±Inf for a one-sided clamp.
func (t *Tensor[T, B]) Clamp(lo, hi float64) *Tensor[T, B] {
	return New[T, B](t.backend.Clamp(t.raw, lo, hi), t.backend)
}

// ClampMin limits every element to be at least lo.
func (t *Tensor[T, B]) ClampMin(lo float64) *Tensor[T, B] {
	return t.Clamp(lo, math.Inf(1))
}

// ClampMax limits every element to be at most hi.
func (t *Tensor[T, B]) ClampMax(hi float64) *Tensor[T, B] {
	return t.Clamp(math.Inf(-1), hi)
}

// Apply runs a custom element-wise function.
func (t *Tensor[T, B]) Apply(fn UnaryFunction) *Tensor[T, B] {
	return New[T, B](t.backend.Apply(fn, t.raw), t.backend)
}

// Sum reduces all elements to a 0-d tensor.
func (t *Tensor[T, B]) Sum() *Tensor[T, B] {
	return New[T, B](t.backend.Sum(t.raw), t.backend)
}

// SumDim sums along dim. Negative dims count from the end.
func (t *Tensor[T, B]) SumDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// Mean averages all elements into a 0-d tensor.
func (t *Tensor[T, B]) Mean() *Tensor[T, B] {
	return t.Sum().MulScalar(1 / float64(t.NumElements()))
}

// MeanDim averages along dim.
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	d := NormalizeDim(dim, t.Dims())
	return t.SumDim(d, keepDim).MulScalar(1 / float64(t.Shape()[d]))
}

// Norm computes the L2 norm along dim.
func (t *Tensor[T, B]) Norm(dim int, keepDim bool) *Tensor[T, B] {
	return t.Square().SumDim(dim, keepDim).Sqrt()
}

// CumSum computes the inclusive prefix sum along dim.
func (t *Tensor[T, B]) CumSum(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.CumSum(t.raw, dim, false), t.backend)
}

// CumSumReverse computes the inclusive suffix sum along dim.
func (t *Tensor[T, B]) CumSumReverse(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.CumSum(t.raw, dim, true), t.backend)
}

// Reshape returns a tensor with the same data but different shape.
// One dimension may be -1 and is inferred from the element count.
//
// Example:
//
//	reshaped := t.Reshape(3, -1)
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	shape := inferShape(Shape(newShape), t.NumElements())
	return New[T, B](t.backend.Reshape(t.raw, shape), t.backend)
}

// Transpose permutes the tensor's dimensions.
//
// If axes is empty, reverses all dimensions (for 2D, this is standard transpose).
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// T is a shortcut for 2D transpose (swaps rows and columns).
// Panics if the tensor is not 2D.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if t.Dims() != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}

// Expand broadcasts the tensor to shape.
func (t *Tensor[T, B]) Expand(shape Shape) *Tensor[T, B] {
	if t.Shape().Equal(shape) {
		return t
	}
	return New[T, B](t.backend.Expand(t.raw, shape), t.backend)
}

// Unsqueeze inserts a dimension of size 1 at dim.
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	d := NormalizeDim(dim, len(shape)+1)
	out := make([]int, 0, len(shape)+1)
	out = append(out, shape[:d]...)
	out = append(out, 1)
	out = append(out, shape[d:]...)
	return t.Reshape(out...)
}

// Squeeze removes the dimension dim, which must have size 1.
func (t *Tensor[T, B]) Squeeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	d := NormalizeDim(dim, len(shape))
	if shape[d] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, expected 1", d, shape[d]))
	}
	out := make([]int, 0, len(shape)-1)
	out = append(out, shape[:d]...)
	out = append(out, shape[d+1:]...)
	return t.Reshape(out...)
}

// Narrow returns length elements along dim starting at start.
// Negative start counts from the end.
func (t *Tensor[T, B]) Narrow(dim, start, length int) *Tensor[T, B] {
	d := NormalizeDim(dim, t.Dims())
	if start < 0 {
		start += t.Shape()[d]
	}
	return New[T, B](t.backend.Narrow(t.raw, d, start, length), t.backend)
}

// Gather selects values along dim using an Int32 index of the same rank.
func (t *Tensor[T, B]) Gather(dim int, index *Tensor[int32, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Gather(t.raw, dim, index.raw), t.backend)
}

// Subsample keeps every step-th element along dim, starting at 0.
func (t *Tensor[T, B]) Subsample(dim, step int) *Tensor[T, B] {
	if step == 1 {
		return t
	}
	d := NormalizeDim(dim, t.Dims())
	return t.Gather(d, strideIndex(t.Shape(), d, step, t.backend))
}

// Greater returns t > other element-wise.
func (t *Tensor[T, B]) Greater(other *Tensor[T, B]) *Tensor[bool, B] {
	return New[bool, B](t.backend.Greater(t.raw, other.raw), t.backend)
}

// GreaterEqual returns t >= other element-wise.
func (t *Tensor[T, B]) GreaterEqual(other *Tensor[T, B]) *Tensor[bool, B] {
	return New[bool, B](t.backend.GreaterEqual(t.raw, other.raw), t.backend)
}

// Lower returns t < other element-wise.
func (t *Tensor[T, B]) Lower(other *Tensor[T, B]) *Tensor[bool, B] {
	return New[bool, B](t.backend.Lower(t.raw, other.raw), t.backend)
}

// LowerEqual returns t <= other element-wise.
func (t *Tensor[T, B]) LowerEqual(other *Tensor[T, B]) *Tensor[bool, B] {
	return New[bool, B](t.backend.LowerEqual(t.raw, other.raw), t.backend)
}

// GreaterScalar returns t > s element-wise.
func (t *Tensor[T, B]) GreaterScalar(s float64) *Tensor[bool, B] {
	return t.Greater(scalarLike(t, s))
}

// LowerScalar returns t < s element-wise.
func (t *Tensor[T, B]) LowerScalar(s float64) *Tensor[bool, B] {
	return t.Lower(scalarLike(t, s))
}

// And computes logical AND on bool tensors.
func (t *Tensor[T, B]) And(other *Tensor[T, B]) *Tensor[bool, B] {
	return New[bool, B](t.backend.And(t.raw, other.raw), t.backend)
}

// Or computes logical OR on bool tensors.
func (t *Tensor[T, B]) Or(other *Tensor[T, B]) *Tensor[bool, B] {
	return New[bool, B](t.backend.Or(t.raw, other.raw), t.backend)
}

// Not computes logical NOT on a bool tensor.
func (t *Tensor[T, B]) Not() *Tensor[bool, B] {
	return New[bool, B](t.backend.Not(t.raw), t.backend)
}

// Cast converts t to element type U.
//
// Example:
//
//	maskF := tensor.Cast[float32](mask) // bool -> float32
func Cast[U, T DType, B Backend](t *Tensor[T, B]) *Tensor[U, B] {
	if t.DType() == DataTypeOf[U]() {
		return any(t).(*Tensor[U, B])
	}
	return New[U, B](t.backend.Cast(t.raw, DataTypeOf[U]()), t.backend)
}

// Where selects x where cond is true and y elsewhere, with broadcasting.
func Where[T DType, B Backend](cond *Tensor[bool, B], x, y *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](x.backend.Where(cond.raw, x.raw, y.raw), x.backend)
}

// Cat concatenates tensors along dim.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	b := tensors[0].backend
	return New[T, B](b.Cat(raws, dim), b)
}

// ScatterAdd builds a zero tensor of the given shape and adds src into it at
// index positions along dim.
func ScatterAdd[T DType, B Backend](shape Shape, dim int, index *Tensor[int32, B], src *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](src.backend.ScatterAdd(shape, dim, index.raw, src.raw), src.backend)
}

// SearchSorted finds Int32 insertion points of values into sorted along the
// last dimension. With right=false it returns the leftmost i such that
// sorted[i-1] < v <= sorted[i]; with right=true the rightmost i such that
// sorted[i-1] <= v < sorted[i].
func SearchSorted[T DType, B Backend](sorted, values *Tensor[T, B], right bool) *Tensor[int32, B] {
	return New[int32, B](sorted.backend.SearchSorted(sorted.raw, values.raw, right), sorted.backend)
}

// scalarLike builds a 0-d tensor with t's dtype holding s.
func scalarLike[T DType, B Backend](t *Tensor[T, B], s float64) *Tensor[T, B] {
	out := Zeros[T, B](Shape{}, t.backend)
	switch p := any(&out.Data()[0]).(type) {
	case *float32:
		*p = float32(s)
	case *float64:
		*p = s
	case *int32:
		*p = int32(s)
	case *bool:
		*p = s != 0
	}
	return out
}

// strideIndex builds the gather index that keeps every step-th element along dim.
func strideIndex[B Backend](shape Shape, dim, step int, b B) *Tensor[int32, B] {
	outShape := shape.Clone()
	outShape[dim] = (shape[dim] + step - 1) / step
	idx := Zeros[int32, B](outShape, b)
	data := idx.Data()
	_, size, inner := outShape.SplitAt(dim)
	for i := range data {
		data[i] = int32((i / inner % size) * step) //nolint:gosec // G115: bounded by shape[dim].
	}
	return idx
}

func inferShape(shape Shape, n int) Shape {
	out := shape.Clone()
	infer := -1
	known := 1
	for i, d := range out {
		if d == -1 {
			if infer >= 0 {
				panic("reshape: only one dimension can be inferred")
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || n%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension for %d elements into %v", n, shape))
		}
		out[infer] = n / known
	}
	if out.NumElements() != n {
		panic(fmt.Sprintf("reshape: cannot reshape %d elements into %v", n, shape))
	}
	return out
}

// ClampIndex returns clamp(idx+offset, lo, hi). Index tensors are never part
// of the gradient graph, so the result is computed directly on the host.
func ClampIndex[B Backend](idx *Tensor[int32, B], offset, lo, hi int32) *Tensor[int32, B] {
	out := Zeros[int32, B](idx.Shape(), idx.backend)
	dst := out.Data()
	for i, v := range idx.Data() {
		dst[i] = min(max(v+offset, lo), hi)
	}
	return out
}
