package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Every method returns a freshly allocated tensor (or a view sharing an
// immutable buffer). Inputs are never modified, which lets the autodiff
// decorator keep references to them for the backward pass.
//
// Implementations:
//   - CPU: Pure Go kernels (internal/backend/cpu)
//   - Autodiff: decorator recording operations (internal/autodiff)
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2-D matrices: (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar).
	AddScalar(x *RawTensor, s float64) *RawTensor
	MulScalar(x *RawTensor, s float64) *RawTensor

	// Math operations (element-wise).
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Abs(x *RawTensor) *RawTensor
	Sign(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Softplus(x *RawTensor) *RawTensor
	Clamp(x *RawTensor, lo, hi float64) *RawTensor

	// Reduction operations.
	Sum(x *RawTensor) *RawTensor                           // total sum (0-d result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor // sum along dimension

	// Shape operations.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor // broadcast to shape
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor

	// Indexing operations.
	// Gather and ScatterAdd follow torch.gather semantics: index has the same
	// rank as the data and Int32 dtype.
	Gather(x *RawTensor, dim int, index *RawTensor) *RawTensor
	ScatterAdd(shape Shape, dim int, index, src *RawTensor) *RawTensor
	Where(cond, x, y *RawTensor) *RawTensor
	// SearchSorted returns Int32 insertion points of values into the sorted
	// last dimension of sorted. Leading dimensions must match.
	SearchSorted(sorted, values *RawTensor, right bool) *RawTensor

	// CumSum is the inclusive prefix sum along dim, or suffix sum if reverse.
	CumSum(x *RawTensor, dim int, reverse bool) *RawTensor

	// Comparison operations (element-wise, return bool tensor).
	Greater(a, b *RawTensor) *RawTensor
	GreaterEqual(a, b *RawTensor) *RawTensor
	Lower(a, b *RawTensor) *RawTensor
	LowerEqual(a, b *RawTensor) *RawTensor

	// Boolean operations (element-wise on bool tensors).
	And(a, b *RawTensor) *RawTensor
	Or(a, b *RawTensor) *RawTensor
	Not(x *RawTensor) *RawTensor

	// Cast converts to a different data type.
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Apply runs a custom element-wise function.
	Apply(fn UnaryFunction, x *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}

// UnaryFunction is a custom element-wise operation with its own backward rule.
//
// Forward computes the output. Backward receives the forward input, the
// forward output and the upstream gradient and must build the input gradient
// from backend operations, so that gradients of gradients stay available.
type UnaryFunction interface {
	Name() string
	Forward(x *RawTensor, b Backend) *RawTensor
	Backward(x, output, grad *RawTensor, b Backend) *RawTensor
}
