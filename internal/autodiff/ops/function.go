package ops

import "github.com/born-ml/nerfloss/internal/tensor"

// FunctionOp records a custom tensor.UnaryFunction so that its own backward
// rule is used instead of the rule of whatever the forward pass computed.
type FunctionOp struct {
	unary
	fn tensor.UnaryFunction
}

// NewFunctionOp creates a new FunctionOp.
func NewFunctionOp(fn tensor.UnaryFunction, x, output *tensor.RawTensor) *FunctionOp {
	return &FunctionOp{unary: unary{input: x, output: output}, fn: fn}
}

// Name returns the custom function name.
func (op *FunctionOp) Name() string {
	return op.fn.Name()
}

// Backward delegates to the function's backward rule.
func (op *FunctionOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{op.fn.Backward(op.input, op.output, outputGrad, backend)}
}
