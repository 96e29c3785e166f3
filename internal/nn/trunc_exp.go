package nn

import (
	"github.com/born-ml/nerfloss/internal/tensor"
)

// TruncExpClamp bounds the exponent used by TruncExp's backward pass.
const TruncExpClamp = 15.0

// TruncExpFunction is exp(x) whose gradient uses exp(clamp(x, -15, 15)).
//
// Density fields are activated with it: the forward value is exact, while the
// gradient stays finite for very large pre-activations.
type TruncExpFunction struct{}

// Name implements tensor.UnaryFunction.
func (TruncExpFunction) Name() string {
	return "trunc_exp"
}

// Forward computes exp(x).
func (TruncExpFunction) Forward(x *tensor.RawTensor, b tensor.Backend) *tensor.RawTensor {
	return b.Exp(x)
}

// Backward computes grad · exp(clamp(x, -15, 15)).
func (TruncExpFunction) Backward(x, _, grad *tensor.RawTensor, b tensor.Backend) *tensor.RawTensor {
	return b.Mul(grad, b.Exp(b.Clamp(x, -TruncExpClamp, TruncExpClamp)))
}

// TruncExp applies TruncExpFunction element-wise.
func TruncExp[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return x.Apply(TruncExpFunction{})
}
