package autodiff

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
	// InnerBackend returns the wrapped backend, used to compute gradients
	// that are not themselves recorded.
	InnerBackend() tensor.Backend
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// InnerBackend returns the wrapped backend as a tensor.Backend.
func (b *AutodiffBackend[B]) InnerBackend() tensor.Backend {
	return b.inner
}

// GradOptions controls Grad.
type GradOptions struct {
	// CreateGraph records the gradient computation on the tape so the
	// returned gradients can be differentiated again.
	CreateGraph bool
	// NoWeightGradients restricts the reverse pass to the paths from inputs
	// to the output. Operations that support it skip gradients for other
	// operands (typically layer weights) entirely.
	NoWeightGradients bool
}

// Backward computes gradients for a tensor using the AutodiffBackend's tape.
//
// The output gradient is a tensor of ones, so for a non-scalar t the result
// is the gradient of t.Sum().
//
// Returns a map from RawTensor to its gradient.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float32](tensor.Shape{2}, backend)
//	y := x.Mul(x) // y = x²
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()] // Get gradient for x
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()

	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	return tape.Backward(t.Raw(), onesLike(t.Raw(), "backward"), backend.InnerBackend())
}

// Grad computes the gradient of output.Sum() with respect to each of inputs.
//
// Inputs that output does not depend on get a zero gradient. With
// opts.CreateGraph the gradients are computed on the recording backend and
// remain connected to the graph, so a later Backward through an expression
// of the gradients reaches every tensor they depend on.
//
// Example (R1 penalty):
//
//	g := autodiff.Grad(realPred, []*tensor.Tensor[float64, B]{realImg}, backend,
//		autodiff.GradOptions{CreateGraph: true, NoWeightGradients: true})[0]
//	penalty := g.Square().Sum()
func Grad[T tensor.Float, B BackwardCapable](
	output *tensor.Tensor[T, B],
	inputs []*tensor.Tensor[T, B],
	backend B,
	opts GradOptions,
) []*tensor.Tensor[T, B] {
	tape := backend.GetTape()
	seed := onesLike(output.Raw(), "grad")

	var gradBackend tensor.Backend = backend.InnerBackend()
	if opts.CreateGraph {
		gradBackend = backend
		if !tape.IsRecording() {
			tape.StartRecording()
			defer tape.StopRecording()
		}
	}

	var reach map[*tensor.RawTensor]bool
	if opts.NoWeightGradients {
		raws := make([]*tensor.RawTensor, len(inputs))
		for i, in := range inputs {
			raws[i] = in.Raw()
		}
		reach = tape.reachable(raws)
	}

	grads := tape.walk(output.Raw(), seed, gradBackend, reach, opts.NoWeightGradients)

	out := make([]*tensor.Tensor[T, B], len(inputs))
	for i, in := range inputs {
		g, ok := grads[in.Raw()]
		if !ok {
			out[i] = tensor.Zeros[T, B](in.Shape(), backend)
			continue
		}
		out[i] = tensor.New[T, B](g, backend)
	}
	return out
}

// onesLike creates the seed gradient for a reverse pass.
func onesLike(t *tensor.RawTensor, op string) *tensor.RawTensor {
	seed, err := tensor.NewRaw(t.Shape(), t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create output gradient: %v", op, err))
	}

	switch t.DType() {
	case tensor.Float32:
		data := seed.AsFloat32()
		for i := range data {
			data[i] = 1.0
		}
	case tensor.Float64:
		data := seed.AsFloat64()
		for i := range data {
			data[i] = 1.0
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", op, t.DType()))
	}
	return seed
}
