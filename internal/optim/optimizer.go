// Package optim implements the optimizers used to fit proposal and
// discriminator networks against the loss layer.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-3})
//
//	for step := range steps {
//	    backend.Tape().Clear()
//	    backend.Tape().StartRecording()
//	    loss := lossFn(model.Forward(input))
//	    grads := autodiff.Backward(loss, backend)
//	    backend.Tape().StopRecording()
//
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/nn"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Optimizer updates parameters from a gradient map produced by
// autodiff.Backward.
type Optimizer interface {
	// Step applies one update. Parameters absent from grads are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients stored on the parameters.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR replaces the learning rate, e.g. from a schedule.
	SetLR(lr float64)
}

// gradientFor returns the gradient of param as a typed slice, or nil when
// param did not take part in the computation. The gradient is also stored on
// the parameter.
func gradientFor[T tensor.Float, B tensor.Backend](param *nn.Parameter[T, B], grads map[*tensor.RawTensor]*tensor.RawTensor) []T {
	if param == nil || !param.CollectGrad(grads) {
		return nil
	}
	g := param.Grad()
	if !g.Shape().Equal(param.Tensor().Shape()) {
		panic(fmt.Sprintf("optim: gradient shape %v does not match parameter %q shape %v",
			g.Shape(), param.Name(), param.Tensor().Shape()))
	}
	return g.Data()
}

// zeroGrads clears every parameter gradient.
func zeroGrads[T tensor.Float, B tensor.Backend](params []*nn.Parameter[T, B]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// saveBuffers exports per-parameter state as "<prefix>.<index>".
func saveBuffers[T tensor.Float, B tensor.Backend](
	stateDict map[string]*tensor.RawTensor,
	prefix string,
	params []*nn.Parameter[T, B],
	buffers map[*nn.Parameter[T, B]][]T,
) {
	for i, p := range params {
		buf, ok := buffers[p]
		if !ok {
			continue
		}
		raw := tensor.MustNewRaw(p.Tensor().Shape(), tensor.DataTypeOf[T](), tensor.CPU)
		copy(tensor.Slice[T](raw), buf)
		stateDict[fmt.Sprintf("%s.%d", prefix, i)] = raw
	}
}

// loadBuffers restores state written by saveBuffers.
func loadBuffers[T tensor.Float, B tensor.Backend](
	stateDict map[string]*tensor.RawTensor,
	prefix string,
	params []*nn.Parameter[T, B],
) (map[*nn.Parameter[T, B]][]T, error) {
	buffers := make(map[*nn.Parameter[T, B]][]T)
	for i, p := range params {
		raw, ok := stateDict[fmt.Sprintf("%s.%d", prefix, i)]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return nil, fmt.Errorf("%s shape mismatch for parameter %d: expected %v, got %v",
				prefix, i, p.Tensor().Shape(), raw.Shape())
		}
		if raw.DType() != tensor.DataTypeOf[T]() {
			return nil, fmt.Errorf("%s dtype mismatch for parameter %d: expected %s, got %s",
				prefix, i, tensor.DataTypeOf[T](), raw.DType())
		}
		buffers[p] = append([]T(nil), tensor.Slice[T](raw)...)
	}
	return buffers, nil
}
