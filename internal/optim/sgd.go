package optim

import (
	"github.com/born-ml/nerfloss/internal/nn"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD[T tensor.Float, B tensor.Backend] struct {
	params     []*nn.Parameter[T, B]
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter[T, B]][]T
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD[T tensor.Float, B tensor.Backend](params []*nn.Parameter[T, B], config SGDConfig) *SGD[T, B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[T, B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[T, B]][]T),
	}
}

// Step performs a single optimization step.
// Parameters with no gradient (not in computational graph) are skipped.
func (s *SGD[T, B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		g := gradientFor(param, grads)
		if g == nil {
			continue
		}
		data := param.Tensor().Data()

		if s.momentum == 0 {
			for i := range data {
				data[i] -= T(s.lr * float64(g[i]))
			}
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = make([]T, len(data))
			s.velocities[param] = velocity
		}
		for i := range data {
			velocity[i] = T(s.momentum*float64(velocity[i]) + float64(g[i]))
			data[i] -= T(s.lr * float64(velocity[i]))
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[T, B]) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD[T, B]) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[T, B]) SetLR(lr float64) {
	s.lr = lr
}

// StateDict exports velocity buffers as "velocity.<i>". Without momentum the
// map is empty.
func (s *SGD[T, B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	if s.momentum != 0 {
		saveBuffers(stateDict, "velocity", s.params, s.velocities)
	}
	return stateDict
}

// LoadStateDict restores velocity buffers written by StateDict.
func (s *SGD[T, B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}
	velocities, err := loadBuffers(stateDict, "velocity", s.params)
	if err != nil {
		return err
	}
	s.velocities = velocities
	return nil
}

var (
	_ Optimizer = (*SGD[float32, tensor.Backend])(nil)
	_ Optimizer = (*Adam[float32, tensor.Backend])(nil)
)
