package optim

import (
	"math"

	"github.com/born-ml/nerfloss/internal/nn"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * g
//	v_t = beta2 * v_{t-1} + (1-beta2) * g²
//	param -= lr * (m_t / (1-beta1^t)) / (sqrt(v_t / (1-beta2^t)) + eps)
//
// With WeightDecay > 0 the decay is applied to the parameter directly
// (decoupled, as in AdamW).
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[T tensor.Float, B tensor.Backend] struct {
	params      []*nn.Parameter[T, B]
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	t           int
	m           map[*nn.Parameter[T, B]][]T
	v           map[*nn.Parameter[T, B]][]T
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR          float64    // Learning rate (default: 0.001)
	Betas       [2]float64 // Running average coefficients (default: [0.9, 0.999])
	Eps         float64    // Denominator term (default: 1e-8)
	WeightDecay float64    // Decoupled weight decay (default: 0)
}

// NewAdam creates a new Adam optimizer. Zero config fields take their defaults.
func NewAdam[T tensor.Float, B tensor.Backend](params []*nn.Parameter[T, B], config AdamConfig) *Adam[T, B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[T, B]{
		params:      params,
		lr:          config.LR,
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           make(map[*nn.Parameter[T, B]][]T),
		v:           make(map[*nn.Parameter[T, B]][]T),
	}
}

// Step performs a single Adam update. Parameters with no gradient are skipped
// and keep their moment estimates.
func (a *Adam[T, B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	biasCorrection1 := 1 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		g := gradientFor(param, grads)
		if g == nil {
			continue
		}
		data := param.Tensor().Data()
		m, ok := a.m[param]
		if !ok {
			m = make([]T, len(data))
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]T, len(data))
			a.v[param] = v
		}

		for i := range data {
			gi := float64(g[i])
			mi := a.beta1*float64(m[i]) + (1-a.beta1)*gi
			vi := a.beta2*float64(v[i]) + (1-a.beta2)*gi*gi
			m[i], v[i] = T(mi), T(vi)

			p := float64(data[i])
			if a.weightDecay != 0 {
				p -= a.lr * a.weightDecay * p
			}
			p -= a.lr * (mi / biasCorrection1) / (math.Sqrt(vi/biasCorrection2) + a.eps)
			data[i] = T(p)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[T, B]) ZeroGrad() {
	zeroGrads(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam[T, B]) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[T, B]) SetLR(lr float64) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam[T, B]) GetTimestep() int {
	return a.t
}

// StateDict exports the moment estimates as "m.<i>" and "v.<i>" plus the
// step counter as the 0-d int32 "t".
func (a *Adam[T, B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	saveBuffers(stateDict, "m", a.params, a.m)
	saveBuffers(stateDict, "v", a.params, a.v)
	step := tensor.MustNewRaw(tensor.Shape{}, tensor.Int32, tensor.CPU)
	step.AsInt32()[0] = int32(a.t)
	stateDict["t"] = step
	return stateDict
}

// LoadStateDict restores state written by StateDict.
func (a *Adam[T, B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	m, err := loadBuffers(stateDict, "m", a.params)
	if err != nil {
		return err
	}
	v, err := loadBuffers(stateDict, "v", a.params)
	if err != nil {
		return err
	}
	a.m, a.v = m, v
	if step, ok := stateDict["t"]; ok && step.DType() == tensor.Int32 && step.NumElements() == 1 {
		a.t = int(step.AsInt32()[0])
	}
	return nil
}
