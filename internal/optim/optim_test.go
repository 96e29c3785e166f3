package optim_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/autodiff"
	"github.com/born-ml/nerfloss/internal/backend/cpu"
	"github.com/born-ml/nerfloss/internal/nn"
	"github.com/born-ml/nerfloss/internal/optim"
	"github.com/born-ml/nerfloss/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func scalarParam(backend Backend, v float64) *nn.Parameter[float64, Backend] {
	return nn.NewParameter("x", tensor.MustFromSlice([]float64{v}, tensor.Shape{1}, backend))
}

func gradMap(p *nn.Parameter[float64, Backend], g float64) map[*tensor.RawTensor]*tensor.RawTensor {
	raw := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float64, tensor.CPU)
	raw.AsFloat64()[0] = g
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): raw}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(backend, 2)
	opt := optim.NewSGD([]*nn.Parameter[float64, Backend]{param}, optim.SGDConfig{LR: 0.1})

	opt.Step(gradMap(param, 1))

	assert.InDelta(t, 1.9, param.Tensor().Item(), 1e-12)
	assert.NotNil(t, param.Grad())
	opt.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(backend, 1)
	opt := optim.NewSGD([]*nn.Parameter[float64, Backend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	opt.Step(gradMap(param, 1)) // v=1, x=0.9
	opt.Step(gradMap(param, 1)) // v=1.9, x=0.71

	assert.InDelta(t, 0.71, param.Tensor().Item(), 1e-12)

	state := opt.StateDict()
	require.Contains(t, state, "velocity.0")
	assert.InDelta(t, 1.9, state["velocity.0"].AsFloat64()[0], 1e-12)

	restored := optim.NewSGD([]*nn.Parameter[float64, Backend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, restored.LoadStateDict(state))
	restored.Step(gradMap(param, 0)) // v=1.71, x=0.539
	assert.InDelta(t, 0.539, param.Tensor().Item(), 1e-12)
}

func TestSGD_SkipsMissingGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a, b := scalarParam(backend, 1), scalarParam(backend, 5)
	opt := optim.NewSGD([]*nn.Parameter[float64, Backend]{a, b}, optim.SGDConfig{LR: 0.5})

	opt.Step(gradMap(a, 2))

	assert.InDelta(t, 0.0, a.Tensor().Item(), 1e-12)
	assert.InDelta(t, 5.0, b.Tensor().Item(), 1e-12)
}

func TestAdam_FirstStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(backend, 1)
	opt := optim.NewAdam([]*nn.Parameter[float64, Backend]{param}, optim.AdamConfig{LR: 0.1})

	// With bias correction the first step moves by lr·g/(|g|+eps) ≈ lr.
	opt.Step(gradMap(param, 3))

	assert.InDelta(t, 0.9, param.Tensor().Item(), 1e-6)
	assert.Equal(t, 1, opt.GetTimestep())
	assert.InDelta(t, 0.1, opt.GetLR(), 0)
	opt.SetLR(0.01)
	assert.InDelta(t, 0.01, opt.GetLR(), 0)
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(backend, 1)
	opt := optim.NewAdam([]*nn.Parameter[float64, Backend]{param}, optim.AdamConfig{LR: 0.1})
	opt.Step(gradMap(param, 1))
	opt.Step(gradMap(param, -2))

	state := opt.StateDict()
	assert.Contains(t, state, "m.0")
	assert.Contains(t, state, "v.0")

	restored := optim.NewAdam([]*nn.Parameter[float64, Backend]{param}, optim.AdamConfig{LR: 0.1})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, 2, restored.GetTimestep())

	bad := map[string]*tensor.RawTensor{"m.0": tensor.MustNewRaw(tensor.Shape{2}, tensor.Float64, tensor.CPU)}
	assert.Error(t, restored.LoadStateDict(bad))
}

// TestAdam_FitsLinearRegression trains y = 2x - 1 end to end through the tape.
func TestAdam_FitsLinearRegression(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(7))
	layer := nn.NewLinear[float64](1, 1, rng, backend)
	opt := optim.NewAdam(layer.Parameters(), optim.AdamConfig{LR: 0.05})
	mse := nn.NewMSELoss[float64, Backend]()

	xs := []float64{-1, -0.5, 0, 0.5, 1}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 2*x - 1
	}
	input := tensor.MustFromSlice(xs, tensor.Shape{5, 1}, backend)
	target := tensor.MustFromSlice(ys, tensor.Shape{5, 1}, backend)

	var last float64
	for step := range 500 {
		opt.SetLR(0.05 * math.Pow(0.995, float64(step)))
		backend.Tape().Clear()
		backend.Tape().StartRecording()
		loss := mse.Forward(layer.Forward(input), target)
		grads := autodiff.Backward(loss, backend)
		backend.Tape().StopRecording()
		opt.Step(grads)
		opt.ZeroGrad()
		last = loss.Item()
	}

	assert.Less(t, last, 1e-3)
	assert.InDelta(t, 2.0, layer.Weight().Tensor().Item(), 5e-2)
	assert.InDelta(t, -1.0, layer.Bias().Tensor().Item(), 5e-2)
	assert.False(t, math.IsNaN(last))
}
