package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/autodiff"
	"github.com/born-ml/nerfloss/backend/cpu"
	"github.com/born-ml/nerfloss/nn"
	"github.com/born-ml/nerfloss/tensor"
)

type Backend = *autodiff.Backend[*cpu.Backend]

func TestDiscriminatorTrainsThroughPublicAPI(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(3))
	disc := nn.NewSequential[float64, Backend](
		nn.NewLinear[float64](3, 4, rng, backend),
		nn.NewLeakyReLU[float64, Backend](0.2),
		nn.NewLinear[float64](4, 1, rng, backend),
	)
	require.Len(t, disc.Parameters(), 4)

	backend.Tape().StartRecording()
	x := tensor.Randn[float64](tensor.Shape{5, 3}, rng, backend)
	out := disc.Forward(x).Mean()
	grads := autodiff.Backward(out, backend)
	backend.Tape().StopRecording()

	for _, p := range disc.Parameters() {
		assert.Contains(t, grads, p.Tensor().Raw(), p.Name())
	}
}

func TestTruncExp(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	x := tensor.MustFromSlice([]float64{0, 20}, tensor.Shape{2}, backend)
	y := nn.TruncExp(x)
	grads := autodiff.Backward(y, backend)
	backend.Tape().StopRecording()

	assert.InDeltaSlice(t, []float64{1, math.Exp(20)}, y.Data(), 1e-6)
	assert.InDeltaSlice(t, []float64{1, math.Exp(nn.TruncExpClamp)}, grads[x.Raw()].AsFloat64(), 1e-6)
}

func TestNewLoss(t *testing.T) {
	backend := cpu.New()
	l1, err := nn.NewLoss[float64, *cpu.Backend]("L1")
	require.NoError(t, err)
	pred := tensor.MustFromSlice([]float64{1, 2}, tensor.Shape{2}, backend)
	target := tensor.MustFromSlice([]float64{0, 4}, tensor.Shape{2}, backend)
	assert.InDelta(t, 1.5, l1.Forward(pred, target).Item(), 1e-15)

	_, err = nn.NewLoss[float64, *cpu.Backend]("huber")
	assert.Error(t, err)
}
