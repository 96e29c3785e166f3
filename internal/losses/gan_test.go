package losses_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/autodiff"
	"github.com/born-ml/nerfloss/internal/losses"
	"github.com/born-ml/nerfloss/internal/nn"
)

func softplus(x float64) float64 {
	return math.Log1p(math.Exp(x))
}

func TestGANLoss_Generator(t *testing.T) {
	b := newBackend()
	gan := losses.NewGANLoss[float64, Backend]()
	fake := fromSlice(b, []float64{0, 2, -1}, 3, 1)

	want := (softplus(0) + softplus(-2) + softplus(1)) / 3
	assert.InDelta(t, want, gan.Generator(fake).Item(), 1e-12)
}

func TestGANLoss_DiscriminatorWithoutRegularization(t *testing.T) {
	b := newBackend()
	gan := losses.NewGANLoss[float64, Backend]()
	fake := fromSlice(b, []float64{0.5, -1}, 2, 1)
	real := fromSlice(b, []float64{1.5, 0.2}, 2, 1)

	want := (softplus(-1.5)+softplus(-0.2))/2 + (softplus(0.5)+softplus(-1))/2
	got := gan.Discriminator(losses.DiscriminatorInputs[float64, Backend]{FakePred: fake, RealPred: real, Step: 3})
	assert.InDelta(t, want, got.Item(), 1e-12)

	assert.True(t, gan.RegularizesAt(32))
	assert.False(t, gan.RegularizesAt(33))
	assert.False(t, (&losses.GANLoss[float64, Backend]{RegStep: 0}).RegularizesAt(0))

	assert.Panics(t, func() {
		gan.Discriminator(losses.DiscriminatorInputs[float64, Backend]{FakePred: fake, RealPred: real, Step: 16})
	})
}

// TestGANLoss_R1PenaltyLinear: for D(x) = x·v + c the input gradient is v
// for every sample, so the penalty is ‖v‖² and its gradient is 2v.
func TestGANLoss_R1PenaltyLinear(t *testing.T) {
	b := newBackend()
	rng := rand.New(rand.NewSource(19))
	disc := nn.NewLinear[float64](3, 1, rng, b)
	gan := losses.NewGANLoss[float64, Backend]()

	b.Tape().StartRecording()
	img := fromSlice(b, uniform(rng, 12, -1, 1), 4, 3)
	penalty := gan.R1Penalty(disc.Forward(img), img)

	v := disc.Weight().Tensor().Data()
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	assert.InDelta(t, norm, penalty.Item(), 1e-12)

	grads := autodiff.Backward(penalty, b)
	require.True(t, disc.Weight().CollectGrad(grads))
	for i, x := range v {
		assert.InDelta(t, 2*x, disc.Weight().Grad().Data()[i], 1e-12)
	}
}

// TestGANLoss_R1PenaltySecondOrder checks the gradient of a regularized
// discriminator loss for the first-layer weights of a small MLP against
// finite differences.
func TestGANLoss_R1PenaltySecondOrder(t *testing.T) {
	b := newBackend()
	rng := rand.New(rand.NewSource(20))
	first := nn.NewLinear[float64](3, 4, rng, b)
	disc := nn.NewSequential[float64, Backend](
		first,
		nn.NewSoftplus[float64, Backend](),
		nn.NewLinear[float64](4, 1, rng, b),
	)
	imgData := uniform(rng, 15, -1, 1)

	// discLoss records a fresh discriminator step; the caller stops the tape.
	discLoss := func(gan *losses.GANLoss[float64, Backend]) *Tensor {
		b.Tape().Clear()
		b.Tape().StartRecording()
		img := fromSlice(b, imgData, 5, 3)
		fake := disc.Forward(fromSlice(b, imgData, 5, 3).MulScalar(-0.5))
		return gan.Discriminator(losses.DiscriminatorInputs[float64, Backend]{
			FakePred: fake,
			RealPred: disc.Forward(img),
			RealImg:  img,
			Step:     8,
		})
	}
	gradOf := func(gan *losses.GANLoss[float64, Backend]) []float64 {
		grads := autodiff.Backward(discLoss(gan), b)
		b.Tape().StopRecording()
		require.True(t, first.Weight().CollectGrad(grads))
		return first.Weight().Grad().Data()
	}

	regularized := &losses.GANLoss[float64, Backend]{R1Gamma: 10, RegStep: 4}
	analytic := gradOf(regularized)

	weights := first.Weight().Tensor().Data()
	const h = 1e-6
	for i := range weights {
		orig := weights[i]
		weights[i] = orig + h
		plus := discLoss(regularized).Item()
		weights[i] = orig - h
		minus := discLoss(regularized).Item()
		weights[i] = orig
		b.Tape().StopRecording()

		numeric := (plus - minus) / (2 * h)
		assert.InDelta(t, numeric, analytic[i], 1e-5*(1+math.Abs(numeric)), "weight %d", i)
	}

	// The penalty reaches the weights: without it the gradient differs.
	plain := gradOf(&losses.GANLoss[float64, Backend]{R1Gamma: 0, RegStep: 4})
	assert.NotEqual(t, analytic, plain)
}
