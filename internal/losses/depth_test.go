package losses_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/losses"
	"github.com/born-ml/nerfloss/internal/tensor"
)

func depthInputs(b Backend, bins, weights, termination, predicted []float64, rays, n int) losses.DepthInputs[float64, Backend] {
	return losses.DepthInputs[float64, Backend]{
		Weights:          fromSlice(b, weights, rays, n, 1),
		Samples:          samplesFromBins(b, bins, rays, n),
		TerminationDepth: fromSlice(b, termination, rays, 1),
		PredictedDepth:   fromSlice(b, predicted, rays, 1),
		DirectionsNorm:   tensor.Ones[float64](tensor.Shape{rays, 1}, b),
		Sigma:            0.1,
		IsEuclidean:      true,
	}
}

func TestDSNeRFDepthLoss_HandComputed(t *testing.T) {
	b := newBackend()
	in := depthInputs(b, []float64{0, 1, 2}, []float64{0.3, 0.3}, []float64{1.5}, []float64{1.5}, 1, 2)

	nll := -math.Log(0.3 + losses.EPS)
	want := nll*math.Exp(-1/(2*0.1)) + nll*1
	got := losses.ComputeDepthLoss(in, losses.GaussianWeighted)
	assert.Equal(t, 0, got.Dims())
	assert.InDelta(t, want, got.Item(), 1e-12)
}

func TestURFDepthLoss_HandComputed(t *testing.T) {
	b := newBackend()
	in := depthInputs(b, []float64{0.5, 1.5, 2.5, 3.5}, []float64{0.1, 0.5, 0.2}, []float64{2}, []float64{1.8}, 1, 3)
	in.Sigma = 0.5

	// Steps are 1, 2, 3: one in front of the surface, one near it, one behind.
	std := 0.5 / losses.URFSigmaScaleFactor
	peak := 1 / (std * math.Sqrt(2*math.Pi))
	want := 0.2*0.2 + (0.5-peak)*(0.5-peak) + 0.1*0.1
	got := losses.ComputeDepthLoss(in, losses.LineOfSight)
	assert.InDelta(t, want, got.Item(), 1e-12)
}

func TestDepthLoss_InvalidRaysContributeZero(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	const rays, n = 4, 6
	bins := sortedBins(rng, rays, n)
	weights := uniform(rng, rays*n, 0, 1)
	predicted := uniform(rng, rays, 1, 2)

	for _, kind := range []losses.DepthLossKind{losses.GaussianWeighted, losses.LineOfSight} {
		t.Run(kind.String(), func(t *testing.T) {
			b := newBackend()
			invalid := depthInputs(b, bins, weights, []float64{0, -1, 0, -3}, predicted, rays, n)
			assert.Zero(t, losses.ComputeDepthLoss(invalid, kind).Item())

			checkGradient(t, b, func(x *Tensor) *Tensor {
				in := invalid
				in.Weights = x
				return losses.ComputeDepthLoss(in, kind)
			}, weights, rays, n, 1)

			// Masking one ray out equals dropping it from a batch of the same size.
			mixed := depthInputs(b, bins, weights, []float64{1, 0, 2, 0.5}, predicted, rays, n)
			full := depthInputs(b, bins, weights, []float64{1, 1, 2, 0.5}, predicted, rays, n)
			fullPerRay := perRayDepth(full, kind)
			want := (fullPerRay[0] + fullPerRay[2] + fullPerRay[3]) / rays
			assert.InDelta(t, want, losses.ComputeDepthLoss(mixed, kind).Item(), 1e-12)
		})
	}
}

// perRayDepth evaluates the loss one ray at a time and undoes the mean.
func perRayDepth(in losses.DepthInputs[float64, Backend], kind losses.DepthLossKind) []float64 {
	rays := in.Weights.Shape()[0]
	out := make([]float64, rays)
	for r := range rays {
		one := in
		one.Weights = in.Weights.Narrow(0, r, 1)
		one.TerminationDepth = in.TerminationDepth.Narrow(0, r, 1)
		one.PredictedDepth = in.PredictedDepth.Narrow(0, r, 1)
		one.DirectionsNorm = in.DirectionsNorm.Narrow(0, r, 1)
		one.Samples = &losses.RaySamples[float64, Backend]{
			Frustums: losses.Frustums[float64, Backend]{
				Starts: in.Samples.Frustums.Starts.Narrow(0, r, 1),
				Ends:   in.Samples.Frustums.Ends.Narrow(0, r, 1),
			},
		}
		out[r] = losses.ComputeDepthLoss(one, kind).Item()
	}
	return out
}

func TestDepthLoss_Gradients(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	const rays, n = 3, 5
	bins := sortedBins(rng, rays, n)
	weights := uniform(rng, rays*n, 0.05, 1)
	termination := uniform(rng, rays, 0.5, 2)
	predicted := uniform(rng, rays, 0.5, 2)

	for _, kind := range []losses.DepthLossKind{losses.GaussianWeighted, losses.LineOfSight} {
		t.Run(kind.String(), func(t *testing.T) {
			b := newBackend()
			in := depthInputs(b, bins, weights, termination, predicted, rays, n)
			in.Sigma = 0.3
			checkGradient(t, b, func(x *Tensor) *Tensor {
				in := in
				in.Weights = x
				return losses.ComputeDepthLoss(in, kind)
			}, weights, rays, n, 1)
			checkGradient(t, b, func(x *Tensor) *Tensor {
				in := in
				in.PredictedDepth = x
				return losses.ComputeDepthLoss(in, kind)
			}, predicted, rays, 1)
		})
	}
}

func TestComputeDepthLoss_ScalesZDepth(t *testing.T) {
	b := newBackend()
	euclidean := depthInputs(b, []float64{0, 1, 2, 3}, []float64{0.2, 0.5, 0.3}, []float64{1.6}, []float64{1.5}, 1, 3)
	zDepth := euclidean
	zDepth.IsEuclidean = false
	zDepth.TerminationDepth = fromSlice(b, []float64{0.8}, 1, 1)
	zDepth.DirectionsNorm = fromSlice(b, []float64{2}, 1, 1)

	for _, kind := range []losses.DepthLossKind{losses.GaussianWeighted, losses.LineOfSight} {
		assert.InDelta(t,
			losses.ComputeDepthLoss(euclidean, kind).Item(),
			losses.ComputeDepthLoss(zDepth, kind).Item(),
			1e-12, kind.String())
	}
}

func TestNewDepthLoss(t *testing.T) {
	for _, kind := range []losses.DepthLossKind{losses.GaussianWeighted, losses.LineOfSight} {
		l, err := losses.NewDepthLoss[float64, Backend](kind)
		require.NoError(t, err)
		assert.Equal(t, kind, l.Kind())
	}

	_, err := losses.NewDepthLoss[float64, Backend](losses.DepthLossKind(7))
	assert.ErrorIs(t, err, losses.ErrNotImplemented)

	b := newBackend()
	in := depthInputs(b, []float64{0, 1, 2}, []float64{0.3, 0.3}, []float64{1.5}, []float64{1.5}, 1, 2)
	assert.Panics(t, func() {
		losses.ComputeDepthLoss(in, losses.DepthLossKind(0))
	})
}

func TestParseDepthLossKind(t *testing.T) {
	cases := map[string]losses.DepthLossKind{
		"gaussian_weighted": losses.GaussianWeighted,
		"DS_NERF":           losses.GaussianWeighted,
		"line_of_sight":     losses.LineOfSight,
		"urf":               losses.LineOfSight,
	}
	for in, want := range cases {
		got, err := losses.ParseDepthLossKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := losses.ParseDepthLossKind("sparse")
	assert.ErrorIs(t, err, losses.ErrNotImplemented)
	assert.Equal(t, "DepthLossKind(9)", losses.DepthLossKind(9).String())
}
