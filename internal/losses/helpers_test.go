package losses_test

import (
	"math"
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/autodiff"
	"github.com/born-ml/nerfloss/internal/backend/cpu"
	"github.com/born-ml/nerfloss/internal/losses"
	"github.com/born-ml/nerfloss/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

type Tensor = tensor.Tensor[float64, Backend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func fromSlice(b Backend, data []float64, shape ...int) *Tensor {
	return tensor.MustFromSlice(slices.Clone(data), tensor.Shape(shape), b)
}

func uniform(rng *rand.Rand, n int, lo, hi float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*rng.Float64()
	}
	return out
}

// sortedBins returns rays×(n+1) strictly increasing boundaries starting at 0.
func sortedBins(rng *rand.Rand, rays, n int) []float64 {
	out := make([]float64, 0, rays*(n+1))
	for range rays {
		row := uniform(rng, n+1, 0, 1)
		row[0] = 0
		sort.Float64s(row)
		for i := 1; i <= n; i++ {
			row[i] = row[i-1] + 0.01 + row[i]
		}
		out = append(out, row...)
	}
	return out
}

// samplesFromBins builds RaySamples for boundaries [R, n+1].
func samplesFromBins(b Backend, bins []float64, rays, n int) *losses.RaySamples[float64, Backend] {
	return losses.NewRaySamples(fromSlice(b, bins, rays, n+1))
}

// analyticGrad differentiates f at data through the tape.
func analyticGrad(t *testing.T, b Backend, f func(x *Tensor) *Tensor, data []float64, shape ...int) []float64 {
	t.Helper()
	b.Tape().Clear()
	b.Tape().StartRecording()
	defer b.Tape().StopRecording()

	x := fromSlice(b, data, shape...)
	out := f(x)
	require.Equal(t, 1, out.NumElements())
	return autodiff.Grad(out, []*Tensor{x}, b, autodiff.GradOptions{})[0].Data()
}

// numericGrad estimates the gradient of f at data with central differences.
func numericGrad(b Backend, f func(x *Tensor) *Tensor, data []float64, shape ...int) []float64 {
	const h = 1e-6
	b.Tape().StopRecording()
	grad := make([]float64, len(data))
	for i := range data {
		plus, minus := slices.Clone(data), slices.Clone(data)
		plus[i] += h
		minus[i] -= h
		grad[i] = (f(fromSlice(b, plus, shape...)).Item() - f(fromSlice(b, minus, shape...)).Item()) / (2 * h)
	}
	return grad
}

// checkGradient compares the tape gradient of f with finite differences.
// Constants captured by f must live on b so every op is recorded.
func checkGradient(t *testing.T, b Backend, f func(x *Tensor) *Tensor, data []float64, shape ...int) {
	t.Helper()
	got := analyticGrad(t, b, f, data, shape...)
	want := numericGrad(b, f, data, shape...)
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-5*(1+abs(want[i])), "gradient element %d", i)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func expNeg(x float64) float64 {
	return math.Exp(-x)
}
