package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/backend/cpu"
	"github.com/born-ml/nerfloss/tensor"
)

func TestPublicAPI(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	y := tensor.Ones[float64](tensor.Shape{2, 2}, backend)
	assert.Equal(t, []float64{2, 3, 4, 5}, x.Add(y).Data())

	_, err = tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{2, 2}, backend)
	assert.Error(t, err)

	grid := tensor.Linspace[float64](0, 1, 5, backend)
	assert.InDeltaSlice(t, []float64{0, 0.25, 0.5, 0.75, 1}, grid.Data(), 1e-15)

	idx := tensor.SearchSorted(grid, tensor.MustFromSlice([]float64{0.3, 1}, tensor.Shape{2}, backend), false)
	assert.Equal(t, []int32{2, 4}, idx.Data())

	mask := x.GreaterScalar(2)
	picked := tensor.Where(mask, x, tensor.Zeros[float64](tensor.Shape{2, 2}, backend))
	assert.Equal(t, []float64{0, 0, 3, 4}, picked.Data())
	assert.Equal(t, []float32{0, 0, 1, 1}, tensor.Cast[float32](mask).Data())

	r := tensor.Rand[float32](tensor.Shape{100}, -1, 1, rand.New(rand.NewSource(1)), backend)
	for _, v := range r.Data() {
		assert.True(t, v >= -1 && v < 1)
	}

	raw, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3}, tensor.New[float64](raw, backend).Shape())
}
