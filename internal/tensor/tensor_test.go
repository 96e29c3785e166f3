package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/backend/cpu"
	"github.com/born-ml/nerfloss/internal/tensor"
)

func TestShape(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 4, s.Last())
	assert.True(t, s.Equal(tensor.Shape{2, 3, 4}))
	assert.False(t, s.Equal(tensor.Shape{2, 3}))
	assert.Equal(t, 1, tensor.Shape{}.NumElements())

	outer, size, inner := s.SplitAt(1)
	assert.Equal(t, []int{2, 3, 4}, []int{outer, size, inner})

	assert.Error(t, tensor.Shape{2, -1}.Validate())
	assert.Equal(t, 2, tensor.NormalizeDim(-1, 3))
	assert.Panics(t, func() { tensor.NormalizeDim(3, 3) })
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name    string
		a, b    tensor.Shape
		want    tensor.Shape
		wantErr bool
	}{
		{"same", tensor.Shape{2, 3}, tensor.Shape{2, 3}, tensor.Shape{2, 3}, false},
		{"column", tensor.Shape{2, 1}, tensor.Shape{2, 3}, tensor.Shape{2, 3}, false},
		{"rank", tensor.Shape{3}, tensor.Shape{4, 2, 3}, tensor.Shape{4, 2, 3}, false},
		{"scalar", tensor.Shape{}, tensor.Shape{5}, tensor.Shape{5}, false},
		{"mismatch", tensor.Shape{2, 3}, tensor.Shape{3, 2}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := tensor.BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestDataType(t *testing.T) {
	assert.Equal(t, tensor.Float32, tensor.DataTypeOf[float32]())
	assert.Equal(t, tensor.Float64, tensor.DataTypeOf[float64]())
	assert.Equal(t, tensor.Int32, tensor.DataTypeOf[int32]())
	assert.Equal(t, tensor.Bool, tensor.DataTypeOf[bool]())
	assert.Equal(t, 8, tensor.Float64.Size())
	assert.True(t, tensor.Float32.IsFloat())
	assert.False(t, tensor.Int32.IsFloat())
	assert.Equal(t, "float64", tensor.Float64.String())
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	z := tensor.Zeros[float64](tensor.Shape{2, 3}, backend)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, z.Data())

	o := tensor.Ones[float32](tensor.Shape{2}, backend)
	assert.Equal(t, []float32{1, 1}, o.Data())

	b := tensor.Ones[bool](tensor.Shape{2}, backend)
	assert.Equal(t, []bool{true, true}, b.Data())

	s := tensor.Scalar[float64](3.5, backend)
	assert.Equal(t, 0, s.Dims())
	assert.Equal(t, 3.5, s.Item())

	l := tensor.Linspace[float64](0, 1, 5, backend)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, l.Data())

	a := tensor.Arange(4, backend)
	assert.Equal(t, []int32{0, 1, 2, 3}, a.Data())

	r := tensor.Rand[float64](tensor.Shape{100}, 2, 3, rand.New(rand.NewSource(1)), backend)
	for _, v := range r.Data() {
		assert.True(t, v >= 2 && v < 3)
	}

	_, err := tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{2, 2}, backend)
	assert.Error(t, err)
	assert.Panics(t, func() { tensor.MustFromSlice([]float64{1}, tensor.Shape{2}, backend) })
}

func TestTensor_AccessorsAndClone(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)

	assert.Equal(t, 6.0, x.At(1, 2))
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.Item() })

	c := x.Clone()
	c.Set(42, 0, 0)
	assert.Equal(t, 1.0, x.At(0, 0))

	d := x.Detach()
	assert.NotSame(t, x.Raw(), d.Raw())
	assert.Equal(t, x.Data(), d.Data())
	assert.Equal(t, "Tensor[float64][2 3] on CPU", x.String())
}

func TestTensor_Reductions(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float64{3, 4, 0, 0, 6, 8}, tensor.Shape{3, 2}, backend)

	assert.Equal(t, 21.0, x.Sum().Item())
	assert.InDelta(t, 3.5, x.Mean().Item(), 1e-12)
	assert.InDeltaSlice(t, []float64{3, 4}, x.MeanDim(0, false).Data(), 1e-12)
	assert.Equal(t, []float64{5, 0, 10}, x.Norm(-1, false).Data())
	assert.Equal(t, tensor.Shape{3, 1}, x.Norm(1, true).Shape())
	assert.Equal(t, []float64{3, 7, 0, 0, 6, 14}, x.CumSum(1).Data())
	assert.Equal(t, []float64{7, 4, 0, 0, 14, 8}, x.CumSumReverse(1).Data())
}

func TestTensor_Shapes(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)

	assert.Equal(t, tensor.Shape{3, 2}, x.Reshape(-1, 2).Shape())
	assert.Panics(t, func() { x.Reshape(-1, 4) })
	assert.Equal(t, tensor.Shape{3, 2}, x.T().Shape())
	assert.Equal(t, tensor.Shape{2, 1, 3}, x.Unsqueeze(1).Shape())
	assert.Equal(t, tensor.Shape{2, 3}, x.Unsqueeze(-1).Squeeze(-1).Shape())
	assert.Panics(t, func() { x.Squeeze(0) })

	last := x.Narrow(1, -1, 1)
	assert.Equal(t, []float64{3, 6}, last.Data())

	sub := tensor.MustFromSlice([]float64{0, 1, 2, 3, 4}, tensor.Shape{1, 5}, backend).Subsample(1, 2)
	assert.Equal(t, []float64{0, 2, 4}, sub.Data())

	cat := tensor.Cat([]*tensor.Tensor[float64, *cpu.CPUBackend]{x, x}, 0)
	assert.Equal(t, tensor.Shape{4, 3}, cat.Shape())
}

func TestTensor_MaskingAndCast(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float64{-1, 0.5, 2}, tensor.Shape{3}, backend)

	pos := x.GreaterScalar(0)
	small := x.LowerScalar(1)
	assert.Equal(t, []bool{false, true, true}, pos.Data())

	both := pos.And(small)
	assert.Equal(t, []bool{false, true, false}, both.Data())

	mask := tensor.Cast[float64](pos)
	assert.Equal(t, []float64{0, 1, 1}, mask.Data())
	assert.Same(t, mask, tensor.Cast[float64](mask))

	zero := tensor.Scalar[float64](0, backend)
	assert.Equal(t, []float64{0, 0.5, 2}, tensor.Where(pos, x, zero).Data())
}

func TestSearchSortedAndClampIndex(t *testing.T) {
	backend := cpu.New()
	sorted := tensor.MustFromSlice([]float64{0, 1, 2}, tensor.Shape{3}, backend)
	values := tensor.MustFromSlice([]float64{-0.5, 1, 2.5}, tensor.Shape{3}, backend)

	idx := tensor.SearchSorted(sorted, values, true)
	assert.Equal(t, []int32{0, 2, 3}, idx.Data())

	clamped := tensor.ClampIndex(idx, -1, 0, 1)
	assert.Equal(t, []int32{0, 1, 1}, clamped.Data())
}

func TestGatherAndScatterAdd(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	idx := tensor.MustFromSlice([]int32{1, 1, 0, 0}, tensor.Shape{2, 2}, backend)

	assert.Equal(t, []float64{2, 2, 3, 3}, x.Gather(1, idx).Data())

	s := tensor.ScatterAdd(tensor.Shape{2, 2}, 1, idx, x)
	assert.Equal(t, []float64{0, 3, 7, 0}, s.Data())
}

func TestRawTensor(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, 16, raw.ByteSize())
	copy(raw.AsFloat32(), []float32{1, 2, 3, 4})

	assert.Equal(t, []float64{1, 2, 3, 4}, raw.Float64s())
	assert.Panics(t, func() { raw.AsFloat64() })

	view := raw.View(tensor.Shape{4})
	view.AsFloat32()[0] = 9
	assert.Equal(t, float32(9), raw.AsFloat32()[0])

	clone := raw.Clone()
	clone.AsFloat32()[0] = 1
	assert.Equal(t, float32(9), raw.AsFloat32()[0])

	assert.Equal(t, []float32{9, 2, 3, 4}, tensor.Slice[float32](raw))

	_, err = tensor.NewRaw(tensor.Shape{-1}, tensor.Float32, tensor.CPU)
	assert.Error(t, err)
}
