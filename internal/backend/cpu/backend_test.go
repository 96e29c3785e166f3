package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

func f64(t *testing.T, data []float64, shape ...int) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat64(), data)
	return raw
}

func i32(t *testing.T, data []int32, shape ...int) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsInt32(), data)
	return raw
}

func TestCPUBackend_Name(t *testing.T) {
	backend := New()
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestArith_Broadcasting(t *testing.T) {
	backend := New()
	a := f64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	col := f64(t, []float64{10, 20}, 2, 1)
	row := f64(t, []float64{1, 2, 4}, 3)

	sum := backend.Add(a, col)
	assert.Equal(t, tensor.Shape{2, 3}, sum.Shape())
	assert.Equal(t, []float64{11, 12, 13, 24, 25, 26}, sum.AsFloat64())

	assert.Equal(t, []float64{0, 0, -1, 3, 3, 2}, backend.Sub(a, row).AsFloat64())
	assert.Equal(t, []float64{1, 4, 12, 4, 10, 24}, backend.Mul(a, row).AsFloat64())
	assert.Equal(t, []float64{1, 1, 0.75, 4, 2.5, 1.5}, backend.Div(a, row).AsFloat64())

	assert.Panics(t, func() { backend.Add(a, f64(t, []float64{1, 2}, 2)) })
}

func TestArith_DTypeMismatch(t *testing.T) {
	backend := New()
	a := f64(t, []float64{1}, 1)
	b, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	assert.Panics(t, func() { backend.Add(a, b) })
}

func TestScalarOps(t *testing.T) {
	backend := New()
	x := f64(t, []float64{-1, 0, 2}, 3)
	assert.Equal(t, []float64{1.5, 2.5, 4.5}, backend.AddScalar(x, 2.5).AsFloat64())
	assert.Equal(t, []float64{3, 0, -6}, backend.MulScalar(x, -3).AsFloat64())
}

func TestUnaryMath(t *testing.T) {
	backend := New()
	x := f64(t, []float64{-2, 0, 3}, 3)

	assert.Equal(t, []float64{2, 0, 3}, backend.Abs(x).AsFloat64())
	assert.Equal(t, []float64{-1, 0, 1}, backend.Sign(x).AsFloat64())
	assert.Equal(t, []float64{-1, 0, 1}, backend.Clamp(x, -1, 1).AsFloat64())
	assert.Panics(t, func() { backend.Clamp(x, 1, -1) })

	exp := backend.Exp(x).AsFloat64()
	assert.InDelta(t, math.Exp(-2), exp[0], 1e-15)
	assert.InDelta(t, 1.0, exp[1], 1e-15)

	sig := backend.Sigmoid(f64(t, []float64{-800, 0, 800}, 3)).AsFloat64()
	assert.InDelta(t, 0.0, sig[0], 1e-300)
	assert.InDelta(t, 0.5, sig[1], 1e-15)
	assert.InDelta(t, 1.0, sig[2], 1e-15)

	sp := backend.Softplus(f64(t, []float64{-800, 0, 800}, 3)).AsFloat64()
	assert.InDelta(t, 0.0, sp[0], 1e-15)
	assert.InDelta(t, math.Ln2, sp[1], 1e-15)
	assert.InDelta(t, 800.0, sp[2], 1e-12)
	assert.False(t, math.IsInf(sp[2], 0))
}

func TestUnaryMath_Float32(t *testing.T) {
	backend := New()
	x, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(x.AsFloat32(), []float32{4, 9})

	assert.Equal(t, []float32{2, 3}, backend.Sqrt(x).AsFloat32())
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := f64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := f64(t, []float64{7, 8, 9, 10, 11, 12}, 3, 2)

	c := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, c.AsFloat64())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestSumDim(t *testing.T) {
	backend := New()
	x := f64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	assert.Equal(t, []float64{21}, backend.Sum(x).AsFloat64())
	assert.Empty(t, backend.Sum(x).Shape())

	rows := backend.SumDim(x, 1, true)
	assert.Equal(t, tensor.Shape{2, 1}, rows.Shape())
	assert.Equal(t, []float64{6, 15}, rows.AsFloat64())

	cols := backend.SumDim(x, 0, false)
	assert.Equal(t, tensor.Shape{3}, cols.Shape())
	assert.Equal(t, []float64{5, 7, 9}, cols.AsFloat64())

	last := backend.SumDim(x, -1, false)
	assert.Equal(t, []float64{6, 15}, last.AsFloat64())
}

func TestCumSum(t *testing.T) {
	backend := New()
	x := f64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	assert.Equal(t, []float64{1, 3, 6, 4, 9, 15}, backend.CumSum(x, 1, false).AsFloat64())
	assert.Equal(t, []float64{6, 5, 3, 15, 11, 6}, backend.CumSum(x, 1, true).AsFloat64())
	assert.Equal(t, []float64{1, 2, 3, 5, 7, 9}, backend.CumSum(x, 0, false).AsFloat64())
}

func TestManipulation(t *testing.T) {
	backend := New()
	x := f64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	tr := backend.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, tr.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tr.AsFloat64())

	r := backend.Reshape(x, tensor.Shape{3, 2})
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, r.AsFloat64())

	e := backend.Expand(f64(t, []float64{1, 2}, 2, 1), tensor.Shape{2, 3})
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2}, e.AsFloat64())

	n := backend.Narrow(x, 1, 1, 2)
	assert.Equal(t, tensor.Shape{2, 2}, n.Shape())
	assert.Equal(t, []float64{2, 3, 5, 6}, n.AsFloat64())
	assert.Panics(t, func() { backend.Narrow(x, 1, 2, 2) })
	assert.Panics(t, func() { backend.Narrow(x, 1, 0, 0) })

	c := backend.Cat([]*tensor.RawTensor{x, f64(t, []float64{7, 8}, 2, 1)}, 1)
	assert.Equal(t, tensor.Shape{2, 4}, c.Shape())
	assert.Equal(t, []float64{1, 2, 3, 7, 4, 5, 6, 8}, c.AsFloat64())
}

func TestGatherScatterAdd(t *testing.T) {
	backend := New()
	x := f64(t, []float64{10, 20, 30, 40, 50, 60}, 2, 3)
	idx := i32(t, []int32{2, 0, 1, 1}, 2, 2)

	g := backend.Gather(x, 1, idx)
	assert.Equal(t, tensor.Shape{2, 2}, g.Shape())
	assert.Equal(t, []float64{30, 10, 50, 50}, g.AsFloat64())

	s := backend.ScatterAdd(tensor.Shape{2, 3}, 1, idx, f64(t, []float64{1, 2, 3, 4}, 2, 2))
	assert.Equal(t, []float64{2, 0, 1, 0, 7, 0}, s.AsFloat64())

	assert.Panics(t, func() { backend.Gather(x, 1, i32(t, []int32{3}, 1, 1)) })
	assert.Panics(t, func() { backend.Gather(x, 1, i32(t, []int32{0, 0, 0}, 3, 1)) })
}

func TestWhere(t *testing.T) {
	backend := New()
	a := f64(t, []float64{1, 5, 3}, 3)
	b := f64(t, []float64{4, 2, 3}, 3)

	cond := backend.Greater(a, b)
	assert.Equal(t, []bool{false, true, false}, cond.AsBool())

	w := backend.Where(cond, a, f64(t, []float64{0}, 1))
	assert.Equal(t, []float64{0, 5, 0}, w.AsFloat64())

	assert.Panics(t, func() { backend.Where(a, a, b) })
}

func TestComparisonAndBoolean(t *testing.T) {
	backend := New()
	a := f64(t, []float64{1, 2, 3}, 3)
	b := f64(t, []float64{2, 2, 2}, 3)

	ge := backend.GreaterEqual(a, b)
	le := backend.LowerEqual(a, b)
	assert.Equal(t, []bool{false, true, true}, ge.AsBool())
	assert.Equal(t, []bool{true, false, false}, backend.Lower(a, b).AsBool())
	assert.Equal(t, []bool{false, true, false}, backend.And(ge, le).AsBool())
	assert.Equal(t, []bool{true, true, true}, backend.Or(ge, le).AsBool())
	assert.Equal(t, []bool{true, false, false}, backend.Not(ge).AsBool())

	assert.Panics(t, func() { backend.And(a, b) })
}

func TestCast(t *testing.T) {
	backend := New()
	mask := backend.Greater(f64(t, []float64{1, -1}, 2), f64(t, []float64{0}, 1))

	f := backend.Cast(mask, tensor.Float64)
	assert.Equal(t, []float64{1, 0}, f.AsFloat64())

	i := backend.Cast(f64(t, []float64{2.7, -1.5}, 2), tensor.Int32)
	assert.Equal(t, []int32{2, -1}, i.AsInt32())
}

func TestSearchSorted(t *testing.T) {
	backend := New()
	sorted := f64(t, []float64{0, 1, 2, 3}, 4)
	values := f64(t, []float64{-1, 0, 1.5, 3, 4}, 5)

	left := backend.SearchSorted(sorted, values, false)
	assert.Equal(t, []int32{0, 0, 2, 3, 4}, left.AsInt32())

	right := backend.SearchSorted(sorted, values, true)
	assert.Equal(t, []int32{0, 1, 2, 4, 4}, right.AsInt32())

	// Per-row sorted sequences.
	rows := f64(t, []float64{0, 1, 2, 10, 20, 30}, 2, 3)
	vals := f64(t, []float64{1.5, 15}, 2, 1)
	assert.Equal(t, []int32{2, 1}, backend.SearchSorted(rows, vals, false).AsInt32())

	assert.Panics(t, func() {
		backend.SearchSorted(rows, f64(t, []float64{1, 2, 3}, 3, 1), false)
	})
}

func TestParallelMatchesSequential(t *testing.T) {
	n := 5000
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i%97) - 48
	}

	par := NewWithConfig(parallel.DefaultConfig().WithWorkers(8))
	seq := NewWithConfig(parallel.Sequential())
	x := f64(t, data, 50, 100)

	assert.Equal(t, seq.Softplus(x).AsFloat64(), par.Softplus(x).AsFloat64())
	assert.Equal(t, seq.SumDim(x, 0, false).AsFloat64(), par.SumDim(x, 0, false).AsFloat64())
	assert.Equal(t, seq.CumSum(x, 1, false).AsFloat64(), par.CumSum(x, 1, false).AsFloat64())
	assert.Equal(t, seq.MatMul(x, seq.Transpose(x)).AsFloat64(), par.MatMul(x, par.Transpose(x)).AsFloat64())
}
