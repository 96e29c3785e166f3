package cpu

import (
	"fmt"
	"sort"

	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Gather selects elements along dim using index tensor.
// Similar to torch.gather(input, dim, index).
//
// The index tensor must have dtype int32 and its shape must match input shape
// except at the gather dimension, where it can differ.
//
// Example:
//
//	input: [3, 4, 5] with values
//	index: [3, 4, 2] (int32 indices)
//	dim: 2
//	output: [3, 4, 2] where output[i,j,k] = input[i,j,index[i,j,k]]
func (cpu *CPUBackend) Gather(x *tensor.RawTensor, dim int, index *tensor.RawTensor) *tensor.RawTensor {
	dim = checkIndex("gather", x.Shape(), dim, index)

	result := cpu.alloc("gather", index.Shape(), x.DType())
	elem := x.DType().Size()
	src, dst := x.Data(), result.Data()
	offsets := indexOffsets("gather", x.Shape(), dim, index)

	parallel.For(len(offsets), func(i int) {
		j := offsets[i]
		copy(dst[i*elem:(i+1)*elem], src[j*elem:(j+1)*elem])
	}, cpu.par)
	return result
}

// ScatterAdd creates a zero tensor of shape and accumulates src into it:
// out[..., index[p], ...] += src[p] along dim. src must have the index shape.
// It is the adjoint of Gather.
func (cpu *CPUBackend) ScatterAdd(shape tensor.Shape, dim int, index, src *tensor.RawTensor) *tensor.RawTensor {
	dim = checkIndex("scatter_add", shape, dim, index)
	if !src.Shape().Equal(index.Shape()) {
		panic(fmt.Sprintf("scatter_add: src shape %v != index shape %v", src.Shape(), index.Shape()))
	}

	result := cpu.alloc("scatter_add", shape, src.DType())
	offsets := indexOffsets("scatter_add", shape, dim, index)

	// Sequential: several positions may hit the same output element.
	switch src.DType() {
	case tensor.Float32:
		scatterAdd(result.AsFloat32(), src.AsFloat32(), offsets)
	case tensor.Float64:
		scatterAdd(result.AsFloat64(), src.AsFloat64(), offsets)
	default:
		panic(fmt.Sprintf("scatter_add: unsupported dtype %s (only float32/float64 supported)", src.DType()))
	}
	return result
}

func scatterAdd[T tensor.Float](dst, src []T, offsets []int) {
	for i, j := range offsets {
		dst[j] += src[i]
	}
}

// Where selects x where cond is true and y elsewhere, broadcasting all three.
func (cpu *CPUBackend) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	if cond.DType() != tensor.Bool {
		panic(fmt.Sprintf("where: condition must be bool, got %s", cond.DType()))
	}
	if x.DType() != y.DType() {
		panic(fmt.Sprintf("where: dtype mismatch %s vs %s", x.DType(), y.DType()))
	}
	xy, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}
	outShape, _, err := tensor.BroadcastShapes(cond.Shape(), xy)
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}

	result := cpu.alloc("where", outShape, x.DType())
	outStrides := outShape.ComputeStrides()
	cStrides := tensor.BroadcastStrides(cond.Shape(), outShape)
	xStrides := tensor.BroadcastStrides(x.Shape(), outShape)
	yStrides := tensor.BroadcastStrides(y.Shape(), outShape)

	c := cond.AsBool()
	elem := x.DType().Size()
	xs, ys, dst := x.Data(), y.Data(), result.Data()
	parallel.For(result.NumElements(), func(i int) {
		var src []byte
		var j int
		if c[computeFlatIndex(i, outStrides, cStrides)] {
			src, j = xs, computeFlatIndex(i, outStrides, xStrides)
		} else {
			src, j = ys, computeFlatIndex(i, outStrides, yStrides)
		}
		copy(dst[i*elem:(i+1)*elem], src[j*elem:(j+1)*elem])
	}, cpu.par)
	return result
}

// SearchSorted finds insertion points of values into the last dimension of
// sorted. sorted must be 1-D (shared by every row) or have the same leading
// dimensions as values.
//
// right=false returns the first i with sorted[i] >= v;
// right=true returns the first i with sorted[i] > v.
func (cpu *CPUBackend) SearchSorted(sorted, values *tensor.RawTensor, right bool) *tensor.RawTensor {
	if sorted.DType() != values.DType() {
		panic(fmt.Sprintf("searchsorted: dtype mismatch %s vs %s", sorted.DType(), values.DType()))
	}
	ss, vs := sorted.Shape(), values.Shape()
	if len(ss) == 0 || len(vs) == 0 {
		panic("searchsorted: scalar inputs are not supported")
	}
	n, m := ss.Last(), vs.Last()
	rows := values.NumElements() / m
	shared := len(ss) == 1
	if !shared {
		if len(ss) != len(vs) || !ss[:len(ss)-1].Equal(vs[:len(vs)-1]) {
			panic(fmt.Sprintf("searchsorted: leading dimensions differ: %v vs %v", ss, vs))
		}
	}

	result := cpu.alloc("searchsorted", vs, tensor.Int32)
	out := result.AsInt32()
	switch sorted.DType() {
	case tensor.Float32:
		searchSorted(out, sorted.AsFloat32(), values.AsFloat32(), rows, n, m, shared, right, cpu.par)
	case tensor.Float64:
		searchSorted(out, sorted.AsFloat64(), values.AsFloat64(), rows, n, m, shared, right, cpu.par)
	default:
		panic(fmt.Sprintf("searchsorted: unsupported dtype %s (only float32/float64 supported)", sorted.DType()))
	}
	return result
}

func searchSorted[T tensor.Float](out []int32, sorted, values []T, rows, n, m int, shared, right bool, cfg parallel.Config) {
	parallel.For(rows, func(r int) {
		row := sorted
		if !shared {
			row = sorted[r*n : (r+1)*n]
		}
		for k := 0; k < m; k++ {
			v := values[r*m+k]
			var i int
			if right {
				i = sort.Search(n, func(j int) bool { return row[j] > v })
			} else {
				i = sort.Search(n, func(j int) bool { return row[j] >= v })
			}
			out[r*m+k] = int32(i) //nolint:gosec // G115: i <= n.
		}
	}, cfg)
}

// checkIndex validates an index tensor against a data shape and returns the
// normalized dimension.
func checkIndex(name string, shape tensor.Shape, dim int, index *tensor.RawTensor) int {
	if index.DType() != tensor.Int32 {
		panic(fmt.Sprintf("%s: index tensor must have dtype int32, got %s", name, index.DType()))
	}
	ndim := len(shape)
	dim = tensor.NormalizeDim(dim, ndim)

	indexShape := index.Shape()
	if len(indexShape) != ndim {
		panic(fmt.Sprintf("%s: index rank %d != input rank %d", name, len(indexShape), ndim))
	}
	for i := 0; i < ndim; i++ {
		if i != dim && indexShape[i] != shape[i] {
			panic(fmt.Sprintf("%s: index shape mismatch at dim %d: %d != %d", name, i, indexShape[i], shape[i]))
		}
	}
	return dim
}

// indexOffsets maps every index position to a flat offset into shape.
func indexOffsets(name string, shape tensor.Shape, dim int, index *tensor.RawTensor) []int {
	idx := index.AsInt32()
	offsets := make([]int, len(idx))
	_, size, inner := shape.SplitAt(dim)
	_, isize, _ := index.Shape().SplitAt(dim)

	for p, v := range idx {
		if v < 0 || int(v) >= size {
			panic(fmt.Sprintf("%s: index %d out of range for dim %d of size %d", name, v, dim, size))
		}
		o := p / (isize * inner)
		i := p % inner
		offsets[p] = (o*size+int(v))*inner + i
	}
	return offsets
}
