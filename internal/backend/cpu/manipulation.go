package cpu

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Reshape returns a view with a new shape over the same buffer.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if newShape.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			x.Shape(), x.NumElements(), newShape, newShape.NumElements()))
	}
	return x.View(newShape)
}

// Transpose permutes dimensions. With no axes it reverses them.
//
// Example:
//
//	y := backend.Transpose(x, 2, 0, 1) // [2, 3, 4] -> [4, 2, 3]
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	inStrides := shape.ComputeStrides()
	permStrides := make([]int, ndim)
	for i, ax := range axes {
		ax = tensor.NormalizeDim(ax, ndim)
		if seen[ax] {
			panic(fmt.Sprintf("transpose: axis %d repeated", ax))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
		permStrides[i] = inStrides[ax]
	}

	result := cpu.alloc("transpose", outShape, x.DType())
	copyElements(result, x, outShape.ComputeStrides(), permStrides, cpu.par)
	return result
}

// Expand broadcasts x to shape.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !out.Equal(shape) {
		panic(fmt.Sprintf("expand: cannot expand %v to %v", x.Shape(), shape))
	}
	result := cpu.alloc("expand", shape, x.DType())
	copyElements(result, x, shape.ComputeStrides(), tensor.BroadcastStrides(x.Shape(), shape), cpu.par)
	return result
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	first := tensors[0].Shape()
	dim = tensor.NormalizeDim(dim, len(first))

	outShape := first.Clone()
	outShape[dim] = 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) || t.DType() != tensors[0].DType() {
			panic(fmt.Sprintf("cat: incompatible tensor %v %s", s, t.DType()))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: shape mismatch at dim %d: %v vs %v", d, s, first))
			}
		}
		outShape[dim] += s[dim]
	}

	result := cpu.alloc("cat", outShape, tensors[0].DType())
	elem := result.DType().Size()
	outer, outSize, inner := outShape.SplitAt(dim)
	dst := result.Data()

	offset := 0
	for _, t := range tensors {
		size := t.Shape()[dim]
		src := t.Data()
		block := size * inner * elem
		for o := 0; o < outer; o++ {
			copy(dst[(o*outSize+offset)*inner*elem:], src[o*block:(o+1)*block])
		}
		offset += size
	}
	return result
}

// Narrow returns elements [start, start+length) along dim.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dim %d of size %d",
			start, start+length, dim, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	result := cpu.alloc("narrow", outShape, x.DType())

	elem := x.DType().Size()
	outer, size, inner := shape.SplitAt(dim)
	src, dst := x.Data(), result.Data()
	block := length * inner * elem
	for o := 0; o < outer; o++ {
		from := (o*size + start) * inner * elem
		copy(dst[o*block:(o+1)*block], src[from:from+block])
	}
	return result
}

// copyElements fills dst[i] = src[offset(i)] byte-wise, where offset maps the
// output position through srcStrides. Works for every dtype.
func copyElements(dst, src *tensor.RawTensor, outStrides, srcStrides []int, cfg parallel.Config) {
	elem := src.DType().Size()
	d, s := dst.Data(), src.Data()
	parallel.For(dst.NumElements(), func(i int) {
		j := computeFlatIndex(i, outStrides, srcStrides)
		copy(d[i*elem:(i+1)*elem], s[j*elem:(j+1)*elem])
	}, cfg)
}
