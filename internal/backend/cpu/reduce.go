package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Sum reduces all elements to a 0-d tensor.
// float32 inputs accumulate in float64.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := cpu.alloc("sum", tensor.Shape{}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		var acc float64
		for _, v := range x.AsFloat32() {
			acc += float64(v)
		}
		result.AsFloat32()[0] = float32(acc)
	case tensor.Float64:
		result.AsFloat64()[0] = floats.Sum(x.AsFloat64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}
	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
//
// Example:
//
//	y := backend.SumDim(x, -1, true)   // [2, 3, 4] -> [2, 3, 1]
//	z := backend.SumDim(x, -1, false)  // [2, 3, 4] -> [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, len(shape)-1)
		outShape = append(outShape, shape[:dim]...)
		outShape = append(outShape, shape[dim+1:]...)
	}

	result := cpu.alloc("sumdim", outShape, x.DType())
	outer, size, inner := shape.SplitAt(dim)

	switch x.DType() {
	case tensor.Float32:
		sumDim(result.AsFloat32(), x.AsFloat32(), outer, size, inner, cpu.par)
	case tensor.Float64:
		if inner == 1 {
			src, dst := x.AsFloat64(), result.AsFloat64()
			parallel.For(outer, func(o int) {
				dst[o] = floats.Sum(src[o*size : (o+1)*size])
			}, cpu.par)
			break
		}
		sumDim(result.AsFloat64(), x.AsFloat64(), outer, size, inner, cpu.par)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}
	return result
}

func sumDim[T tensor.Float](dst, src []T, outer, size, inner int, cfg parallel.Config) {
	parallel.For(outer*inner, func(k int) {
		o, i := k/inner, k%inner
		base := o*size*inner + i
		var acc float64
		for s := 0; s < size; s++ {
			acc += float64(src[base+s*inner])
		}
		dst[k] = T(acc)
	}, cfg)
}

// CumSum computes the inclusive scan along dim. With reverse set the scan
// runs from the end, so out[i] = Σ_{j >= i} x[j].
func (cpu *CPUBackend) CumSum(x *tensor.RawTensor, dim int, reverse bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	result := cpu.alloc("cumsum", shape, x.DType())
	outer, size, inner := shape.SplitAt(dim)

	switch x.DType() {
	case tensor.Float32:
		cumSum(result.AsFloat32(), x.AsFloat32(), outer, size, inner, reverse, cpu.par)
	case tensor.Float64:
		if inner == 1 && !reverse {
			src, dst := x.AsFloat64(), result.AsFloat64()
			parallel.For(outer, func(o int) {
				floats.CumSum(dst[o*size:(o+1)*size], src[o*size:(o+1)*size])
			}, cpu.par)
			break
		}
		cumSum(result.AsFloat64(), x.AsFloat64(), outer, size, inner, reverse, cpu.par)
	default:
		panic(fmt.Sprintf("cumsum: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}
	return result
}

func cumSum[T tensor.Float](dst, src []T, outer, size, inner int, reverse bool, cfg parallel.Config) {
	parallel.For(outer*inner, func(k int) {
		o, i := k/inner, k%inner
		base := o*size*inner + i
		var acc float64
		if reverse {
			for s := size - 1; s >= 0; s-- {
				acc += float64(src[base+s*inner])
				dst[base+s*inner] = T(acc)
			}
			return
		}
		for s := 0; s < size; s++ {
			acc += float64(src[base+s*inner])
			dst[base+s*inner] = T(acc)
		}
	}, cfg)
}
