package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, math.Exp)
}

// Log computes the natural logarithm element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, math.Log)
}

// Sqrt computes the square root element-wise.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sqrt", x, math.Sqrt)
}

// Abs computes |x| element-wise.
func (cpu *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("abs", x, math.Abs)
}

// Sign returns -1, 0 or 1 element-wise.
func (cpu *CPUBackend) Sign(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sign", x, func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	})
}

// Sigmoid computes 1 / (1 + e^-x) without overflow for large |x|.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, sigmoid)
}

// Softplus computes log(1 + e^x) as max(x, 0) + log1p(e^-|x|).
func (cpu *CPUBackend) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("softplus", x, func(v float64) float64 {
		return math.Max(v, 0) + math.Log1p(math.Exp(-math.Abs(v)))
	})
}

// Clamp limits every element to [lo, hi].
func (cpu *CPUBackend) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	if lo > hi {
		panic(fmt.Sprintf("clamp: lower bound %v exceeds upper bound %v", lo, hi))
	}
	return cpu.unary("clamp", x, func(v float64) float64 {
		return math.Min(math.Max(v, lo), hi)
	})
}

// Apply runs a custom element-wise function on the CPU.
func (cpu *CPUBackend) Apply(fn tensor.UnaryFunction, x *tensor.RawTensor) *tensor.RawTensor {
	return fn.Forward(x, cpu)
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// unary maps f over a float tensor. float32 inputs are widened for the call.
func (cpu *CPUBackend) unary(name string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := cpu.alloc(name, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		mapInto(result.AsFloat32(), x.AsFloat32(), f, cpu.par)
	case tensor.Float64:
		mapInto(result.AsFloat64(), x.AsFloat64(), f, cpu.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", name, x.DType()))
	}
	return result
}

func mapInto[T tensor.Float](dst, src []T, f func(float64) float64, cfg parallel.Config) {
	parallel.ForChunks(len(src), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			dst[i] = T(f(float64(src[i])))
		}
	}, cfg)
}
