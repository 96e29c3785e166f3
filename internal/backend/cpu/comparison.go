package cpu

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

type cmpKind int

const (
	cmpGreater cmpKind = iota
	cmpGreaterEqual
	cmpLower
	cmpLowerEqual
)

// Greater returns a > b element-wise as a bool tensor.
func (cpu *CPUBackend) Greater(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare("greater", a, b, cmpGreater)
}

// GreaterEqual returns a >= b element-wise as a bool tensor.
func (cpu *CPUBackend) GreaterEqual(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare("greater_equal", a, b, cmpGreaterEqual)
}

// Lower returns a < b element-wise as a bool tensor.
func (cpu *CPUBackend) Lower(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare("lower", a, b, cmpLower)
}

// LowerEqual returns a <= b element-wise as a bool tensor.
func (cpu *CPUBackend) LowerEqual(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare("lower_equal", a, b, cmpLowerEqual)
}

type ordered interface {
	float32 | float64 | int32
}

func cmpFunc[T ordered](k cmpKind) func(x, y T) bool {
	switch k {
	case cmpGreater:
		return func(x, y T) bool { return x > y }
	case cmpGreaterEqual:
		return func(x, y T) bool { return x >= y }
	case cmpLower:
		return func(x, y T) bool { return x < y }
	default:
		return func(x, y T) bool { return x <= y }
	}
}

func (cpu *CPUBackend) compare(name string, a, b *tensor.RawTensor, k cmpKind) *tensor.RawTensor {
	outShape := broadcastOrPanic(name, a, b)
	result := cpu.alloc(name, outShape, tensor.Bool)
	dst := result.AsBool()

	switch a.DType() {
	case tensor.Float32:
		broadcastBinary(dst, a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, cmpFunc[float32](k), cpu.par)
	case tensor.Float64:
		broadcastBinary(dst, a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, cmpFunc[float64](k), cpu.par)
	case tensor.Int32:
		broadcastBinary(dst, a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape, cmpFunc[int32](k), cpu.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return result
}
