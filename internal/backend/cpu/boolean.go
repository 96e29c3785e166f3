package cpu

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// And computes logical AND with broadcasting.
func (cpu *CPUBackend) And(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.logical("and", a, b, func(x, y bool) bool { return x && y })
}

// Or computes logical OR with broadcasting.
func (cpu *CPUBackend) Or(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.logical("or", a, b, func(x, y bool) bool { return x || y })
}

// Not computes logical NOT.
func (cpu *CPUBackend) Not(x *tensor.RawTensor) *tensor.RawTensor {
	requireBool("not", x)
	result := cpu.alloc("not", x.Shape(), tensor.Bool)
	src, dst := x.AsBool(), result.AsBool()
	parallel.For(len(src), func(i int) {
		dst[i] = !src[i]
	}, cpu.par)
	return result
}

func (cpu *CPUBackend) logical(name string, a, b *tensor.RawTensor, f func(x, y bool) bool) *tensor.RawTensor {
	requireBool(name, a)
	requireBool(name, b)
	outShape := broadcastOrPanic(name, a, b)
	result := cpu.alloc(name, outShape, tensor.Bool)
	broadcastBinary(result.AsBool(), a.AsBool(), b.AsBool(), a.Shape(), b.Shape(), outShape, f, cpu.par)
	return result
}

func requireBool(name string, x *tensor.RawTensor) {
	if x.DType() != tensor.Bool {
		panic(fmt.Sprintf("%s: expected bool tensor, got %s", name, x.DType()))
	}
}
