package cpu

import "github.com/born-ml/nerfloss/internal/tensor"

// AddScalar adds a scalar to every element.
//
// Example:
//
//	y := backend.AddScalar(x, 1e-7) // guard a divisor
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.unary("add_scalar", x, func(v float64) float64 { return v + s })
}

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.unary("mul_scalar", x, func(v float64) float64 { return v * s })
}
