package cpu

import (
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Cast converts x to dtype. Bool maps to 0/1; conversion to bool tests != 0;
// float to int32 truncates toward zero.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}

	result := cpu.alloc("cast", x.Shape(), dtype)
	values := x.Float64s()

	switch dtype {
	case tensor.Float32:
		castInto(result.AsFloat32(), values, func(v float64) float32 { return float32(v) })
	case tensor.Float64:
		copy(result.AsFloat64(), values)
	case tensor.Int32:
		castInto(result.AsInt32(), values, func(v float64) int32 { return int32(v) })
	case tensor.Bool:
		castInto(result.AsBool(), values, func(v float64) bool { return v != 0 })
	}
	return result
}

func castInto[T tensor.DType](dst []T, src []float64, f func(float64) T) {
	for i, v := range src {
		dst[i] = f(v)
	}
}
