package cpu

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// MatMul performs 2-D matrix multiplication: (M, K) @ (K, N) → (M, N).
// Rows of the result are computed in parallel.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", as, bs))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", as, bs))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}

	m, k, n := as[0], as[1], bs[1]
	result := cpu.alloc("matmul", tensor.Shape{m, n}, a.DType())

	switch a.DType() {
	case tensor.Float32:
		matmul(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, cpu.par)
	case tensor.Float64:
		matmul(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n, cpu.par)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s (only float32/float64 supported)", a.DType()))
	}
	return result
}

// matmul uses the i-k-j loop order so the inner loop walks both b and c
// contiguously.
func matmul[T tensor.Float](c, a, b []T, m, k, n int, cfg parallel.Config) {
	parallel.For(m, func(i int) {
		row := c[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			aik := a[i*k+p]
			if aik == 0 {
				continue
			}
			bRow := b[p*n : (p+1)*n]
			for j := range row {
				row[j] += aik * bRow[j]
			}
		}
	}, cfg)
}
