package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, DataTypeOf[T](), b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}

	// Data is already zero-initialized by make()
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones (true for bool).
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, one[T](), b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Scalar creates a 0-d tensor holding value.
func Scalar[T DType, B Backend](value T, b B) *Tensor[T, B] {
	return Full[T, B](Shape{}, value, b)
}

// ZerosLike creates a zero tensor with the shape of t.
func ZerosLike[T DType, B Backend](t *Tensor[T, B]) *Tensor[T, B] {
	return Zeros[T, B](t.Shape(), t.Backend())
}

// OnesLike creates a tensor of ones with the shape of t.
func OnesLike[T DType, B Backend](t *Tensor[T, B]) *Tensor[T, B] {
	return Ones[T, B](t.Shape(), t.Backend())
}

// Linspace creates a 1D tensor of n evenly spaced values from start to end inclusive.
//
// Example:
//
//	t := tensor.Linspace[float64](0, 1, 5, backend) // [0, 0.25, 0.5, 0.75, 1]
func Linspace[T Float, B Backend](start, end float64, n int, b B) *Tensor[T, B] {
	if n < 1 {
		panic(fmt.Sprintf("linspace: n must be positive, got %d", n))
	}
	t := Zeros[T, B](Shape{n}, b)
	data := t.Data()
	if n == 1 {
		data[0] = T(start)
		return t
	}
	step := (end - start) / float64(n-1)
	for i := range data {
		data[i] = T(start + float64(i)*step)
	}
	data[n-1] = T(end)
	return t
}

// Arange creates a 1D Int32 tensor with values [0, n).
func Arange[B Backend](n int, b B) *Tensor[int32, B] {
	t := Zeros[int32, B](Shape{n}, b)
	data := t.Data()
	for i := range data {
		data[i] = int32(i) //nolint:gosec // G115: i < n fits in int32 for any realistic tensor.
	}
	return t
}

// Randn creates a tensor with values drawn from a standard normal distribution.
// The generator is explicit so that callers control reproducibility.
//
// Example:
//
//	rng := rand.New(rand.NewSource(42))
//	t := tensor.Randn[float32](Shape{100, 100}, rng, backend)
func Randn[T Float, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(rng.NormFloat64())
	}
	return t
}

// Rand creates a tensor with values uniformly distributed in [lo, hi).
func Rand[T Float, B Backend](shape Shape, lo, hi float64, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(lo + (hi-lo)*rng.Float64())
	}
	return t
}

func one[T DType]() T {
	var v T
	switch p := any(&v).(type) {
	case *float32:
		*p = 1
	case *float64:
		*p = 1
	case *int32:
		*p = 1
	case *bool:
		*p = true
	}
	return v
}
