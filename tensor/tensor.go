// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// DType is a constraint for tensor element types: float32, float64, int32, bool.
type DType = tensor.DType

// Float is the subset of DType that can carry gradients.
type Float = tensor.Float

// DataType represents the runtime data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Bool    DataType = tensor.Bool
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the only device losses run on.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor.
// Example: Shape{1024, 48, 1} holds one weight per sample for 1024 rays.
type Shape = tensor.Shape

// RawTensor is the untyped tensor representation: a byte buffer with shape,
// strides and data type. Gradients are keyed by *RawTensor.
type RawTensor = tensor.RawTensor

// Tensor is the generic, type-safe tensor used by every loss.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// Backend executes tensor operations.
//
// Implementations:
//   - backend/cpu: pure Go
//   - autodiff: records operations of any backend for backpropagation
type Backend = tensor.Backend

// UnaryFunction is an element-wise function with a custom derivative, applied
// with Tensor.Apply.
type UnaryFunction = tensor.UnaryFunction

// NewRaw allocates a zeroed RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// New wraps raw, whose data type must match T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T](raw, b)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// MustFromSlice is FromSlice that panics on a shape mismatch.
func MustFromSlice[T DType, B Backend](data []T, shape Shape, b B) *Tensor[T, B] {
	return tensor.MustFromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Linspace returns n evenly spaced values from start to end inclusive.
func Linspace[T Float, B Backend](start, end float64, n int, b B) *Tensor[T, B] {
	return tensor.Linspace[T](start, end, n, b)
}

// Rand fills a tensor with values uniform in [lo, hi).
func Rand[T Float, B Backend](shape Shape, lo, hi float64, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Rand[T](shape, lo, hi, rng, b)
}

// Randn fills a tensor with standard normal values.
func Randn[T Float, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, rng, b)
}

// Cast converts t to element type U.
func Cast[U, T DType, B Backend](t *Tensor[T, B]) *Tensor[U, B] {
	return tensor.Cast[U](t)
}

// Where selects x where cond is true and y elsewhere, with broadcasting.
func Where[T DType, B Backend](cond *Tensor[bool, B], x, y *Tensor[T, B]) *Tensor[T, B] {
	return tensor.Where(cond, x, y)
}

// Cat concatenates tensors along dim.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Cat(tensors, dim)
}

// SearchSorted returns, for every value, its insertion index into the
// matching row of sorted.
func SearchSorted[T DType, B Backend](sorted, values *Tensor[T, B], right bool) *Tensor[int32, B] {
	return tensor.SearchSorted(sorted, values, right)
}
