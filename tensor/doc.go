// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of nerfloss.
//
// Every loss works on Tensor[T, B]: T is float32 or float64 and B is the
// backend that executes the operations. Use backend/cpu for evaluation and
// wrap it with autodiff to train through the losses.
//
// Example:
//
//	backend := cpu.New()
//	bins := tensor.Linspace[float64](2, 6, 65, backend).Reshape(1, 65)
//	samples := losses.NewRaySamples(bins)
package tensor
