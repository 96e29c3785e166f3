// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go backend that every loss runs on.
//
// Large element-wise loops, reductions and scans are split across
// goroutines; NewWithWorkers bounds the number of workers.
package cpu

import (
	internalcpu "github.com/born-ml/nerfloss/internal/backend/cpu"
	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/tensor"
)

// Backend is the CPU backend.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend using every available core.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float64](tensor.Shape{1024, 48, 1}, backend)
func New() *Backend {
	return internalcpu.New()
}

// NewWithWorkers creates a CPU backend that uses at most n goroutines per
// operation. n == 1 runs everything on the calling goroutine.
func NewWithWorkers(n int) *Backend {
	return internalcpu.NewWithConfig(parallel.DefaultConfig().WithWorkers(n))
}
