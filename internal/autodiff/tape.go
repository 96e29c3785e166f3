package autodiff

import (
	"github.com/born-ml/nerfloss/internal/autodiff/ops"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Operations are appended in execution order, so walking the tape backwards
// visits every operation after all operations that consume its output.
//
// The tape is not safe for concurrent recording.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients := tape.Backward(output, outputGrad, backend)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool            // Whether tape is currently recording
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
		recording:  false,
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients of output for every tensor it depends on by
// walking the tape in reverse.
//
// Algorithm:
//  1. Start with the output gradient (typically ones)
//  2. Walk operations in reverse order
//  3. For each operation, compute input gradients using chain rule
//  4. Accumulate gradients when the same tensor is used multiple times
//
// Returns a map from RawTensor to its accumulated gradient.
func (t *GradientTape) Backward(output, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	return t.walk(output, outputGrad, backend, nil, false)
}

// walk runs the reverse pass over the operations recorded so far.
//
// When reach is non-nil only tensors in reach receive gradients; operations
// whose output is outside reach are skipped. With selective set, operations
// implementing ops.SelectiveOperation compute only the gradients in reach.
//
// If backend records onto this tape, the operations appended during the walk
// are not visited: the walk covers a snapshot taken on entry.
func (t *GradientTape) walk(
	output, outputGrad *tensor.RawTensor,
	backend tensor.Backend,
	reach map[*tensor.RawTensor]bool,
	selective bool,
) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := map[*tensor.RawTensor]*tensor.RawTensor{output: outputGrad}
	snapshot := t.operations[:len(t.operations):len(t.operations)]

	for i := len(snapshot) - 1; i >= 0; i-- {
		op := snapshot[i]
		opGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}

		inputs := op.Inputs()
		var inputGrads []*tensor.RawTensor
		if reach == nil {
			inputGrads = op.Backward(opGrad, backend)
		} else {
			need, anyNeeded := neededInputs(inputs, reach)
			if !anyNeeded {
				continue
			}
			if sel, isSel := op.(ops.SelectiveOperation); isSel && selective {
				inputGrads = sel.BackwardSelected(opGrad, backend, need)
			} else {
				inputGrads = op.Backward(opGrad, backend)
			}
			for j := range inputGrads {
				if j < len(need) && !need[j] {
					inputGrads[j] = nil
				}
			}
		}
		accumulateGrads(inputs, inputGrads, grads, backend)
	}

	return grads
}

// reachable returns every recorded tensor that depends on one of sources,
// including the sources themselves.
func (t *GradientTape) reachable(sources []*tensor.RawTensor) map[*tensor.RawTensor]bool {
	reach := make(map[*tensor.RawTensor]bool, len(sources))
	for _, s := range sources {
		reach[s] = true
	}
	for _, op := range t.operations {
		for _, in := range op.Inputs() {
			if reach[in] {
				reach[op.Output()] = true
				break
			}
		}
	}
	return reach
}

func neededInputs(inputs []*tensor.RawTensor, reach map[*tensor.RawTensor]bool) ([]bool, bool) {
	need := make([]bool, len(inputs))
	anyNeeded := false
	for j, in := range inputs {
		need[j] = reach[in]
		anyNeeded = anyNeeded || need[j]
	}
	return need, anyNeeded
}

// accumulateGrads accumulates gradients for each input tensor.
func accumulateGrads(
	inputs, inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for j, input := range inputs {
		if j >= len(inputGrads) {
			break
		}
		inputGrad := inputGrads[j]
		if inputGrad == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrad)
		} else {
			grads[input] = inputGrad
		}
	}
}
