package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
// Example:
//
//	model := nn.NewSequential[float64, Backend](
//	    nn.NewLinear[float64](8, 32, rng, backend),
//	    nn.NewSoftplus[float64, Backend](),
//	    nn.NewLinear[float64](32, 1, rng, backend),
//	)
type Sequential[T tensor.Float, B tensor.Backend] struct {
	modules []Module[T, B]
}

// NewSequential creates a new Sequential container.
func NewSequential[T tensor.Float, B tensor.Backend](modules ...Module[T, B]) *Sequential[T, B] {
	return &Sequential[T, B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[T, B]) Forward(input *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential[T, B]) Parameters() []*Parameter[T, B] {
	var params []*Parameter[T, B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Len returns the number of modules in the sequence.
func (s *Sequential[T, B]) Len() int {
	return len(s.modules)
}

// stateful is implemented by modules with saveable parameters.
type stateful interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(map[string]*tensor.RawTensor) error
}

// StateDict returns parameters keyed "<index>.<name>", e.g. "0.weight".
func (s *Sequential[T, B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		sm, ok := module.(stateful)
		if !ok {
			continue
		}
		for name, raw := range sm.StateDict() {
			stateDict[fmt.Sprintf("%d.%s", i, name)] = raw
		}
	}
	return stateDict
}

// LoadStateDict loads parameters written by StateDict.
func (s *Sequential[T, B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		sm, ok := module.(stateful)
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("%d.", i)
		sub := make(map[string]*tensor.RawTensor)
		for key, raw := range stateDict {
			if name, found := strings.CutPrefix(key, prefix); found {
				sub[name] = raw
			}
		}
		if err := sm.LoadStateDict(sub); err != nil {
			return fmt.Errorf("failed to load module %d: %w", i, err)
		}
	}
	return nil
}
