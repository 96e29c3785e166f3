package raybatch

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/nerfloss/internal/autodiff"
	"github.com/born-ml/nerfloss/internal/backend/cpu"
	"github.com/born-ml/nerfloss/internal/losses"
	"github.com/born-ml/nerfloss/internal/nn"
	"github.com/born-ml/nerfloss/internal/optim"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// FitBackend is the recording backend FitProposal trains on.
type FitBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// FitOptions controls FitProposal.
type FitOptions struct {
	Steps int
	LR    float64 // Adam learning rate, default 0.05

	// Log, if set, is called with the loss before every update.
	Log func(step int, loss float64)
}

// FitResult is the outcome of FitProposal.
type FitResult struct {
	Initial float64
	Final   float64
	History []float64 // loss before each update

	Logits  *tensor.RawTensor // [R, S_0, 1] trained density logits
	Weights *tensor.RawTensor // [R, S_0, 1] proposal weights they render to
}

// FitProposal trains free density logits on the sample intervals of level 0
// so that their weights bound the weights of the last level, minimizing the
// interlevel loss with Adam. Densities are TruncExp(logits).
func FitProposal(b *Batch, opts FitOptions) (*FitResult, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	levels := b.Levels()
	if levels < 2 {
		return nil, fmt.Errorf("%w: fitting a proposal needs at least 2 levels, got %d", ErrInvalidBatch, levels)
	}
	if opts.Steps < 0 {
		return nil, fmt.Errorf("steps must be non-negative, got %d", opts.Steps)
	}
	if opts.LR == 0 {
		opts.LR = 0.05
	}

	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	weightsList, samplesList := loadLevels(b, backend)
	proposal := samplesList[0]
	target, targetSamples := weightsList[levels-1], samplesList[levels-1]

	logits := nn.NewParameter("proposal_logits", tensor.Zeros[float64](weightsList[0].Shape(), backend))
	adam := optim.NewAdam([]*nn.Parameter[float64, FitBackend]{logits}, optim.AdamConfig{LR: opts.LR})

	render := func() *tensor.Tensor[float64, FitBackend] {
		return proposal.GetWeights(nn.TruncExp(logits.Tensor()))
	}
	lossOf := func(weights *tensor.Tensor[float64, FitBackend]) *tensor.Tensor[float64, FitBackend] {
		return losses.InterlevelLoss(
			[]*tensor.Tensor[float64, FitBackend]{weights, target},
			[]*losses.RaySamples[float64, FitBackend]{proposal, targetSamples},
		)
	}

	result := &FitResult{History: make([]float64, 0, opts.Steps)}
	for step := range opts.Steps {
		tape.Clear()
		tape.StartRecording()
		loss := lossOf(render())
		grads := autodiff.Backward(loss, backend)
		tape.StopRecording()

		value := loss.Item()
		result.History = append(result.History, value)
		if opts.Log != nil {
			opts.Log(step, value)
		}
		klog.V(2).Infof("fit step %d: interlevel loss %g", step, value)
		adam.Step(grads)
	}
	tape.Clear()

	weights := render()
	result.Final = lossOf(weights).Item()
	result.Initial = result.Final
	if len(result.History) > 0 {
		result.Initial = result.History[0]
	}
	result.Logits = logits.Tensor().Raw().Clone()
	result.Weights = weights.Raw()
	return result, nil
}
