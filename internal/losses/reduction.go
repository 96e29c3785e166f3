package losses

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// Reduction turns per-image loss sums and valid-pixel counts [B] into a
// 0-d loss.
type Reduction[T tensor.Float, B tensor.Backend] interface {
	Name() string
	Reduce(losses, counts *tensor.Tensor[T, B]) *tensor.Tensor[T, B]
}

// BatchReduction divides the total loss by the total count, so every valid
// pixel of the batch weighs the same. An empty batch gives 0.
type BatchReduction[T tensor.Float, B tensor.Backend] struct{}

// Name implements Reduction.
func (BatchReduction[T, B]) Name() string { return "batch" }

// Reduce implements Reduction.
func (BatchReduction[T, B]) Reduce(losses, counts *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	divisor := counts.Sum()
	if divisor.Item() == 0 {
		return zero(losses)
	}
	return losses.Sum().Div(divisor)
}

// ImageReduction averages the per-image mean losses over the images that have
// valid pixels, so every such image weighs the same. Images without valid
// pixels are left out; if there are none the result is 0.
type ImageReduction[T tensor.Float, B tensor.Backend] struct{}

// Name implements Reduction.
func (ImageReduction[T, B]) Name() string { return "image" }

// Reduce implements Reduction.
func (ImageReduction[T, B]) Reduce(losses, counts *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	valid := counts.Abs().GreaterScalar(0)
	images := tensor.Where(valid, tensor.OnesLike(counts), tensor.ZerosLike(counts)).Sum()
	if images.Item() == 0 {
		return zero(losses)
	}
	safe := tensor.Where(valid, counts, tensor.OnesLike(counts))
	return tensor.Where(valid, losses.Div(safe), zero(losses)).Sum().Div(images)
}

// NewReduction returns the reduction named "batch" or "image".
func NewReduction[T tensor.Float, B tensor.Backend](name string) (Reduction[T, B], error) {
	switch name {
	case "batch", "":
		return BatchReduction[T, B]{}, nil
	case "image":
		return ImageReduction[T, B]{}, nil
	default:
		return nil, fmt.Errorf("reduction %q: %w", name, ErrNotImplemented)
	}
}

// MaskedReduction reduces losses with the named policy. Panics on an
// unknown policy.
func MaskedReduction[T tensor.Float, B tensor.Backend](losses, counts *tensor.Tensor[T, B], policy string) *tensor.Tensor[T, B] {
	r, err := NewReduction[T, B](policy)
	if err != nil {
		panic(fmt.Sprintf("masked_reduction: %v", err))
	}
	return r.Reduce(losses, counts)
}
