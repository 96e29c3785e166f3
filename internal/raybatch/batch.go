// Package raybatch holds the named tensors a renderer produces for one batch
// of rays, stores them as SafeTensors files and evaluates the configured
// losses on them.
//
// Tensor layout (R rays, S_l samples at level l, N depth images of H×W):
//
//	weights_<l>, starts_<l>, ends_<l>   [R, S_l, 1]   one triple per sampling level
//	termination_depth, predicted_depth  [R, 1]
//	directions_norm                     [R, 1]
//	normals, pred_normals               [R, S_last, 3]
//	normals_gt                          [R, 3]
//	viewdirs                            [R, 3]
//	depth_pred, depth_target            [N, H, W]
//	depth_mask                          [N, H, W] (bool)
//
// Only level 0 is required. Components whose tensors are missing are skipped
// by Evaluate.
package raybatch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/born-ml/nerfloss/internal/serialization"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Names of the per-ray and per-image tensors.
const (
	TerminationDepth = "termination_depth"
	PredictedDepth   = "predicted_depth"
	DirectionsNorm   = "directions_norm"
	Normals          = "normals"
	PredNormals      = "pred_normals"
	NormalsGT        = "normals_gt"
	Viewdirs         = "viewdirs"
	DepthPred        = "depth_pred"
	DepthTarget      = "depth_target"
	DepthMask        = "depth_mask"
)

// kindMetadata marks files written by Save.
const kindMetadata = "ray_batch"

// Errors returned by Batch accessors and Validate.
var (
	ErrMissingTensor = errors.New("missing tensor")
	ErrInvalidBatch  = errors.New("invalid ray batch")
)

// WeightsName returns the name of the weights tensor of level.
func WeightsName(level int) string { return fmt.Sprintf("weights_%d", level) }

// StartsName returns the name of the sample starts tensor of level.
func StartsName(level int) string { return fmt.Sprintf("starts_%d", level) }

// EndsName returns the name of the sample ends tensor of level.
func EndsName(level int) string { return fmt.Sprintf("ends_%d", level) }

// Batch is a set of named tensors describing one batch of rays.
type Batch struct {
	tensors map[string]*tensor.RawTensor
}

// New returns an empty batch.
func New() *Batch {
	return &Batch{tensors: make(map[string]*tensor.RawTensor)}
}

// Set stores raw under name, replacing any previous tensor.
func (b *Batch) Set(name string, raw *tensor.RawTensor) {
	b.tensors[name] = raw
}

// Get returns the tensor called name.
func (b *Batch) Get(name string) (*tensor.RawTensor, error) {
	raw, ok := b.tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTensor, name)
	}
	return raw, nil
}

// Has reports whether every name is present.
func (b *Batch) Has(names ...string) bool {
	return lo.EveryBy(names, func(name string) bool {
		_, ok := b.tensors[name]
		return ok
	})
}

// Names returns the tensor names in alphabetical order.
func (b *Batch) Names() []string {
	names := lo.Keys(b.tensors)
	slices.Sort(names)
	return names
}

// Levels returns the number of consecutive sampling levels starting at 0.
func (b *Batch) Levels() int {
	n := 0
	for b.Has(WeightsName(n), StartsName(n), EndsName(n)) {
		n++
	}
	return n
}

// Rays returns R, the leading dimension of weights_0, or 0 if absent.
func (b *Batch) Rays() int {
	raw, ok := b.tensors[WeightsName(0)]
	if !ok || len(raw.Shape()) == 0 {
		return 0
	}
	return raw.Shape()[0]
}

// Validate checks that the batch has at least one level and that every
// present tensor has the layout described in the package documentation.
func (b *Batch) Validate() error {
	levels := b.Levels()
	if levels == 0 {
		return fmt.Errorf("%w: %w: %s", ErrInvalidBatch, ErrMissingTensor, WeightsName(0))
	}
	rays := b.Rays()

	var errs []error
	expect := func(name string, want tensor.Shape) {
		raw, ok := b.tensors[name]
		if !ok {
			return
		}
		if !raw.Shape().Equal(want) {
			errs = append(errs, fmt.Errorf("%w: %s has shape %v, want %v", ErrInvalidBatch, name, raw.Shape(), want))
		}
		if !raw.DType().IsFloat() && name != DepthMask {
			errs = append(errs, fmt.Errorf("%w: %s has dtype %s, want a float type", ErrInvalidBatch, name, raw.DType()))
		}
	}

	samples := 0
	for l := range levels {
		weights := b.tensors[WeightsName(l)]
		shape := weights.Shape()
		if len(shape) != 3 || shape[0] != rays || shape[2] != 1 {
			errs = append(errs, fmt.Errorf("%w: %s has shape %v, want [%d, S, 1]", ErrInvalidBatch, WeightsName(l), shape, rays))
			continue
		}
		samples = shape[1]
		expect(WeightsName(l), shape)
		expect(StartsName(l), shape)
		expect(EndsName(l), shape)
	}

	for _, name := range []string{TerminationDepth, PredictedDepth, DirectionsNorm} {
		expect(name, tensor.Shape{rays, 1})
	}
	expect(Normals, tensor.Shape{rays, samples, 3})
	expect(PredNormals, tensor.Shape{rays, samples, 3})
	expect(NormalsGT, tensor.Shape{rays, 3})
	expect(Viewdirs, tensor.Shape{rays, 3})

	if raw, ok := b.tensors[DepthPred]; ok {
		if len(raw.Shape()) != 3 {
			errs = append(errs, fmt.Errorf("%w: %s has shape %v, want [N, H, W]", ErrInvalidBatch, DepthPred, raw.Shape()))
		} else {
			expect(DepthPred, raw.Shape())
			expect(DepthTarget, raw.Shape())
			expect(DepthMask, raw.Shape())
		}
	}
	if raw, ok := b.tensors[DepthMask]; ok && raw.DType() != tensor.Bool {
		errs = append(errs, fmt.Errorf("%w: %s has dtype %s, want bool", ErrInvalidBatch, DepthMask, raw.DType()))
	}

	return errors.Join(errs...)
}

// Save writes the batch to path with the given extra metadata.
func Save(path string, b *Batch, metadata map[string]string) error {
	meta := lo.Assign(metadata, map[string]string{"kind": kindMetadata})
	if err := serialization.WriteFile(path, b.tensors, meta); err != nil {
		return fmt.Errorf("failed to save ray batch: %w", err)
	}
	return nil
}

// Load reads a batch written by Save and validates it.
func Load(path string) (*Batch, map[string]string, error) {
	r, err := serialization.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load ray batch: %w", err)
	}
	defer func() { _ = r.Close() }()

	tensors, err := r.LoadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load ray batch: %w", err)
	}
	b := &Batch{tensors: tensors}
	if err := b.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, r.Metadata(), nil
}
