package raybatch

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nerfloss/internal/backend/cpu"
	"github.com/born-ml/nerfloss/internal/losses"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Options controls Synthesize.
type Options struct {
	Rays    int
	Samples []int // samples per level, proposal levels first

	Near, Far float64

	// Images, Height and Width size the monocular depth maps. Images == 0
	// leaves them out.
	Images, Height, Width int

	// InvalidFraction of rays get no ground-truth depth and of pixels are
	// masked out.
	InvalidFraction float64

	NormalNoise float64
	DepthNoise  float64
}

// DefaultOptions returns a small batch with two proposal levels.
func DefaultOptions() Options {
	return Options{
		Rays:            256,
		Samples:         []int{64, 32, 16},
		Near:            0.5,
		Far:             4,
		Images:          2,
		Height:          32,
		Width:           32,
		InvalidFraction: 0.1,
		NormalNoise:     0.05,
		DepthNoise:      0.01,
	}
}

// Validate checks the option values.
func (o Options) Validate() error {
	var errs []error
	if o.Rays < 1 {
		errs = append(errs, fmt.Errorf("rays must be positive, got %d", o.Rays))
	}
	if len(o.Samples) == 0 {
		errs = append(errs, errors.New("at least one sampling level is required"))
	}
	for l, s := range o.Samples {
		if s < 1 {
			errs = append(errs, fmt.Errorf("level %d: samples must be positive, got %d", l, s))
		}
	}
	if !(o.Near >= 0 && o.Far > o.Near) {
		errs = append(errs, fmt.Errorf("need 0 <= near < far, got near=%v far=%v", o.Near, o.Far))
	}
	if o.Images < 0 || (o.Images > 0 && (o.Height < 2 || o.Width < 2)) {
		errs = append(errs, fmt.Errorf("depth maps need images >= 0 and height, width >= 2, got %dx%dx%d", o.Images, o.Height, o.Width))
	}
	if o.InvalidFraction < 0 || o.InvalidFraction >= 1 {
		errs = append(errs, fmt.Errorf("invalid fraction must be in [0, 1), got %v", o.InvalidFraction))
	}
	return errors.Join(errs...)
}

// Synthesize renders a batch of rays through a scene of one opaque surface
// per ray. Every level sees the same surface; proposal levels get broader
// density bumps so their weights bound the finer ones.
func Synthesize(rng *rand.Rand, opts Options) (*Batch, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}

	b := New()
	backend := cpu.New()
	rays := opts.Rays
	levels := len(opts.Samples)
	span := opts.Far - opts.Near

	surface := make([]float64, rays)
	for r := range surface {
		surface[r] = opts.Near + span*(0.2+0.6*rng.Float64())
	}

	var lastWeights, lastMids []float64
	for l, samples := range opts.Samples {
		starts, ends := sampleBins(rng, rays, samples, opts.Near, opts.Far)
		width := 0.05 * span * float64(levels-l)
		densities := make([]float64, rays*samples)
		mids := make([]float64, rays*samples)
		for r := range rays {
			for s := range samples {
				i := r*samples + s
				mids[i] = 0.5 * (starts[i] + ends[i])
				d := (mids[i] - surface[r]) / width
				densities[i] = 50 / width * math.Exp(-0.5*d*d)
			}
		}

		shape := tensor.Shape{rays, samples, 1}
		startsT := tensor.MustFromSlice(starts, shape, backend)
		endsT := tensor.MustFromSlice(ends, shape, backend)
		rs := &losses.RaySamples[float64, *cpu.CPUBackend]{
			Frustums:      losses.Frustums[float64, *cpu.CPUBackend]{Starts: startsT, Ends: endsT},
			SpacingStarts: startsT,
			SpacingEnds:   endsT,
		}
		weights := rs.GetWeights(tensor.MustFromSlice(densities, shape, backend))

		b.Set(WeightsName(l), weights.Raw())
		b.Set(StartsName(l), startsT.Raw())
		b.Set(EndsName(l), endsT.Raw())
		lastWeights, lastMids = weights.Data(), mids
	}

	samples := opts.Samples[levels-1]
	predicted := make([]float64, rays)
	for r := range rays {
		predicted[r] = floats.Dot(lastWeights[r*samples:(r+1)*samples], lastMids[r*samples:(r+1)*samples])
	}

	dirNorm := make([]float64, rays)
	termination := make([]float64, rays)
	for r := range rays {
		dirNorm[r] = 1 + 0.2*rng.Float64()
		if rng.Float64() >= opts.InvalidFraction {
			termination[r] = surface[r] / dirNorm[r]
		}
	}
	b.Set(PredictedDepth, rawFloat64(predicted, rays, 1))
	b.Set(DirectionsNorm, rawFloat64(dirNorm, rays, 1))
	b.Set(TerminationDepth, rawFloat64(termination, rays, 1))

	synthesizeNormals(rng, b, rays, samples, opts.NormalNoise)
	if opts.Images > 0 {
		synthesizeDepthMaps(rng, b, opts)
	}
	return b, nil
}

// sampleBins draws sorted interval boundaries in [near, far] for every ray
// and returns the [rays*samples] starts and ends.
func sampleBins(rng *rand.Rand, rays, samples int, near, far float64) (starts, ends []float64) {
	starts = make([]float64, 0, rays*samples)
	ends = make([]float64, 0, rays*samples)
	bins := make([]float64, samples+1)
	for range rays {
		bins[0], bins[samples] = near, far
		for i := 1; i < samples; i++ {
			bins[i] = near + (far-near)*rng.Float64()
		}
		slices.Sort(bins)
		starts = append(starts, bins[:samples]...)
		ends = append(ends, bins[1:]...)
	}
	return starts, ends
}

func synthesizeNormals(rng *rand.Rand, b *Batch, rays, samples int, noise float64) {
	viewdirs := make([]float64, 0, rays*3)
	normals := make([]float64, 0, rays*samples*3)
	predNormals := make([]float64, 0, rays*samples*3)
	normalsGT := make([]float64, 0, rays*3)

	for range rays {
		v := unitVector(rng, nil, 0)
		surface := unitVector(rng, floats.ScaleTo(make([]float64, 3), -1, v), 0.3)
		viewdirs = append(viewdirs, v...)
		normalsGT = append(normalsGT, unitVector(rng, surface, noise)...)
		for range samples {
			n := unitVector(rng, surface, noise)
			normals = append(normals, n...)
			predNormals = append(predNormals, unitVector(rng, n, noise)...)
		}
	}

	b.Set(Viewdirs, rawFloat64(viewdirs, rays, 3))
	b.Set(NormalsGT, rawFloat64(normalsGT, rays, 3))
	b.Set(Normals, rawFloat64(normals, rays, samples, 3))
	b.Set(PredNormals, rawFloat64(predNormals, rays, samples, 3))
}

// unitVector returns normalize(base + noise·N(0, I)). A nil base draws a
// uniformly random direction.
func unitVector(rng *rand.Rand, base []float64, noise float64) []float64 {
	v := make([]float64, 3)
	for i := range v {
		if base == nil {
			v[i] = rng.NormFloat64()
			continue
		}
		v[i] = base[i] + noise*rng.NormFloat64()
	}
	norm := floats.Norm(v, 2)
	if norm == 0 {
		v[2], norm = 1, 1
	}
	floats.Scale(1/norm, v)
	return v
}

// synthesizeDepthMaps writes a smooth relative depth prediction per image and
// a target that is an affine map of it plus noise.
func synthesizeDepthMaps(rng *rand.Rand, b *Batch, opts Options) {
	n, h, w := opts.Images, opts.Height, opts.Width
	pred := make([]float64, n*h*w)
	target := make([]float64, n*h*w)
	mask := make([]bool, n*h*w)

	for img := range n {
		scale := 0.5 + 1.5*rng.Float64()
		shift := rng.Float64() - 0.5
		fx, fy := 1+3*rng.Float64(), 1+3*rng.Float64()
		for y := range h {
			for x := range w {
				i := (img*h+y)*w + x
				u, v := float64(x)/float64(w-1), float64(y)/float64(h-1)
				pred[i] = 1 + 0.5*math.Sin(fx*u)*math.Cos(fy*v) + 0.25*u
				target[i] = scale*pred[i] + shift + opts.DepthNoise*rng.NormFloat64()
				mask[i] = rng.Float64() >= opts.InvalidFraction
			}
		}
	}

	b.Set(DepthPred, rawFloat64(pred, n, h, w))
	b.Set(DepthTarget, rawFloat64(target, n, h, w))
	maskRaw := tensor.MustNewRaw(tensor.Shape{n, h, w}, tensor.Bool, tensor.CPU)
	copy(maskRaw.AsBool(), mask)
	b.Set(DepthMask, maskRaw)
}

func rawFloat64(data []float64, shape ...int) *tensor.RawTensor {
	raw := tensor.MustNewRaw(tensor.Shape(shape), tensor.Float64, tensor.CPU)
	copy(raw.AsFloat64(), data)
	return raw
}
