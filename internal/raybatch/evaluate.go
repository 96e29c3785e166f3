package raybatch

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"

	"github.com/born-ml/nerfloss/internal/backend/cpu"
	"github.com/born-ml/nerfloss/internal/config"
	"github.com/born-ml/nerfloss/internal/losses"
	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Component names, matching the keys of config.Multipliers.Map.
const (
	Interlevel  = "interlevel"
	Distortion  = "distortion"
	Orientation = "orientation"
	PredNormal  = "pred_normal"
	Depth       = "depth"
	MonoNormal  = "mono_normal"
	MonoDepth   = "mono_depth"
)

type (
	cpuTensor  = tensor.Tensor[float64, *cpu.CPUBackend]
	cpuSamples = losses.RaySamples[float64, *cpu.CPUBackend]
)

// ErrorStats summarizes |predicted - ground truth| depth over the rays that
// have ground truth.
type ErrorStats struct {
	Count  int
	Mean   float64
	StdDev float64
	RMSE   float64
}

// Report holds the loss components evaluated on one batch.
type Report struct {
	Components map[string]float64 // unweighted
	Weighted   map[string]float64 // multiplied by config.Multipliers
	Total      float64

	Rays, Levels, Images int

	DepthError ErrorStats
	Scale      []float64 // per-image SSI alignment
	Shift      []float64
}

// Names returns the evaluated component names in alphabetical order.
func (r *Report) Names() []string {
	names := lo.Keys(r.Components)
	slices.Sort(names)
	return names
}

// Evaluate computes every loss component whose inputs are present in b.
func Evaluate(b *Batch, cfg *config.LossConfig) (*Report, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	kind, err := cfg.DepthLossKind()
	if err != nil {
		return nil, err
	}
	ssi, err := config.SSILoss[float64, *cpu.CPUBackend](cfg)
	if err != nil {
		return nil, err
	}

	backend := cpu.New()
	ev := &evaluator{batch: b, backend: backend}
	report := &Report{
		Components: make(map[string]float64),
		Rays:       b.Rays(),
		Levels:     b.Levels(),
	}

	weightsList, samplesList := ev.levels()
	last := len(weightsList) - 1
	weights, samples := weightsList[last], samplesList[last]

	if len(weightsList) > 1 {
		report.Components[Interlevel] = losses.InterlevelLoss(weightsList, samplesList).Item()
	}
	report.Components[Distortion] = losses.DistortionLoss(weightsList, samplesList).Item()

	if b.Has(Normals, Viewdirs) {
		loss := losses.OrientationLoss(weights, ev.get(Normals), ev.get(Viewdirs))
		report.Components[Orientation] = loss.Mean().Item()
	}
	if b.Has(Normals, PredNormals) {
		loss := losses.PredNormalLoss(weights, ev.get(Normals), ev.get(PredNormals))
		report.Components[PredNormal] = loss.Mean().Item()
	}
	if b.Has(Normals, NormalsGT) {
		rendered := weights.Mul(ev.get(Normals)).SumDim(-2, false)
		report.Components[MonoNormal] = losses.MonoSDFNormalLoss(rendered, ev.get(NormalsGT)).Item()
	}

	if b.Has(TerminationDepth, PredictedDepth, DirectionsNorm) {
		in := losses.DepthInputs[float64, *cpu.CPUBackend]{
			Weights:          weights,
			Samples:          samples,
			TerminationDepth: ev.get(TerminationDepth),
			PredictedDepth:   ev.get(PredictedDepth),
			DirectionsNorm:   ev.get(DirectionsNorm),
			Sigma:            cfg.Depth.Sigma,
			IsEuclidean:      cfg.Depth.IsEuclidean,
		}
		report.Components[Depth] = losses.ComputeDepthLoss(in, kind).Item()
		report.DepthError = depthError(in)
	}

	if b.Has(DepthPred, DepthTarget, DepthMask) {
		res := ssi.Forward(ev.get(DepthPred), ev.get(DepthTarget), ev.get(DepthMask))
		report.Components[MonoDepth] = res.Loss.Item()
		report.Scale = slices.Clone(res.Scale.Data())
		report.Shift = slices.Clone(res.Shift.Data())
		report.Images = res.Scale.Shape()[0]
	}

	multipliers := cfg.Multipliers.Map()
	report.Weighted = lo.MapValues(report.Components, func(v float64, name string) float64 {
		return v * multipliers[name]
	})
	report.Total = lo.SumBy(report.Names(), func(name string) float64 { return report.Weighted[name] })

	for _, name := range report.Names() {
		if v := report.Components[name]; math.IsNaN(v) || math.IsInf(v, 0) {
			return report, fmt.Errorf("%w: %s loss is %v", ErrInvalidBatch, name, v)
		}
	}
	klog.V(1).Infof("evaluated %d rays, %d levels: total %g", report.Rays, report.Levels, report.Total)
	return report, nil
}

// EvaluateAll evaluates batches concurrently. Reports are returned in input
// order; a failed batch leaves a nil report and contributes to the joined
// error.
func EvaluateAll(batches []*Batch, cfg *config.LossConfig, pcfg parallel.Config) ([]*Report, error) {
	reports := make([]*Report, len(batches))
	errs := make([]error, len(batches))
	parallel.For(len(batches), func(i int) {
		report, err := Evaluate(batches[i], cfg)
		if err != nil {
			errs[i] = fmt.Errorf("batch %d: %w", i, err)
			return
		}
		reports[i] = report
	}, pcfg)
	return reports, errors.Join(errs...)
}

// Summarize averages every component over the non-nil reports that have it.
func Summarize(reports []*Report) map[string]float64 {
	reports = lo.Compact(reports)
	names := lo.Uniq(lo.FlatMap(reports, func(r *Report, _ int) []string { return r.Names() }))
	return lo.SliceToMap(names, func(name string) (string, float64) {
		values := lo.FilterMap(reports, func(r *Report, _ int) (float64, bool) {
			v, ok := r.Components[name]
			return v, ok
		})
		return name, stat.Mean(values, nil)
	})
}

type evaluator struct {
	batch   *Batch
	backend *cpu.CPUBackend
}

// get returns the named tensor as float64. Bool masks become 0/1.
func (e *evaluator) get(name string) *cpuTensor {
	raw, err := e.batch.Get(name)
	if err != nil {
		panic(err) // callers check Has first
	}
	return floatTensor(raw, e.backend)
}

func (e *evaluator) levels() ([]*cpuTensor, []*cpuSamples) {
	return loadLevels(e.batch, e.backend)
}

// loadLevels returns the weights and samples of every level of b.
func loadLevels[B tensor.Backend](b *Batch, backend B) ([]*tensor.Tensor[float64, B], []*losses.RaySamples[float64, B]) {
	n := b.Levels()
	weightsList := make([]*tensor.Tensor[float64, B], n)
	samplesList := make([]*losses.RaySamples[float64, B], n)
	for l := range n {
		weightsList[l] = floatTensor(b.tensors[WeightsName(l)], backend)
		starts := floatTensor(b.tensors[StartsName(l)], backend)
		ends := floatTensor(b.tensors[EndsName(l)], backend)
		samplesList[l] = &losses.RaySamples[float64, B]{
			Frustums:      losses.Frustums[float64, B]{Starts: starts, Ends: ends},
			SpacingStarts: starts,
			SpacingEnds:   ends,
		}
	}
	return weightsList, samplesList
}

func floatTensor[B tensor.Backend](raw *tensor.RawTensor, backend B) *tensor.Tensor[float64, B] {
	return tensor.MustFromSlice(raw.Float64s(), raw.Shape().Clone(), backend)
}

func depthError(in losses.DepthInputs[float64, *cpu.CPUBackend]) ErrorStats {
	termination := in.TerminationDepth.Data()
	predicted := in.PredictedDepth.Data()
	dirNorm := in.DirectionsNorm.Data()

	var errs []float64
	for i, d := range termination {
		if d <= 0 {
			continue
		}
		if !in.IsEuclidean {
			d *= dirNorm[i]
		}
		errs = append(errs, math.Abs(predicted[i]-d))
	}
	if len(errs) == 0 {
		return ErrorStats{}
	}

	mean, std := stat.MeanStdDev(errs, nil)
	if len(errs) == 1 {
		std = 0
	}
	squares := lo.Map(errs, func(e float64, _ int) float64 { return e * e })
	return ErrorStats{
		Count:  len(errs),
		Mean:   mean,
		StdDev: std,
		RMSE:   math.Sqrt(stat.Mean(squares, nil)),
	}
}
