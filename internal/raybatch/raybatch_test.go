package raybatch_test

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/config"
	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/raybatch"
	"github.com/born-ml/nerfloss/internal/serialization"
	"github.com/born-ml/nerfloss/internal/tensor"
)

func smallOptions() raybatch.Options {
	opts := raybatch.DefaultOptions()
	opts.Rays = 16
	opts.Samples = []int{24, 12}
	opts.Height, opts.Width = 8, 8
	return opts
}

func synthesize(t *testing.T, seed int64, opts raybatch.Options) *raybatch.Batch {
	t.Helper()
	b, err := raybatch.Synthesize(rand.New(rand.NewSource(seed)), opts)
	require.NoError(t, err)
	return b
}

func TestSynthesize_Layout(t *testing.T) {
	b := synthesize(t, 1, smallOptions())
	require.NoError(t, b.Validate())

	assert.Equal(t, 16, b.Rays())
	assert.Equal(t, 2, b.Levels())
	assert.Equal(t, []string{
		"depth_mask", "depth_pred", "depth_target", "directions_norm",
		"ends_0", "ends_1", "normals", "normals_gt", "pred_normals",
		"predicted_depth", "starts_0", "starts_1", "termination_depth",
		"viewdirs", "weights_0", "weights_1",
	}, b.Names())

	weights, err := b.Get(raybatch.WeightsName(1))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{16, 12, 1}, weights.Shape())
	for r, w := range chunk(weights.AsFloat64(), 12) {
		sum := 0.0
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.LessOrEqual(t, sum, 1+1e-9, "ray %d", r)
		assert.Greater(t, sum, 0.5, "ray %d is not opaque", r)
	}

	starts, _ := b.Get(raybatch.StartsName(0))
	ends, _ := b.Get(raybatch.EndsName(0))
	for i, s := range starts.AsFloat64() {
		assert.LessOrEqual(t, s, ends.AsFloat64()[i])
	}

	viewdirs, _ := b.Get(raybatch.Viewdirs)
	for _, v := range chunk(viewdirs.AsFloat64(), 3) {
		assert.InDelta(t, 1, math.Sqrt(v[0]*v[0]+v[1]*v[1]+v[2]*v[2]), 1e-12)
	}

	mask, _ := b.Get(raybatch.DepthMask)
	assert.Equal(t, tensor.Bool, mask.DType())
}

func TestSynthesize_Deterministic(t *testing.T) {
	a := synthesize(t, 7, smallOptions())
	b := synthesize(t, 7, smallOptions())
	for _, name := range a.Names() {
		x, _ := a.Get(name)
		y, err := b.Get(name)
		require.NoError(t, err)
		assert.Equal(t, x.Data(), y.Data(), name)
	}
}

func TestSynthesize_InvalidOptions(t *testing.T) {
	for name, mutate := range map[string]func(*raybatch.Options){
		"no rays":          func(o *raybatch.Options) { o.Rays = 0 },
		"no levels":        func(o *raybatch.Options) { o.Samples = nil },
		"empty level":      func(o *raybatch.Options) { o.Samples = []int{8, 0} },
		"far before near":  func(o *raybatch.Options) { o.Near, o.Far = 2, 1 },
		"tiny images":      func(o *raybatch.Options) { o.Height = 1 },
		"invalid fraction": func(o *raybatch.Options) { o.InvalidFraction = 1 },
	} {
		t.Run(name, func(t *testing.T) {
			opts := smallOptions()
			mutate(&opts)
			_, err := raybatch.Synthesize(rand.New(rand.NewSource(1)), opts)
			assert.ErrorIs(t, err, raybatch.ErrInvalidBatch)
		})
	}
}

func TestBatch_GetAndValidate(t *testing.T) {
	b := raybatch.New()
	_, err := b.Get("weights_0")
	assert.ErrorIs(t, err, raybatch.ErrMissingTensor)
	assert.ErrorIs(t, b.Validate(), raybatch.ErrInvalidBatch)

	good := synthesize(t, 3, smallOptions())
	for _, name := range good.Names() {
		raw, _ := good.Get(name)
		b.Set(name, raw)
	}
	require.NoError(t, b.Validate())

	b.Set(raybatch.PredictedDepth, tensor.MustNewRaw(tensor.Shape{16, 2}, tensor.Float64, tensor.CPU))
	b.Set(raybatch.DepthMask, tensor.MustNewRaw(tensor.Shape{2, 8, 8}, tensor.Float32, tensor.CPU))
	err = b.Validate()
	require.ErrorIs(t, err, raybatch.ErrInvalidBatch)
	assert.Contains(t, err.Error(), raybatch.PredictedDepth)
	assert.Contains(t, err.Error(), "want bool")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.safetensors")
	b := synthesize(t, 5, smallOptions())
	require.NoError(t, raybatch.Save(path, b, map[string]string{"seed": "5"}))

	loaded, meta, err := raybatch.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "5", meta["seed"])
	assert.Equal(t, "ray_batch", meta["kind"])
	assert.Contains(t, meta, serialization.ChecksumKey)
	assert.Equal(t, b.Names(), loaded.Names())

	cfg := config.Default()
	want, err := raybatch.Evaluate(b, cfg)
	require.NoError(t, err)
	got, err := raybatch.Evaluate(loaded, cfg)
	require.NoError(t, err)
	assert.Equal(t, want.Components, got.Components)
}

func TestLoad_RejectsInvalidBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	require.NoError(t, serialization.WriteFile(path, map[string]*tensor.RawTensor{
		"viewdirs": tensor.MustNewRaw(tensor.Shape{4, 3}, tensor.Float64, tensor.CPU),
	}, nil))

	_, _, err := raybatch.Load(path)
	assert.ErrorIs(t, err, raybatch.ErrInvalidBatch)
}

func TestEvaluate_AllComponents(t *testing.T) {
	opts := smallOptions()
	opts.DepthNoise = 0
	b := synthesize(t, 11, opts)
	cfg := config.Default()

	report, err := raybatch.Evaluate(b, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"depth", "distortion", "interlevel", "mono_depth",
		"mono_normal", "orientation", "pred_normal",
	}, report.Names())
	for name, v := range report.Components {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.InDelta(t, v*cfg.Multipliers.Map()[name], report.Weighted[name], 1e-15, name)
	}

	total := 0.0
	for _, v := range report.Weighted {
		total += v
	}
	assert.InDelta(t, total, report.Total, 1e-12)

	assert.Equal(t, 16, report.Rays)
	assert.Equal(t, 2, report.Levels)
	assert.Equal(t, 2, report.Images)
	assert.Len(t, report.Scale, 2)
	assert.Len(t, report.Shift, 2)

	// Noise-free targets are an affine map of the prediction.
	assert.Less(t, report.Components[raybatch.MonoDepth], 1e-10)

	// Normals point against the view direction.
	assert.Less(t, report.Components[raybatch.Orientation], 0.05)

	assert.Positive(t, report.DepthError.Count)
	assert.LessOrEqual(t, report.DepthError.Count, 16)
	assert.GreaterOrEqual(t, report.DepthError.RMSE+1e-12, report.DepthError.Mean)
}

func TestEvaluate_SkipsMissingComponents(t *testing.T) {
	opts := smallOptions()
	opts.Samples = []int{12}
	opts.Images = 0
	full := synthesize(t, 2, opts)

	b := raybatch.New()
	for _, name := range []string{"weights_0", "starts_0", "ends_0"} {
		raw, err := full.Get(name)
		require.NoError(t, err)
		b.Set(name, raw)
	}

	report, err := raybatch.Evaluate(b, config.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"distortion"}, report.Names())
	assert.Zero(t, report.Images)
	assert.Nil(t, report.Scale)
}

func TestEvaluateAll(t *testing.T) {
	batches := []*raybatch.Batch{
		synthesize(t, 1, smallOptions()),
		raybatch.New(),
		synthesize(t, 2, smallOptions()),
	}

	reports, err := raybatch.EvaluateAll(batches, config.Default(), parallel.DefaultConfig().WithWorkers(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, raybatch.ErrInvalidBatch)
	assert.Contains(t, err.Error(), "batch 1")
	require.Len(t, reports, 3)
	assert.NotNil(t, reports[0])
	assert.Nil(t, reports[1])
	assert.NotNil(t, reports[2])

	sequential, err := raybatch.Evaluate(batches[2], config.Default())
	require.NoError(t, err)
	assert.Equal(t, sequential.Components, reports[2].Components)

	summary := raybatch.Summarize(reports)
	assert.Len(t, summary, 7)
	assert.InDelta(t, (reports[0].Components["depth"]+reports[2].Components["depth"])/2, summary["depth"], 1e-15)
}

func TestFitProposal_ReducesInterlevelLoss(t *testing.T) {
	b := synthesize(t, 13, smallOptions())

	var logged []int
	res, err := raybatch.FitProposal(b, raybatch.FitOptions{
		Steps: 60,
		LR:    0.1,
		Log:   func(step int, _ float64) { logged = append(logged, step) },
	})
	require.NoError(t, err)

	assert.Len(t, res.History, 60)
	assert.Len(t, logged, 60)
	assert.Equal(t, res.History[0], res.Initial)
	assert.Less(t, res.Final, 0.5*res.Initial)
	assert.Equal(t, tensor.Shape{16, 24, 1}, res.Logits.Shape())
	assert.Equal(t, tensor.Shape{16, 24, 1}, res.Weights.Shape())

	// The fitted weights evaluate to the reported loss.
	fitted := raybatch.New()
	for _, name := range b.Names() {
		raw, _ := b.Get(name)
		fitted.Set(name, raw)
	}
	fitted.Set(raybatch.WeightsName(0), res.Weights)
	report, err := raybatch.Evaluate(fitted, config.Default())
	require.NoError(t, err)
	assert.InDelta(t, res.Final, report.Components[raybatch.Interlevel], 1e-12)
}

func TestFitProposal_Errors(t *testing.T) {
	opts := smallOptions()
	opts.Samples = []int{8}
	_, err := raybatch.FitProposal(synthesize(t, 1, opts), raybatch.FitOptions{Steps: 1})
	assert.ErrorIs(t, err, raybatch.ErrInvalidBatch)

	_, err = raybatch.FitProposal(synthesize(t, 1, smallOptions()), raybatch.FitOptions{Steps: -1})
	assert.Error(t, err)

	res, err := raybatch.FitProposal(synthesize(t, 1, smallOptions()), raybatch.FitOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.History)
	assert.Equal(t, res.Initial, res.Final)
}

func chunk(data []float64, size int) [][]float64 {
	out := make([][]float64, 0, len(data)/size)
	for i := 0; i+size <= len(data); i += size {
		out = append(out, data[i:i+size])
	}
	return out
}
