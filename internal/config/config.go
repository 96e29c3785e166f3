// Package config loads and validates the YAML configuration of the loss
// layer and builds the configured loss components.
//
// Example:
//
//	cfg, err := config.Load("losses.yaml")
//	if err != nil {
//	    return err
//	}
//	depth, err := config.DepthLoss[float64, Backend](cfg)
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/nerfloss/internal/autodiff"
	"github.com/born-ml/nerfloss/internal/losses"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// LossConfig is the full loss-layer configuration.
type LossConfig struct {
	Depth       DepthConfig `yaml:"depth"`
	SSI         SSIConfig   `yaml:"ssi"`
	GAN         GANConfig   `yaml:"gan"`
	Multipliers Multipliers `yaml:"multipliers"`
}

// DepthConfig configures depth supervision.
type DepthConfig struct {
	Kind        string  `yaml:"kind"` // gaussian_weighted | line_of_sight
	Sigma       float64 `yaml:"sigma"`
	IsEuclidean bool    `yaml:"is_euclidean"`
}

// SSIConfig configures the scale-and-shift-invariant depth loss.
type SSIConfig struct {
	Alpha        float64 `yaml:"alpha"`
	Scales       int     `yaml:"scales"`
	Reduction    string  `yaml:"reduction"`     // batch | image
	GradientNorm string  `yaml:"gradient_norm"` // l1 | l2
	Aligner      string  `yaml:"aligner"`       // closed_form | least_squares
}

// GANConfig configures the GAN loss and its R1 regularization.
type GANConfig struct {
	R1Gamma float64 `yaml:"r1_gamma"`
	RegStep int     `yaml:"reg_step"`
}

// Multipliers weigh each loss component in the total.
type Multipliers struct {
	Interlevel  float64 `yaml:"interlevel"`
	Distortion  float64 `yaml:"distortion"`
	Orientation float64 `yaml:"orientation"`
	PredNormal  float64 `yaml:"pred_normal"`
	Depth       float64 `yaml:"depth"`
	MonoNormal  float64 `yaml:"mono_normal"`
	MonoDepth   float64 `yaml:"mono_depth"`
}

// Map returns the multipliers keyed by component name.
func (m Multipliers) Map() map[string]float64 {
	return map[string]float64{
		"interlevel":  m.Interlevel,
		"distortion":  m.Distortion,
		"orientation": m.Orientation,
		"pred_normal": m.PredNormal,
		"depth":       m.Depth,
		"mono_normal": m.MonoNormal,
		"mono_depth":  m.MonoDepth,
	}
}

// Default returns the configuration used when no file is given.
func Default() *LossConfig {
	return &LossConfig{
		Depth: DepthConfig{
			Kind:  losses.LineOfSight.String(),
			Sigma: 0.01,
		},
		SSI: SSIConfig{
			Alpha:        0.5,
			Scales:       4,
			Reduction:    "batch",
			GradientNorm: losses.L2Gradient.String(),
			Aligner:      "closed_form",
		},
		GAN: GANConfig{
			R1Gamma: losses.DefaultR1Gamma,
			RegStep: losses.DefaultRegStep,
		},
		Multipliers: Multipliers{
			Interlevel:  1.0,
			Distortion:  0.002,
			Orientation: 0.0001,
			PredNormal:  0.001,
			Depth:       0.001,
			MonoNormal:  0.05,
			MonoDepth:   0.1,
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*LossConfig, error) {
	//nolint:gosec // G304: config path is chosen by the caller.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*LossConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *LossConfig) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks every field and returns an error wrapping
// ErrInvalidConfig that lists all problems found.
func (c *LossConfig) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...)))
	}

	if _, err := losses.ParseDepthLossKind(c.Depth.Kind); err != nil {
		invalid("depth.kind", "%v", err)
	}
	if !(c.Depth.Sigma > 0) || math.IsInf(c.Depth.Sigma, 0) {
		invalid("depth.sigma", "must be positive and finite, got %v", c.Depth.Sigma)
	}

	if c.SSI.Alpha < 0 || math.IsNaN(c.SSI.Alpha) {
		invalid("ssi.alpha", "must be non-negative, got %v", c.SSI.Alpha)
	}
	if c.SSI.Scales < 1 {
		invalid("ssi.scales", "must be at least 1, got %d", c.SSI.Scales)
	}
	if _, err := losses.NewReduction[float64, tensor.Backend](c.SSI.Reduction); err != nil {
		invalid("ssi.reduction", "%v", err)
	}
	if _, err := losses.ParseGradientNorm(c.SSI.GradientNorm); err != nil {
		invalid("ssi.gradient_norm", "%v", err)
	}
	if _, err := losses.NewAligner[float64, tensor.Backend](c.SSI.Aligner); err != nil {
		invalid("ssi.aligner", "%v", err)
	}

	if c.GAN.R1Gamma < 0 || math.IsNaN(c.GAN.R1Gamma) {
		invalid("gan.r1_gamma", "must be non-negative, got %v", c.GAN.R1Gamma)
	}
	if c.GAN.RegStep < 0 {
		invalid("gan.reg_step", "must be non-negative, got %d", c.GAN.RegStep)
	}

	weights := c.Multipliers.Map()
	for _, name := range slices.Sorted(maps.Keys(weights)) {
		if v := weights[name]; v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			invalid("multipliers."+name, "must be non-negative and finite, got %v", v)
		}
	}

	return errors.Join(errs...)
}

// DepthLossKind returns the configured depth loss kind.
func (c *LossConfig) DepthLossKind() (losses.DepthLossKind, error) {
	kind, err := losses.ParseDepthLossKind(c.Depth.Kind)
	if err != nil {
		return 0, fmt.Errorf("%w: depth.kind: %w", ErrInvalidConfig, err)
	}
	return kind, nil
}

// DepthLoss builds the configured depth loss.
func DepthLoss[T tensor.Float, B tensor.Backend](c *LossConfig) (losses.DepthLoss[T, B], error) {
	kind, err := c.DepthLossKind()
	if err != nil {
		return nil, err
	}
	return losses.NewDepthLoss[T, B](kind)
}

// Reduction builds the configured SSI reduction policy.
func Reduction[T tensor.Float, B tensor.Backend](c *LossConfig) (losses.Reduction[T, B], error) {
	r, err := losses.NewReduction[T, B](c.SSI.Reduction)
	if err != nil {
		return nil, fmt.Errorf("%w: ssi.reduction: %w", ErrInvalidConfig, err)
	}
	return r, nil
}

// SSILoss builds the configured scale-and-shift-invariant loss.
func SSILoss[T tensor.Float, B tensor.Backend](c *LossConfig) (*losses.ScaleAndShiftInvariantLoss[T, B], error) {
	reduction, err := Reduction[T, B](c)
	if err != nil {
		return nil, err
	}
	norm, err := losses.ParseGradientNorm(c.SSI.GradientNorm)
	if err != nil {
		return nil, fmt.Errorf("%w: ssi.gradient_norm: %w", ErrInvalidConfig, err)
	}
	aligner, err := losses.NewAligner[T, B](c.SSI.Aligner)
	if err != nil {
		return nil, fmt.Errorf("%w: ssi.aligner: %w", ErrInvalidConfig, err)
	}

	loss := losses.NewScaleAndShiftInvariantLoss[T, B](c.SSI.Alpha, c.SSI.Scales, reduction)
	loss.Norm = norm
	loss.Aligner = aligner
	return loss, nil
}

// GANLoss builds the configured GAN loss.
func GANLoss[T tensor.Float, B autodiff.BackwardCapable](c *LossConfig) *losses.GANLoss[T, B] {
	return &losses.GANLoss[T, B]{R1Gamma: c.GAN.R1Gamma, RegStep: c.GAN.RegStep}
}
