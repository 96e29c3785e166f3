package losses

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/nerfloss/internal/autodiff"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// Default GAN regularization settings.
const (
	DefaultR1Gamma = 0.2
	DefaultRegStep = 16
)

// GANLoss is the non-saturating GAN objective with lazy R1 regularization
// of the discriminator.
//
// The R1 penalty differentiates the discriminator output with respect to its
// input, so B must be a recording backend (autodiff.AutodiffBackend).
type GANLoss[T tensor.Float, B autodiff.BackwardCapable] struct {
	// R1Gamma weighs the gradient penalty; the loss adds R1Gamma/2 · penalty.
	R1Gamma float64
	// RegStep applies the penalty on steps divisible by it. 0 disables R1.
	RegStep int
}

// NewGANLoss returns a GANLoss with the default R1 settings.
func NewGANLoss[T tensor.Float, B autodiff.BackwardCapable]() *GANLoss[T, B] {
	return &GANLoss[T, B]{R1Gamma: DefaultR1Gamma, RegStep: DefaultRegStep}
}

// Generator returns mean(softplus(-fakePred)).
func (g *GANLoss[T, B]) Generator(fakePred *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return fakePred.Neg().Softplus().Mean()
}

// DiscriminatorInputs carries one discriminator step.
type DiscriminatorInputs[T tensor.Float, B autodiff.BackwardCapable] struct {
	FakePred *tensor.Tensor[T, B] // [batch, 1]
	RealPred *tensor.Tensor[T, B] // [batch, 1], computed from RealImg
	// RealImg is the discriminator input behind RealPred. Required on
	// regularization steps.
	RealImg *tensor.Tensor[T, B]
	Step    int
}

// RegularizesAt reports whether the R1 penalty is applied at step.
func (g *GANLoss[T, B]) RegularizesAt(step int) bool {
	return g.RegStep > 0 && step%g.RegStep == 0
}

// Discriminator returns mean(softplus(-real)) + mean(softplus(fake)), plus
// R1Gamma/2 · R1Penalty on regularization steps.
func (g *GANLoss[T, B]) Discriminator(in DiscriminatorInputs[T, B]) *tensor.Tensor[T, B] {
	loss := in.RealPred.Neg().Softplus().Mean().Add(in.FakePred.Softplus().Mean())
	if !g.RegularizesAt(in.Step) {
		return loss
	}
	if in.RealImg == nil {
		panic("gan_loss: RealImg is required on regularization steps")
	}
	penalty := g.R1Penalty(in.RealPred, in.RealImg)
	if klog.V(2).Enabled() {
		klog.Infof("gan_loss: step %d r1 penalty %g", in.Step, float64(penalty.Item()))
	}
	return loss.Add(penalty.MulScalar(g.R1Gamma / 2))
}

// R1Penalty returns mean_b(Σ (∂ Σ realPred / ∂ realImg)²), summing over all
// non-batch dimensions. The input gradient is recorded on the tape, so the
// penalty backpropagates into the discriminator weights. Gradients for
// those weights are not formed while computing the input gradient.
func (g *GANLoss[T, B]) R1Penalty(realPred, realImg *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	grad := autodiff.Grad(realPred, []*tensor.Tensor[T, B]{realImg}, realPred.Backend(), autodiff.GradOptions{
		CreateGraph:       true,
		NoWeightGradients: true,
	})[0]
	batch := realImg.Shape()[0]
	return grad.Square().Reshape(batch, -1).SumDim(1, false).Mean()
}
