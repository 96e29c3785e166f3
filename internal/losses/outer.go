package losses

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// Outer resamples the histogram (t1, y1) onto the intervals t0.
//
// For every query interval [t0Starts_i, t0Ends_i) it returns the total mass
// of the target bins from the last one starting at or before the query start
// to the first one ending at or after the query end. Under a piecewise
// constant density this upper-bounds the mass inside the query interval.
//
// Shapes: t0Starts, t0Ends [..., m]; t1Starts, t1Ends, y1 [..., n]. Leading
// dimensions must match. Queries outside the target range are clamped to
// the boundary bins.
func Outer[T tensor.Float, B tensor.Backend](t0Starts, t0Ends, t1Starts, t1Ends, y1 *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	requireSameShape("outer", [2]string{"t0_starts", "t0_ends"}, t0Starts, t0Ends)
	requireSameShape("outer", [2]string{"t1_starts", "y1"}, t1Starts, y1)
	requireSameShape("outer", [2]string{"t1_ends", "y1"}, t1Ends, y1)

	n := y1.Shape().Last()
	if n == 0 {
		panic("outer: target histogram has no bins")
	}
	hi := int32(n - 1) //nolint:gosec // G115: bin count fits in int32.

	zeroShape := y1.Shape().Clone()
	zeroShape[len(zeroShape)-1] = 1
	cy1 := tensor.Cat([]*tensor.Tensor[T, B]{
		tensor.Zeros[T](zeroShape, y1.Backend()),
		y1.CumSum(-1),
	}, -1)

	idxLo := tensor.ClampIndex(tensor.SearchSorted(t1Starts, t0Starts, true), -1, 0, hi)
	idxHi := tensor.ClampIndex(tensor.SearchSorted(t1Ends, t0Ends, false), 0, 0, hi)

	cy1Lo := dropLast(cy1, -1).Gather(-1, idxLo)
	cy1Hi := dropFirst(cy1, -1).Gather(-1, idxHi)
	return cy1Hi.Sub(cy1Lo)
}

// LossOuter penalizes the part of the histogram (t, w) that the envelope
// (tEnv, wEnv) fails to bound:
//
//	max(w - Outer(t, tEnv, wEnv), 0)² / (w + EPS)
//
// t and tEnv are boundaries [..., n+1] and [..., m+1].
func LossOuter[T tensor.Float, B tensor.Backend](t, w, tEnv, wEnv *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	if t.Shape().Last() != w.Shape().Last()+1 {
		panic(fmt.Sprintf("loss_outer: boundaries %v do not match weights %v", t.Shape(), w.Shape()))
	}
	wOuter := Outer(dropLast(t, -1), dropFirst(t, -1), dropLast(tEnv, -1), dropFirst(tEnv, -1), wEnv)
	return w.Sub(wOuter).ClampMin(0).Square().Div(w.AddScalar(EPS))
}

// InterlevelLoss is the proposal loss of mip-NeRF 360.
//
// The last level is the target: its weights and boundaries are detached, and
// every coarser (proposal) level is penalized with the mean of LossOuter for
// failing to bound it. Weights are [..., S, 1] per level. With a single level
// the loss is 0.
func InterlevelLoss[T tensor.Float, B tensor.Backend](weightsList []*tensor.Tensor[T, B], samplesList []*RaySamples[T, B]) *tensor.Tensor[T, B] {
	if len(weightsList) == 0 || len(weightsList) != len(samplesList) {
		panic(fmt.Sprintf("interlevel_loss: got %d weight levels and %d sample levels", len(weightsList), len(samplesList)))
	}
	last := len(weightsList) - 1
	c := RaySamplesToSDist(samplesList[last]).Detach()
	w := weightsList[last].Squeeze(-1).Detach()

	total := zero(w)
	for i := range last {
		sdist := RaySamplesToSDist(samplesList[i])
		wp := weightsList[i].Squeeze(-1)
		level := LossOuter(c, w, sdist, wp).Mean()
		if klog.V(3).Enabled() {
			klog.Infof("interlevel_loss: level %d loss %g", i, float64(level.Item()))
		}
		total = total.Add(level)
	}
	return total
}
