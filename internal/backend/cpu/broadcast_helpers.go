package cpu

import (
	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/tensor"
)

// broadcastBinary applies f to every output position, reading x and y
// through broadcast strides. Same-shape inputs take a direct path.
func broadcastBinary[T, U tensor.DType](
	dst []U, x, y []T,
	xShape, yShape, outShape tensor.Shape,
	f func(a, b T) U,
	cfg parallel.Config,
) {
	if xShape.Equal(yShape) {
		parallel.For(len(dst), func(i int) {
			dst[i] = f(x[i], y[i])
		}, cfg)
		return
	}

	outStrides := outShape.ComputeStrides()
	xStrides := tensor.BroadcastStrides(xShape, outShape)
	yStrides := tensor.BroadcastStrides(yShape, outShape)

	parallel.For(len(dst), func(i int) {
		dst[i] = f(x[computeFlatIndex(i, outStrides, xStrides)], y[computeFlatIndex(i, outStrides, yStrides)])
	}, cfg)
}

// broadcastCopy writes src, broadcast to outShape, into dst.
func broadcastCopy[T tensor.DType](dst, src []T, srcShape, outShape tensor.Shape, cfg parallel.Config) {
	outStrides := outShape.ComputeStrides()
	srcStrides := tensor.BroadcastStrides(srcShape, outShape)
	parallel.For(len(dst), func(i int) {
		dst[i] = src[computeFlatIndex(i, outStrides, srcStrides)]
	}, cfg)
}

// computeFlatIndex computes the flat index in the source array for a given output index.
// outStrides: strides of the output shape.
// inStrides: broadcast-adjusted strides of the input shape.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}
