package losses

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// normalizeEps matches the lower bound on the norm used when normalizing
// normal vectors.
const normalizeEps = 1e-12

// OrientationLoss is the Ref-NeRF orientation loss: visible normals that face
// away from the camera are penalized by their weight.
//
// weights [..., S, 1], normals [..., S, 3] and viewdirs [..., 3] give the
// per-ray loss [...]:
//
//	Σ_s w · min(0, n · -v)²
func OrientationLoss[T tensor.Float, B tensor.Backend](weights, normals, viewdirs *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	checkNormalShapes("orientation_loss", weights, normals)
	v := viewdirs.Neg().Unsqueeze(-2)         // [..., 1, 3]
	nDotV := normals.Mul(v).SumDim(-1, false) // [..., S]
	backFacing := nDotV.ClampMax(0).Square()
	return weights.Squeeze(-1).Mul(backFacing).SumDim(-1, false)
}

// PredNormalLoss ties the normals derived from the density field to the
// normals predicted by the network. Returns the per-ray loss [...]:
//
//	Σ_s w · (1 - n · n̂)
func PredNormalLoss[T tensor.Float, B tensor.Backend](weights, normals, predNormals *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	checkNormalShapes("pred_normal_loss", weights, normals)
	requireSameShape("pred_normal_loss", [2]string{"normals", "pred_normals"}, normals, predNormals)
	cos := normals.Mul(predNormals).SumDim(-1, false)
	return weights.Squeeze(-1).Mul(cos.Neg().AddScalar(1)).SumDim(-1, false)
}

// MonoSDFNormalLoss is the MonoSDF normal consistency between volume-rendered
// normals and monocular normal estimates [N, 3], both L2-normalized first:
//
//	mean(Σ |p - g|) + mean(1 - p · g)
func MonoSDFNormalLoss[T tensor.Float, B tensor.Backend](normalPred, normalGT *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	requireSameShape("monosdf_normal_loss", [2]string{"normal_pred", "normal_gt"}, normalPred, normalGT)
	p := normalize(normalPred)
	g := normalize(normalGT)
	l1 := p.Sub(g).Abs().SumDim(-1, false).Mean()
	cos := p.Mul(g).SumDim(-1, false).Neg().AddScalar(1).Mean()
	return l1.Add(cos)
}

// normalize divides x by its L2 norm along the last dimension.
func normalize[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return x.Div(x.Norm(-1, true).ClampMin(normalizeEps))
}

func checkNormalShapes[T tensor.Float, B tensor.Backend](op string, weights, normals *tensor.Tensor[T, B]) {
	ws, ns := weights.Shape(), normals.Shape()
	if len(ws) < 2 || len(ws) != len(ns) || ws.Last() != 1 || !ws[:len(ws)-1].Equal(ns[:len(ns)-1]) {
		panic(fmt.Sprintf("%s: weights %v do not match normals %v", op, ws, ns))
	}
}
