package attention

import (
	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
)

// OutputProjection computes x[i] += sum_j Wo[i,j]*q[j] (spec.md §4.3
// "Output projection + residual"), the attention stage's exit point back
// into the residual stream.
func OutputProjection(x []float32, lw model.LayerWeights, q []float32) {
	ml.MatVec(x, lw.Wo, q, ml.MatVecOptions{Residual: true})
}
