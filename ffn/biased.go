package ffn

import (
	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
)

// Biased computes Phi's ungated FFN variant: g = GELU(W1*xb + b1),
// xa = W2*g + b2 (spec.md §4.4 "Ungated with bias (Phi)"). xa is written,
// not accumulated into x directly — the caller folds it into the next
// layer's LayerNorm accumulator (spec.md §4.4, §5 "Parallel-branch
// architectures").
func Biased(xa []float32, lw model.LayerWeights, xb, hb []float32) {
	ml.MatVec(hb, lw.W1, xb, ml.MatVecOptions{Bias: lw.BiasFFN1})
	ml.GELU(hb)
	ml.MatVec(xa, lw.W2, hb, ml.MatVecOptions{Bias: lw.BiasFFN2})
}
