// Package ffn implements the Feed-Forward Stage's three variants (spec.md
// §4.4): the gated FFN shared by LlamaLike/Qwen/Olmo/Gemma/Mixtral's dense
// layers, Phi's ungated-with-bias parallel-branch FFN, and Mixtral's MoE
// routing. Grounded on the teacher's ffn.go gated-matmul pattern,
// generalized to dispatch activation by model.FFNActivation and to add the
// bias/MoE variants the teacher's dense-only models never needed.
package ffn

import (
	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
)

// Gated computes x += W2 * (act(W1*xb) ⊙ (W3*xb)) (spec.md §4.4 "Gated"),
// using hb as the up-branch scratch and gate as the gate-branch scratch
// (RunState.Hb/Hg): both are caller-owned, sized H, and reused across calls
// rather than allocated per call.
func Gated(x []float32, lw model.LayerWeights, xb, hb, gate []float32, act model.FFNActivation) {
	ml.MatVec(gate, lw.W1, xb, ml.MatVecOptions{})
	switch act {
	case model.ActGELU:
		ml.GELU(gate)
	default:
		ml.SiLU(gate)
	}

	ml.MatVec(hb, lw.W3, xb, ml.MatVecOptions{})
	for i := range hb {
		hb[i] *= gate[i]
	}

	ml.MatVec(x, lw.W2, hb, ml.MatVecOptions{Residual: true})
}
