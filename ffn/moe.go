package ffn

import (
	"math"

	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
)

// MoE computes Mixtral's gated-routing FFN (spec.md §4.4 "MoE"): a
// softmax over E gate logits, top-Ea selection via a packed sortable
// (weight, index) value with weight in the high 24 bits and index in the
// low 8, iteratively extracting and zeroing the argmax lane, then a
// weighted sum of each selected expert's gated FFN output. exp is scratch
// of length E+2*Ea (RunState.Exp): [0,E) gate logits, [E,E+Ea) selected
// weights, [E+Ea,E+2*Ea) selected indices (stored as float32). he is
// RunState.He, Ea*H long, one H-wide slice per active expert slot. gate
// and down are RunState.Hg/Dn, sized H and D: experts are processed one at
// a time on the same stream, so a single pair of scratch buffers is reused
// across the active-expert loop rather than allocated per call.
func MoE(x []float32, lw model.LayerWeights, xb, he, exp, gate, down []float32, e, ea, h int) {
	gateLogits := exp[:e]
	ml.MatVec(gateLogits, lw.Wg, xb, ml.MatVecOptions{})
	softmaxNormalize(gateLogits)

	packed := make([]uint32, e)
	for i, w := range gateLogits {
		packed[i] = packWeightIndex(w, i)
	}

	weights := exp[e : e+ea]
	indices := exp[e+ea : e+2*ea]

	for k := 0; k < ea; k++ {
		best := 0
		for i := 1; i < e; i++ {
			if packed[i] > packed[best] {
				best = i
			}
		}
		w, idx := unpackWeightIndex(packed[best])
		weights[k] = w
		indices[k] = float32(idx)
		packed[best] = 0
	}

	var wsum float32
	for _, w := range weights {
		wsum += w
	}
	for k := range weights {
		weights[k] /= wsum
	}

	for k := 0; k < ea; k++ {
		expert := lw.Experts[int(indices[k])]
		hb := he[k*h : (k+1)*h]
		ml.MatVec(gate, expert.W1, xb, ml.MatVecOptions{})
		ml.SiLU(gate)
		ml.MatVec(hb, expert.W3, xb, ml.MatVecOptions{})
		for i := range hb {
			hb[i] *= gate[i]
		}
		ml.MatVec(down, expert.W2, hb, ml.MatVecOptions{})
		wk := weights[k]
		for i := range x {
			x[i] += wk * down[i]
		}
	}
}

// softmaxNormalize is a full (normalized) softmax, distinct from
// ml.Softmax's max-subtract-only form: MoE's gating weights must be
// genuine probabilities before top-k packing (spec.md §4.4: "softmax over
// g_logits").
func softmaxNormalize(x []float32) {
	ml.Softmax(x)
	var sum float32
	for _, v := range x {
		sum += v
	}
	for i := range x {
		x[i] /= sum
	}
}

// packWeightIndex packs a non-negative weight and a small index into one
// sortable uint32: since IEEE-754 float32 bit patterns order the same as
// their values for non-negative floats, clearing the low 8 bits for the
// index preserves comparison order up to that truncation (spec.md §4.4:
// "pack (weight, index) into a single 32-bit sortable value").
func packWeightIndex(w float32, idx int) uint32 {
	bits := math.Float32bits(w)
	return (bits &^ 0xFF) | uint32(idx)
}

func unpackWeightIndex(packed uint32) (float32, int) {
	bits := packed &^ 0xFF
	idx := int(packed & 0xFF)
	return math.Float32frombits(bits), idx
}
