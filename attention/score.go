package attention

import (
	"math"

	"github.com/tensorcore/calmrt/kvcache"
	"github.com/tensorcore/calmrt/ml"
)

// Score computes att[h,t] = (q_h . k_h(t)) / sqrt(dh) for every query head h
// and physical cache slot t in [0, kvLen) (spec.md §4.3 "Attention score"),
// using the grouped-query key head h/kv_mul. att is laid out [hq][smax],
// matching RunState.Att.
func Score(att []float32, q []float32, cache *kvcache.Cache, layer, hq, hkv, dh, smax, kvLen int) {
	kvMul := hq / hkv
	pairsPerHead := dh / 2
	scale := float32(1 / math.Sqrt(float64(dh)))

	for h := 0; h < hq; h++ {
		kvHead := h / kvMul
		base := h * smax
		for t := 0; t < kvLen; t++ {
			var dot float32
			for e := 0; e < dh; e++ {
				pairIndex := kvHead*pairsPerHead + e/2
				k := cache.Store.LoadK(layer, pairIndex, t, e%2)
				dot += q[h*dh+e] * k
			}
			att[base+t] = dot * scale
		}
	}
}

// SoftmaxHeads applies ml.Softmax independently over each head's score row
// (spec.md §4.3 "Softmax": "in-place per-head over [0, kv_len)").
func SoftmaxHeads(att []float32, hq, smax, kvLen int) {
	for h := 0; h < hq; h++ {
		base := h * smax
		ml.Softmax(att[base : base+kvLen])
	}
}

// Mix computes the softmax-weighted average of cached values per head,
// overwriting q in place with the per-head mix output (spec.md §4.3
// "Attention mix": "the combined divide yields a proper softmax-weighted
// average"). q's contents afterward are the input to the output
// projection.
func Mix(q []float32, att []float32, cache *kvcache.Cache, layer, hq, hkv, dh, smax, kvLen int) {
	kvMul := hq / hkv

	for h := 0; h < hq; h++ {
		kvHead := h / kvMul
		base := h * smax

		var wsum float32
		for t := 0; t < kvLen; t++ {
			wsum += att[base+t]
		}

		for i := 0; i < dh; i++ {
			var acc float32
			elemIndex := kvHead*dh + i
			for t := 0; t < kvLen; t++ {
				acc += att[base+t] * cache.Store.LoadV(layer, elemIndex, t)
			}
			q[h*dh+i] = acc / wsum
		}
	}
}
