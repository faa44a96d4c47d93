// Package attention implements the Attention Stage (spec.md §4.3): the
// fused QKV+RoPE+KV-write kernel, grouped-query attention scoring,
// per-head softmax, the normalized mix, and the output projection with
// residual. Grounded on the teacher's attention.go, generalized from its
// single fp32 accumulator path to dispatch over ml.WeightMatrix's three
// weight precisions and kvcache.Store's two KV precisions.
package attention

import (
	"github.com/tensorcore/calmrt/kvcache"
	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
	"github.com/tensorcore/calmrt/rope"
)

// FusedQKVRoPE computes Q, K, V projections of xb, rotates each adjacent
// pair of Q/K elements by the rotary frequency for its head-dim offset,
// writes Q into q and K/V into the cache at position kvPos (spec.md §4.3
// "Fused QKV + RoPE + KV-write"). V is written unrotated.
func FusedQKVRoPE(lw model.LayerWeights, xb []float32, q []float32, cache *kvcache.Cache, layer, pos, kvPos, hq, hkv, dh, dr int, theta float32) {
	pairsPerHead := dh / 2

	for h := 0; h < hq; h++ {
		for p := 0; p < pairsPerHead; p++ {
			row0 := h*dh + 2*p
			row1 := row0 + 1
			v0 := ml.RowDot(lw.Wq, row0, xb)
			v1 := ml.RowDot(lw.Wq, row1, xb)
			if lw.BiasQ != nil {
				v0 += lw.BiasQ[row0]
				v1 += lw.BiasQ[row1]
			}
			jHead := 2 * p
			freq := rope.Freq(jHead, dr, theta)
			cos, sin := rope.CosSin(pos, freq)
			r0, r1 := rope.Rotate(v0, v1, cos, sin)
			q[row0] = r0
			q[row1] = r1
		}
	}

	for h := 0; h < hkv; h++ {
		for p := 0; p < pairsPerHead; p++ {
			row0 := h*dh + 2*p
			row1 := row0 + 1

			k0 := ml.RowDot(lw.Wk, row0, xb)
			k1 := ml.RowDot(lw.Wk, row1, xb)
			if lw.BiasK != nil {
				k0 += lw.BiasK[row0]
				k1 += lw.BiasK[row1]
			}
			jHead := 2 * p
			freq := rope.Freq(jHead, dr, theta)
			cos, sin := rope.CosSin(pos, freq)
			rk0, rk1 := rope.Rotate(k0, k1, cos, sin)

			pairIndex := h*pairsPerHead + p
			cache.Store.StoreK(layer, pairIndex, kvPos, 0, rk0)
			cache.Store.StoreK(layer, pairIndex, kvPos, 1, rk1)

			v0 := ml.RowDot(lw.Wv, row0, xb)
			v1 := ml.RowDot(lw.Wv, row1, xb)
			if lw.BiasV != nil {
				v0 += lw.BiasV[row0]
				v1 += lw.BiasV[row1]
			}
			cache.Store.StoreV(layer, row0, kvPos, v0)
			cache.Store.StoreV(layer, row1, kvPos, v1)
		}
	}
}
