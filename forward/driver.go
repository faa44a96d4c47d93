package forward

import (
	"github.com/tensorcore/calmrt/attention"
	"github.com/tensorcore/calmrt/calmerr"
	"github.com/tensorcore/calmrt/device"
	"github.com/tensorcore/calmrt/envconfig"
	"github.com/tensorcore/calmrt/ffn"
	"github.com/tensorcore/calmrt/kvcache"
	"github.com/tensorcore/calmrt/ml"
)

// Forward runs one forward pass (spec.md §4.5 "forward(transformer, token,
// pos, flags) → logits_ptr or null"), choosing the cooperative fused path
// when CALM_COOP requests it and the architecture supports it (spec.md
// §4.6, §6).
func Forward(t *device.Transformer, token, pos int, flags Flags) []float32 {
	cfg := t.Config
	if token < 0 || token >= cfg.V {
		calmerr.Fatal(&calmerr.ArgumentError{Arg: "token", Reason: "must be in [0, V)"})
		return nil
	}
	if pos < 0 {
		calmerr.Fatal(&calmerr.ArgumentError{Arg: "pos", Reason: "must be non-negative"})
		return nil
	}

	t.Acquire()
	defer t.Release()

	if envconfig.CoopFused() && cfg.SupportsCooperative() {
		return coopForward(t, token, pos, flags)
	}
	return multiKernelForward(t, token, pos, flags)
}

// multiKernelForward is the per-operator driver (spec.md §4.5 steps 1-8):
// dozens of discrete kernel calls per layer, architecture-dispatched.
func multiKernelForward(t *device.Transformer, token, pos int, flags Flags) []float32 {
	cfg := t.Config
	state := t.State
	w := t.Weights
	cache := t.Cache

	kvSink, kvPos, kvLen := kvcache.Window(pos, cfg.Smax)

	ml.EmbeddingGather(state.X, w.Embedding, token, cfg.EmbedScale)

	if kvSink > 0 {
		cache.RotateSinks()
	}

	useLayerNorm := cfg.UsesLayerNorm()
	parallel := cfg.UsesParallelBranches()

	for l := 0; l < cfg.L; l++ {
		lw := w.Layers[l]

		var acc []float32
		if parallel && l > 0 {
			acc = state.Xa
		}
		if useLayerNorm {
			ml.LayerNorm(state.Xb, state.X, acc, lw.AttnNorm, cfg.NormEps)
		} else {
			ml.RMSNorm(state.Xb, state.X, lw.AttnNorm, cfg.NormEps)
		}

		attention.FusedQKVRoPE(lw, state.Xb, state.Q, cache, l, pos, kvPos, cfg.Hq, cfg.Hkv, cfg.Dh, cfg.Dr, cfg.Theta)

		if l == cfg.L-1 && flags&UpdateKVOnly != 0 {
			return nil
		}

		attnTail := func() {
			attention.Score(state.Att, state.Q, cache, l, cfg.Hq, cfg.Hkv, cfg.Dh, cfg.Smax, kvLen)
			attention.SoftmaxHeads(state.Att, cfg.Hq, cfg.Smax, kvLen)
			attention.Mix(state.Q, state.Att, cache, l, cfg.Hq, cfg.Hkv, cfg.Dh, cfg.Smax, kvLen)
			attention.OutputProjection(state.X, lw, state.Q)
		}

		if parallel {
			// Phi's attention and MLP branches both read the LayerNorm'd
			// xb computed above and write disjoint outputs (X's residual
			// add, Xa): the MLP branch runs on the secondary stream while
			// the main stream runs the attention tail concurrently,
			// handed off by a pair of capacity-1 event channels (spec.md
			// §5: main signals after the input LayerNorm, the MLP stream
			// signals after writing xa).
			lnDone := make(chan struct{}, 1)
			xaDone := make(chan struct{}, 1)
			t.Context.Secondary.Submit(func() {
				<-lnDone
				ffn.Biased(state.Xa, lw, state.Xb, state.Hb)
				xaDone <- struct{}{}
			})
			lnDone <- struct{}{}

			attnTail()

			<-xaDone
			continue
		}

		attnTail()

		switch {
		case cfg.IsMoE():
			ml.RMSNorm(state.Xb, state.X, lw.FFNNorm, cfg.NormEps)
			ffn.MoE(state.X, lw, state.Xb, state.He, state.Exp, state.Hg, state.Dn, cfg.E, cfg.Ea, cfg.H)
		default:
			if useLayerNorm {
				ml.LayerNorm(state.Xb, state.X, nil, lw.FFNNorm, cfg.NormEps)
			} else {
				ml.RMSNorm(state.Xb, state.X, lw.FFNNorm, cfg.NormEps)
			}
			ffn.Gated(state.X, lw, state.Xb, state.Hb, state.Hg, cfg.FFNActivation())
		}
	}

	switch {
	case parallel:
		ml.LayerNorm(state.Xb, state.X, state.Xa, w.FinalNorm, cfg.NormEps)
	case useLayerNorm:
		ml.LayerNorm(state.Xb, state.X, nil, w.FinalNorm, cfg.NormEps)
	default:
		ml.RMSNorm(state.Xb, state.X, w.FinalNorm, cfg.NormEps)
	}
	ml.MatVec(state.Logits, w.Wcls, state.Xb, ml.MatVecOptions{Bias: w.ClsBias})
	return state.Logits
}
