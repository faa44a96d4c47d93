package device

import "github.com/tensorcore/calmrt/model"

// RunState holds the mutable, device-resident scratch buffers for one
// forward pass (spec.md §3): exclusively owned by whichever Forward call
// currently holds the Transformer's semaphore (spec.md §5).
type RunState struct {
	X  []float32 // D: residual stream
	Xb []float32 // D: normalized input to attention/FFN
	Xa []float32 // D: Phi's parallel-MLP accumulator
	Hb []float32 // H: FFN hidden activation (up/Biased branch)
	Hg []float32 // H: gated-FFN/MoE gate-branch scratch, reused per active expert
	Dn []float32 // D: MoE's per-expert down-projection scratch
	He []float32 // Ea*H: MoE per-active-expert hidden activation
	Q  []float32 // Hq*Dh: query projection
	Att []float32 // Hq*Smax: attention scores
	Exp []float32 // E + 2*Ea: MoE gate logits + (weight, index) scratch

	Logits []float32 // V: host-visible output buffer
}

// NewRunState allocates zeroed scratch buffers sized for the config
// (spec.md §4.1: "Allocates RunState and KV cache sized to the config").
func NewRunState(cfg model.Config) *RunState {
	he := 0
	exp := 0
	if cfg.IsMoE() {
		he = cfg.Ea * cfg.H
		exp = cfg.E + 2*cfg.Ea
	}
	return &RunState{
		X:      make([]float32, cfg.D),
		Xb:     make([]float32, cfg.D),
		Xa:     make([]float32, cfg.D),
		Hb:     make([]float32, cfg.H),
		Hg:     make([]float32, cfg.H),
		Dn:     make([]float32, cfg.D),
		He:     make([]float32, he),
		Q:      make([]float32, cfg.Hq*cfg.Dh),
		Att:    make([]float32, cfg.Hq*cfg.Smax),
		Exp:    make([]float32, exp),
		Logits: make([]float32, cfg.V),
	}
}

// Bytes reports the scratch allocation size, for BackendMemory accounting.
func (s *RunState) Bytes() int64 {
	count := len(s.X) + len(s.Xb) + len(s.Xa) + len(s.Hb) + len(s.Hg) + len(s.Dn) + len(s.He) + len(s.Q) + len(s.Att) + len(s.Exp) + len(s.Logits)
	return int64(count) * 4
}
