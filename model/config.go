// Package model defines the immutable Config and device-resident Weights
// (spec.md §3) and the architecture registry that the Forward Driver
// dispatches through (spec.md §9 "Architecture dispatch": "model as a
// tagged variant of architecture kinds; each variant carries the set of
// components it enables"), grounded on the teacher's model.Register/
// model.New registry pattern generalized from file-backed GGUF metadata to
// this spec's plain Config struct.
package model

import (
	"fmt"

	"github.com/tensorcore/calmrt/calmerr"
)

// Architecture tags one of the six supported model families (spec.md §3).
type Architecture int

const (
	LlamaLike Architecture = iota
	Qwen
	Phi
	Mixtral
	Olmo
	Gemma
)

func (a Architecture) String() string {
	switch a {
	case LlamaLike:
		return "llama"
	case Qwen:
		return "qwen"
	case Phi:
		return "phi"
	case Mixtral:
		return "mixtral"
	case Olmo:
		return "olmo"
	case Gemma:
		return "gemma"
	default:
		return "unknown"
	}
}

// warpWidth is the width D, H, Hkv*Dh, and V must be multiples of (spec.md §3).
const warpWidth = 32

// Config is the immutable model configuration (spec.md §3). It is uploaded
// once and never mutated by the Forward Driver.
type Config struct {
	Arch Architecture

	D    int // model dim
	H    int // FFN hidden dim
	Dh   int // head dim
	L    int // layer count
	Hq   int // query heads
	Hkv  int // key/value heads
	V    int // vocab size
	Smax int // max sequence length
	Dr   int // rotary dim, Dr <= Dh
	Theta float32 // RoPE base

	E  int // MoE expert count (0 for dense)
	Ea int // MoE active expert count (0 for dense)

	NormEps    float32
	EmbedScale float32

	// WeightDBits/KVBits are the default precision tags for weights and
	// the KV cache; individual matrices may override WeightDBits per
	// spec.md §3's per-matrix dbits tag.
	WeightDBits int
	KVBits      int
}

// Validate checks every invariant in spec.md §3, returning a
// *calmerr.ConfigError naming the first offending field.
func (c Config) Validate() error {
	check := func(cond bool, field, reason string) error {
		if !cond {
			return &calmerr.ConfigError{Field: field, Reason: reason}
		}
		return nil
	}

	if err := check(c.D%warpWidth == 0, "D", fmt.Sprintf("must be a multiple of warp width %d", warpWidth)); err != nil {
		return err
	}
	if err := check(c.H%warpWidth == 0, "H", fmt.Sprintf("must be a multiple of warp width %d", warpWidth)); err != nil {
		return err
	}
	if err := check((c.Hkv*c.Dh)%warpWidth == 0, "Hkv*Dh", fmt.Sprintf("must be a multiple of warp width %d", warpWidth)); err != nil {
		return err
	}
	if err := check(c.V%warpWidth == 0, "V", fmt.Sprintf("must be a multiple of warp width %d", warpWidth)); err != nil {
		return err
	}
	if err := check(c.Hq%c.Hkv == 0, "Hq", "must be a multiple of Hkv (grouped-query attention)"); err != nil {
		return err
	}
	if err := check(c.Dr%2 == 0, "Dr", "rotary dim must be even"); err != nil {
		return err
	}
	if err := check(c.Dr <= c.Dh, "Dr", "rotary dim must not exceed head dim"); err != nil {
		return err
	}
	if err := check(c.E <= 64, "E", "expert count must be <= 64"); err != nil {
		return err
	}
	if err := check(c.L <= 128, "L", "layer count must be <= 128"); err != nil {
		return err
	}
	if err := check(c.E == 0 || c.Ea > 0, "Ea", "active expert count must be positive when E > 0"); err != nil {
		return err
	}
	if err := check(c.Ea <= c.E, "Ea", "active expert count must not exceed expert count"); err != nil {
		return err
	}
	if err := check(c.WeightDBits == 4 || c.WeightDBits == 8 || c.WeightDBits == 16, "WeightDBits", "must be one of {4, 8, 16}"); err != nil {
		return err
	}
	if err := check(c.KVBits == 8 || c.KVBits == 16, "KVBits", "must be one of {8, 16}"); err != nil {
		return err
	}
	return nil
}

// IsMoE reports whether this config uses Mixture-of-Experts FFN.
func (c Config) IsMoE() bool { return c.E > 0 && c.Ea > 0 }

// IsGQA reports whether this config uses grouped-query attention.
func (c Config) IsGQA() bool { return c.Hkv < c.Hq }

// KVMul is the number of query heads sharing each KV head (spec.md §4.3:
// "kₕ(t) uses the grouped-query key head h/kv_mul").
func (c Config) KVMul() int { return c.Hq / c.Hkv }

// SupportsCooperative reports whether the architecture has a cooperative
// fused path (spec.md §4.6: "supports LlamaLike, Mixtral, and Gemma").
func (c Config) SupportsCooperative() bool {
	switch c.Arch {
	case LlamaLike, Mixtral, Gemma:
		return true
	default:
		return false
	}
}

// UsesParallelBranches reports whether attention and FFN run on
// independent streams with an LayerNorm accumulator handoff (spec.md §4.4
// ungated-with-bias variant, §5 Phi parallel-branch architectures).
func (c Config) UsesParallelBranches() bool { return c.Arch == Phi }

// UsesLayerNorm reports whether this architecture normalizes with
// LayerNorm instead of RMSNorm (spec.md §4.4: "LayerNorm for Olmo").
func (c Config) UsesLayerNorm() bool {
	return c.Arch == Olmo || c.Arch == Phi
}

// FFNActivation names the gated-FFN activation for this architecture
// (spec.md §4.4: "SiLU for Llama/Qwen/Olmo/Mixtral, GELU for Gemma").
type FFNActivation int

const (
	ActSiLU FFNActivation = iota
	ActGELU
)

func (c Config) FFNActivation() FFNActivation {
	if c.Arch == Gemma {
		return ActGELU
	}
	return ActSiLU
}
