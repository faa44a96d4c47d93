// Package ml implements the Numeric Kernels: the weight-matrix formats and
// the elementary operators (gather, norm, matmul, activation) every higher
// layer composes into a forward pass. Buffer allocation and memory
// accounting live in package device. Weight precision polymorphism
// (spec.md §9) is realized as an interface rather than generics: the packed
// layout varies in byte-width and group structure per format (gf4 packs 8
// values per 32-bit word with a shared scale; fp8/fp16 are flat arrays),
// which makes a single generic element type awkward; the WeightMatrix
// strategy interface keeps each format's layout local to its own file. The
// KV cache's fp8/fp16 choice is a switch on kvbits inside kvcache.Store.
package ml

// DType tags the on-device representation of a tensor. Weight tensors use
// DTypeGF4, DTypeFP8, or DTypeFP16 (dbits ∈ {4,8,16}); the KV cache uses
// DTypeKVFP8 or DTypeKVFP16 (kvbits ∈ {8,16}); activations are always
// float32 (DTypeF32).
type DType int

const (
	DTypeF32 DType = iota
	DTypeGF4
	DTypeFP8
	DTypeFP16
	DTypeKVFP8
	DTypeKVFP16
)

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeGF4:
		return "gf4"
	case DTypeFP8:
		return "fp8"
	case DTypeFP16:
		return "fp16"
	case DTypeKVFP8:
		return "kv_fp8"
	case DTypeKVFP16:
		return "kv_fp16"
	default:
		return "unknown"
	}
}

// WeightDBits reports the dbits tag (4, 8, or 16) for a weight DType, and
// false for anything else.
func WeightDBits(d DType) (int, bool) {
	switch d {
	case DTypeGF4:
		return 4, true
	case DTypeFP8:
		return 8, true
	case DTypeFP16:
		return 16, true
	default:
		return 0, false
	}
}

// KVBits reports the kvbits tag (8 or 16) for a KV DType, and false for
// anything else.
func KVBits(d DType) (int, bool) {
	switch d {
	case DTypeKVFP8:
		return 8, true
	case DTypeKVFP16:
		return 16, true
	default:
		return 0, false
	}
}

// GF4GroupSize is the number of weight elements sharing one FP32 scale in the
// gf4 format (spec.md §6: "packed 4-bit group-quantized floats... group
// size 8").
const GF4GroupSize = 8
