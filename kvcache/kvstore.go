// Package kvcache implements the rolling KV cache with attention sinks
// (spec.md §3/§4.5), generalizing the teacher's kvcache.Causal (which holds
// a per-sequence cell table and sliding-window bookkeeping for a
// multi-request server) to this spec's single-stream, sink-preserving
// cache. The load-bearing transposed layouts for K and V (spec.md §3) are
// implemented directly as offset arithmetic on a flat device byte buffer,
// dispatched on kvbits the same way ml's WeightMatrix dispatches on dbits.
package kvcache

import (
	"fmt"

	"github.com/tensorcore/calmrt/ml"
)

// Store holds the two contiguous KV blocks (K, V) for all layers, each of
// shape L*Smax*(Hkv*Dh) elements (spec.md §3), in one shared numeric
// format (kvbits ∈ {8,16}).
type Store struct {
	Layers  int
	Smax    int
	KVDim   int // Hkv*Dh
	KVBits  int
	K       []byte
	V       []byte
}

// layerStride is the element count of one layer's K (or V) plane.
func (s *Store) layerStride() int { return s.Smax * s.KVDim }

func (s *Store) kBytesPerElement() int {
	if s.KVBits == 8 {
		return 1
	}
	return 2
}

// Bytes reports the device memory this Store occupies, for BackendMemory
// accounting.
func (s *Store) Bytes() int64 {
	return int64(len(s.K) + len(s.V))
}

// NewStore allocates zeroed K/V device buffers sized for the config.
func NewStore(layers, smax, kvDim, kvbits int) (*Store, error) {
	if kvbits != 8 && kvbits != 16 {
		return nil, fmt.Errorf("kvcache: unsupported kvbits %d", kvbits)
	}
	elemBytes := 1
	if kvbits == 16 {
		elemBytes = 2
	}
	total := layers * smax * kvDim * elemBytes
	return &Store{
		Layers: layers,
		Smax:   smax,
		KVDim:  kvDim,
		KVBits: kvbits,
		K:      make([]byte, total),
		V:      make([]byte, total),
	}, nil
}

// StoreK writes one member (r ∈ {0,1}) of a rotary pair at (layer,
// pairIndex, pos) into the transposed key layout: offset =
// layer*layerStride + pairIndex*Smax*2 + pos*2 + r (spec.md §3: "two
// consecutive time-steps are contiguous, then the next head-element
// stride is Smax*2").
func (s *Store) StoreK(layer, pairIndex, pos, r int, v float32) {
	off := layer*s.layerStride() + pairIndex*s.Smax*2 + pos*2 + r
	s.writeElement(s.K, off, v)
}

// LoadK reads back a value stored by StoreK.
func (s *Store) LoadK(layer, pairIndex, pos, r int) float32 {
	off := layer*s.layerStride() + pairIndex*s.Smax*2 + pos*2 + r
	return s.readElement(s.K, off)
}

// StoreV writes a (head-element, position) entry into the value layout:
// offset = layer*layerStride + elemIndex*Smax + pos (spec.md §3:
// "(head_element, position) is the fastest-varying pair"). V is never
// rotated.
func (s *Store) StoreV(layer, elemIndex, pos int, v float32) {
	off := layer*s.layerStride() + elemIndex*s.Smax + pos
	s.writeElement(s.V, off, v)
}

// LoadV reads back a value stored by StoreV.
func (s *Store) LoadV(layer, elemIndex, pos int) float32 {
	off := layer*s.layerStride() + elemIndex*s.Smax + pos
	return s.readElement(s.V, off)
}

func (s *Store) writeElement(buf []byte, idx int, v float32) {
	switch s.KVBits {
	case 8:
		buf[idx] = byte(ml.EncodeFP8E5M2(v))
	default:
		bits := ml.EncodeFP16(v)
		off := idx * 2
		buf[off] = byte(bits)
		buf[off+1] = byte(bits >> 8)
	}
}

func (s *Store) readElement(buf []byte, idx int) float32 {
	switch s.KVBits {
	case 8:
		return ml.FP8E5M2(buf[idx]).Float32()
	default:
		off := idx * 2
		bits := uint16(buf[off]) | uint16(buf[off+1])<<8
		return ml.FP16(bits).Float32()
	}
}
