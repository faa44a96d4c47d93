package kvcache

import "github.com/tensorcore/calmrt/rope"

// SinkSize is kv_sink, the number of always-retained initial positions
// (spec.md §4.5 step 1, §8 scenario wrap boundary: "kv_sink = 2").
const SinkSize = 2

// Window computes kv_sink, kv_pos, kv_len for a given absolute position and
// cache capacity (spec.md §4.5 step 1 / §8's KV-cache-wrap property):
// before the cache fills, the physical write index equals pos; once
// pos >= smax, writes wrap into [kv_sink, smax) and kv_sink positions
// {0, 1} are never overwritten.
func Window(pos, smax int) (kvSink, kvPos, kvLen int) {
	if pos < smax {
		return 0, pos, min(pos+1, smax)
	}
	kvSink = SinkSize
	kvPos = kvSink + (pos-kvSink)%(smax-kvSink)
	return kvSink, kvPos, smax
}

// Cache is the rolling KV cache with attention sinks for one transformer:
// one Store plus the bookkeeping needed to rotate sink keys as the window
// wraps (spec.md §4.5 step 3, §8 sink-rotation property).
type Cache struct {
	Store *Store

	Hkv, Dh int
	Dr      int
	Theta   float32

	// sinkRotations counts how many forward calls have advanced the
	// sink rotation since the cache first wrapped (k in the testable
	// property "after k forward calls with pos >= Smax, the sink key
	// vectors have been rotated by exactly k additional freq-units").
	sinkRotations int
}

// NewCache builds a Cache over a freshly allocated Store.
func NewCache(layers, smax, hkv, dh, dr int, theta float32, kvbits int) (*Cache, error) {
	store, err := NewStore(layers, smax, hkv*dh, kvbits)
	if err != nil {
		return nil, err
	}
	return &Cache{Store: store, Hkv: hkv, Dh: dh, Dr: dr, Theta: theta}, nil
}

// RotateSinks rotates every cached sink-position key vector, across every
// layer, by one position worth of rotary frequency (spec.md §4.5 step 3:
// "If kv_sink > 0, rotate all cached sink keys by one position worth of
// rotary frequency to keep them aligned with non-sink keys"). Called once
// per forward call once the cache has wrapped (kv_sink > 0).
func (c *Cache) RotateSinks() {
	pairsPerHead := c.Dh / 2
	for layer := 0; layer < c.Store.Layers; layer++ {
		for kvHead := 0; kvHead < c.Hkv; kvHead++ {
			for p := 0; p < pairsPerHead; p++ {
				pairIndex := kvHead*pairsPerHead + p
				jHead := 2 * p
				freq := rope.Freq(jHead, c.Dr, c.Theta)
				if freq == 0 {
					continue
				}
				cos, sin := rope.CosSin(1, freq)
				for sinkPos := 0; sinkPos < SinkSize; sinkPos++ {
					v0 := c.Store.LoadK(layer, pairIndex, sinkPos, 0)
					v1 := c.Store.LoadK(layer, pairIndex, sinkPos, 1)
					r0, r1 := rope.Rotate(v0, v1, cos, sin)
					c.Store.StoreK(layer, pairIndex, sinkPos, 0, r0)
					c.Store.StoreK(layer, pairIndex, sinkPos, 1, r1)
				}
			}
		}
	}
	c.sinkRotations++
}

// SinkRotations reports how many times RotateSinks has run, the k in the
// sink-rotation testable property.
func (c *Cache) SinkRotations() int { return c.sinkRotations }
