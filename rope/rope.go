// Package rope implements the rotary position embedding math shared by the
// fused QKV+RoPE+KV-write kernel (spec.md §4.3) and the attention-sink
// rotation the Forward Driver applies once the KV cache has wrapped
// (spec.md §4.5 step 3). Keeping it separate from both callers avoids an
// import cycle between the attention stage and the KV cache.
package rope

import "math"

// Freq returns the rotary frequency for head-dim offset jHead, 0 when
// jHead is at or past the rotary dimension dr (spec.md §4.3 step 3):
// freq = jHead < dr ? 2^(-log2(theta)*jHead/dr) : 0.
func Freq(jHead, dr int, theta float32) float32 {
	if jHead >= dr {
		return 0
	}
	log2Theta := math.Log2(float64(theta))
	exp := -log2Theta * float64(jHead) / float64(dr)
	return float32(math.Pow(2, exp))
}

// CosSin returns (cos(pos*freq), sin(pos*freq)).
func CosSin(pos int, freq float32) (cos, sin float32) {
	angle := float64(pos) * float64(freq)
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// Rotate applies the 2D rotation to a pair of adjacent elements
// (spec.md §4.3 step 4): r0 = v0*cos - v1*sin, r1 = v0*sin + v1*cos. When
// freq is 0 (cos=1, sin=0) this is the identity, giving the rotary-identity
// property at pos=0 and for pairs past the rotary dimension.
func Rotate(v0, v1, cos, sin float32) (r0, r1 float32) {
	return v0*cos - v1*sin, v0*sin + v1*cos
}
