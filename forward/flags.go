// Package forward implements the Forward Driver (spec.md §4.5): the
// layer-by-layer orchestration of KV-window bookkeeping, sink rotation,
// per-architecture attention/FFN dispatch, and the final norm+classifier
// step, plus the optional Cooperative Fused Path (spec.md §4.6). Grounded
// on the teacher's runner/llamarunner forward-pass orchestration,
// generalized from its single-architecture multi-sequence loop to this
// spec's six-architecture single-stream driver.
package forward

// Flags carries the bit flags forward() accepts (spec.md §6).
type Flags uint

// UpdateKVOnly, when set, stops the driver after the last layer's QKV/KV
// write and returns nil logits (spec.md §4.5 step 5, §6: "used for prompt
// pre-fill").
const UpdateKVOnly Flags = 1 << 0
