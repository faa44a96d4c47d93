// Package device owns the simulated accelerator: the Transformer handle
// (weights + KV cache + scratch state + stream context), its memory
// accounting, and the single-forward-in-flight invariant (spec.md §4.1, §5).
package device

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tensorcore/calmrt/kvcache"
	"github.com/tensorcore/calmrt/model"
)

// BackendMemory accounts for the three memory pools the device manager
// tracks (spec.md §4.1: "Reports memory in the same three pools the
// original tracks: weights, KV cache, scratch/compute buffers").
type BackendMemory struct {
	WeightsBytes int64
	KVCacheBytes int64
	ScratchBytes int64
}

// Total is the sum of all three pools.
func (m BackendMemory) Total() int64 {
	return m.WeightsBytes + m.KVCacheBytes + m.ScratchBytes
}

// Transformer is the device-resident handle for one prepared model
// (spec.md §4.1): immutable Config and Weights, a mutable KV Cache and
// RunState, and the concurrency primitives that keep a single forward pass
// in flight at a time (spec.md §5).
type Transformer struct {
	ID uuid.UUID

	Config  model.Config
	Weights model.Weights
	Cache   *kvcache.Cache
	State   *RunState
	Context *Context

	Memory BackendMemory

	sem *semaphore.Weighted
}

// Prepare validates cfg, uploads hw to the device, and allocates the KV
// cache and scratch buffers sized to cfg (spec.md §4.1: "prepare(): takes
// the validated config and host-resident weight pointers, allocates
// RunState and KV cache sized to the config, uploads every weight block
// from host to device, and returns an opaque transformer handle").
func Prepare(cfg model.Config, hw model.HostWeights) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	weights, err := model.Upload(hw)
	if err != nil {
		return nil, err
	}

	cache, err := kvcache.NewCache(cfg.L, cfg.Smax, cfg.Hkv, cfg.Dh, cfg.Dr, cfg.Theta, cfg.KVBits)
	if err != nil {
		return nil, err
	}

	state := NewRunState(cfg)

	t := &Transformer{
		ID:      uuid.New(),
		Config:  cfg,
		Weights: weights,
		Cache:   cache,
		State:   state,
		Context: NewContext(),
		sem:     semaphore.NewWeighted(1),
	}
	t.Memory = BackendMemory{
		WeightsBytes: weightsBytes(hw),
		KVCacheBytes: cache.Store.Bytes(),
		ScratchBytes: state.Bytes(),
	}
	return t, nil
}

// Acquire blocks until no other forward pass holds the Transformer, then
// claims it (spec.md §5: "a single semaphore... enforces that only one
// forward pass runs against a given transformer handle at a time").
func (t *Transformer) Acquire() {
	_ = t.sem.Acquire(context.Background(), 1)
}

// Release frees the Transformer for the next forward pass.
func (t *Transformer) Release() {
	t.sem.Release(1)
}

// Close stops the Transformer's stream goroutines. Callers must not have
// an in-flight forward pass when calling Close.
func (t *Transformer) Close() {
	t.Context.Primary.Sync()
	t.Context.Secondary.Sync()
	t.Context.Close()
}

func weightsBytes(hw model.HostWeights) int64 {
	var total int64
	add := func(m model.HostMatrix) {
		total += int64(len(m.Data))
	}
	add(hw.Embedding)
	add(hw.Wcls)
	total += int64(len(hw.FinalNorm)+len(hw.ClsBias)) * 4
	for _, l := range hw.Layers {
		add(l.Wq)
		add(l.Wk)
		add(l.Wv)
		add(l.Wo)
		add(l.W1)
		add(l.W2)
		add(l.W3)
		add(l.Wg)
		total += int64(len(l.AttnNorm)+len(l.FFNNorm)+len(l.BiasQ)+len(l.BiasK)+len(l.BiasV)+len(l.BiasFFN1)+len(l.BiasFFN2)) * 4
		for _, e := range l.Experts {
			add(e.W1)
			add(e.W2)
			add(e.W3)
		}
	}
	return total
}
