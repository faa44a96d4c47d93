package kvcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWindowBeforeWrap verifies spec.md §8's KV-cache-wrap property for
// pos < Smax: the physical write index equals pos.
func TestWindowBeforeWrap(t *testing.T) {
	for pos := 0; pos < 8; pos++ {
		sink, kvPos, kvLen := Window(pos, 8)
		assert.Equal(t, 0, sink)
		assert.Equal(t, pos, kvPos)
		assert.Equal(t, pos+1, kvLen)
	}
}

// TestWindowWrapBoundary verifies scenario 3 in spec.md §8: with Smax=8,
// at pos=8 and pos=9 the physical indices written are 2 and 3.
func TestWindowWrapBoundary(t *testing.T) {
	sink, kvPos, kvLen := Window(8, 8)
	assert.Equal(t, SinkSize, sink)
	assert.Equal(t, 2, kvPos)
	assert.Equal(t, 8, kvLen)

	sink, kvPos, kvLen = Window(9, 8)
	assert.Equal(t, SinkSize, sink)
	assert.Equal(t, 3, kvPos)
	assert.Equal(t, 8, kvLen)
}

// TestWindowNeverOverwritesSinks checks sink positions {0,1} are never the
// physical write target once the cache has wrapped, for many positions.
func TestWindowNeverOverwritesSinks(t *testing.T) {
	for pos := 8; pos < 40; pos++ {
		_, kvPos, _ := Window(pos, 8)
		assert.NotEqual(t, 0, kvPos)
		assert.NotEqual(t, 1, kvPos)
	}
}

// TestSinkRotationCounts verifies spec.md §8's "Sink rotation" property:
// after k forward calls with pos >= Smax, the sink keys have been rotated
// by exactly k additional freq-units, and sink positions retain their
// stored magnitude (rotation preserves vector norm).
func TestSinkRotationCounts(t *testing.T) {
	cache, err := NewCache(1, 8, 1, 4, 4, 10000, 16)
	require.NoError(t, err)

	cache.Store.StoreK(0, 0, 0, 0, 1.0)
	cache.Store.StoreK(0, 0, 0, 1, 0.0)
	cache.Store.StoreK(0, 0, 1, 0, 0.0)
	cache.Store.StoreK(0, 0, 1, 1, 1.0)

	for k := 1; k <= 3; k++ {
		cache.RotateSinks()
		assert.Equal(t, k, cache.SinkRotations())
	}

	v0 := cache.Store.LoadK(0, 0, 0, 0)
	v1 := cache.Store.LoadK(0, 0, 0, 1)
	norm := v0*v0 + v1*v1
	assert.InDelta(t, 1.0, norm, 1e-2)
}
