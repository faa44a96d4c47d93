package ffn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackWeightIndexPreservesOrder(t *testing.T) {
	a := packWeightIndex(0.9, 3)
	b := packWeightIndex(0.1, 5)
	assert.Greater(t, a, b)

	w, idx := unpackWeightIndex(a)
	assert.InDelta(t, 0.9, w, 1e-2)
	assert.Equal(t, 3, idx)
}

func TestSoftmaxNormalizeSumsToOne(t *testing.T) {
	x := []float32{1, 2, 3, 0.5}
	softmaxNormalize(x)
	var sum float32
	for _, v := range x {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

// TestMoETopKSelection verifies spec.md §8 scenario 4: with two clear top
// gate values among E=8, the selected indices are those two and the
// normalized weights sum to 1.
func TestMoETopKSelection(t *testing.T) {
	e, ea := 8, 2
	gateLogits := []float32{0.1, 0.1, 5.0, 0.1, 0.1, 4.0, 0.1, 0.1}

	packed := make([]uint32, e)
	logitsCopy := append([]float32(nil), gateLogits...)
	softmaxNormalize(logitsCopy)
	for i, w := range logitsCopy {
		packed[i] = packWeightIndex(w, i)
	}

	weights := make([]float32, ea)
	indices := make([]int, ea)
	for k := 0; k < ea; k++ {
		best := 0
		for i := 1; i < e; i++ {
			if packed[i] > packed[best] {
				best = i
			}
		}
		w, idx := unpackWeightIndex(packed[best])
		weights[k] = w
		indices[k] = idx
		packed[best] = 0
	}

	assert.ElementsMatch(t, []int{2, 5}, indices)
	assert.NotEqual(t, indices[0], indices[1])

	var wsum float32
	for _, w := range weights {
		wsum += w
	}
	for i := range weights {
		weights[i] /= wsum
	}
	wsum = 0
	for _, w := range weights {
		wsum += w
	}
	assert.InDelta(t, 1.0, wsum, 1e-5)
}
