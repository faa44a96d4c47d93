package ffn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
)

// TestBiasedMatchesExplicitGELU verifies Phi's ungated-with-bias FFN against
// a hand-computed reference using identity weights and nonzero biases.
func TestBiasedMatchesExplicitGELU(t *testing.T) {
	dim := 2
	lw := model.LayerWeights{
		W1:       identityFP16(t, dim),
		W2:       identityFP16(t, dim),
		BiasFFN1: []float32{0.5, -0.5},
		BiasFFN2: []float32{1, 1},
	}
	xb := []float32{1, 2}
	hb := make([]float32, dim)
	xa := make([]float32, dim)
	Biased(xa, lw, xb, hb)

	want := []float32{xb[0] + 0.5, xb[1] - 0.5}
	ml.GELU(want)
	want[0] += 1
	want[1] += 1
	assert.InDeltaSlice(t, want, xa, 1e-2)
}
