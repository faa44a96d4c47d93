package device

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
)

func randomMatrix(rng *rand.Rand, rows, cols int) model.HostMatrix {
	data := make([]byte, rows*cols*2)
	for i := 0; i < rows*cols; i++ {
		bits := uint16(ml.EncodeFP16(rng.Float32()*2 - 1))
		binary.LittleEndian.PutUint16(data[i*2:i*2+2], bits)
	}
	return model.HostMatrix{DBits: 16, Data: data, Rows: rows, Cols: cols}
}

func randomVector(rng *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = rng.Float32()
	}
	return v
}

// tinyFixture builds the smallest valid dense LlamaLike config/weights pair:
// D=32 (one warp-width row), H=32, L=1, Hq=2, Hkv=1, Dh=32, V=32, Smax=4.
func tinyFixture(seed int64) (model.Config, model.HostWeights) {
	rng := rand.New(rand.NewSource(seed))
	cfg := model.Config{
		Arch:        model.LlamaLike,
		D:           32,
		H:           32,
		Dh:          32,
		L:           1,
		Hq:          2,
		Hkv:         1,
		V:           32,
		Smax:        4,
		Dr:          32,
		Theta:       10000,
		NormEps:     1e-5,
		EmbedScale:  1,
		WeightDBits: 16,
		KVBits:      16,
	}
	hw := model.HostWeights{
		Embedding: randomMatrix(rng, cfg.V, cfg.D),
		FinalNorm: randomVector(rng, cfg.D),
		Wcls:      randomMatrix(rng, cfg.V, cfg.D),
	}
	kvDim := cfg.Hkv * cfg.Dh
	hw.Layers = []model.HostLayerWeights{{
		AttnNorm: randomVector(rng, cfg.D),
		FFNNorm:  randomVector(rng, cfg.D),
		Wq:       randomMatrix(rng, cfg.Hq*cfg.Dh, cfg.D),
		Wk:       randomMatrix(rng, kvDim, cfg.D),
		Wv:       randomMatrix(rng, kvDim, cfg.D),
		Wo:       randomMatrix(rng, cfg.D, cfg.Hq*cfg.Dh),
		W1:       randomMatrix(rng, cfg.H, cfg.D),
		W2:       randomMatrix(rng, cfg.D, cfg.H),
		W3:       randomMatrix(rng, cfg.H, cfg.D),
	}}
	return cfg, hw
}

func TestPrepareAccountsMemoryAcrossThreePools(t *testing.T) {
	cfg, hw := tinyFixture(1)
	tr, err := Prepare(cfg, hw)
	require.NoError(t, err)
	defer tr.Close()

	assert.Greater(t, tr.Memory.WeightsBytes, int64(0))
	assert.Greater(t, tr.Memory.KVCacheBytes, int64(0))
	assert.Greater(t, tr.Memory.ScratchBytes, int64(0))
	assert.Equal(t, tr.Memory.WeightsBytes+tr.Memory.KVCacheBytes+tr.Memory.ScratchBytes, tr.Memory.Total())
}

func TestPrepareRejectsInvalidConfig(t *testing.T) {
	cfg, hw := tinyFixture(2)
	cfg.D = 31
	_, err := Prepare(cfg, hw)
	assert.Error(t, err)
}

// TestAcquireReleaseSerializesForwardPasses verifies spec.md §5's
// single-forward-in-flight invariant: a second Acquire blocks until the
// first Release runs.
func TestAcquireReleaseSerializesForwardPasses(t *testing.T) {
	cfg, hw := tinyFixture(3)
	tr, err := Prepare(cfg, hw)
	require.NoError(t, err)
	defer tr.Close()

	tr.Acquire()
	acquired := make(chan struct{})
	go func() {
		tr.Acquire()
		close(acquired)
		tr.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned before first Release")
	default:
	}

	tr.Release()
	<-acquired
}
