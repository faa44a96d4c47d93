package runner

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math/rand"
	"net/http/httptest"
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

func tinyLoader() (model.Config, model.HostWeights, error) {
	rng := rand.New(rand.NewSource(42))
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
	return cfg, hw, nil
}

func TestHealthReportsLaunchedBeforeLoad(t *testing.T) {
	s := NewServer(tinyLoader)
	rec := httptest.NewRecorder()
	s.health(rec, httptest.NewRequest("GET", "/health", nil))

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "launched", resp.Status)
}

func TestHealthReportsReadyAfterLoad(t *testing.T) {
	s := NewServer(tinyLoader)
	s.loadModel()

	rec := httptest.NewRecorder()
	s.health(rec, httptest.NewRequest("GET", "/health", nil))

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ready", resp.Status)
}

func TestForwardEndpointRejectsUntilReady(t *testing.T) {
	s := NewServer(tinyLoader)
	body, _ := json.Marshal(forwardRequest{Token: 0, Pos: 0})
	rec := httptest.NewRecorder()
	s.forward(rec, httptest.NewRequest("POST", "/forward", bytes.NewReader(body)))
	assert.Equal(t, 503, rec.Code)
}

func TestForwardEndpointRoundTrip(t *testing.T) {
	s := NewServer(tinyLoader)
	s.loadModel()
	defer s.t.Close()

	body, _ := json.Marshal(forwardRequest{Token: 1, Pos: 0})
	rec := httptest.NewRecorder()
	s.forward(rec, httptest.NewRequest("POST", "/forward", bytes.NewReader(body)))
	require.Equal(t, 200, rec.Code)

	var resp forwardResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Done)
	assert.Len(t, resp.Logits, 32)
}

func TestForwardEndpointUpdateKVOnlyReportsDone(t *testing.T) {
	s := NewServer(tinyLoader)
	s.loadModel()
	defer s.t.Close()

	body, _ := json.Marshal(forwardRequest{Token: 1, Pos: 0, Flags: 1})
	rec := httptest.NewRecorder()
	s.forward(rec, httptest.NewRequest("POST", "/forward", bytes.NewReader(body)))
	require.Equal(t, 200, rec.Code)

	var resp forwardResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Done)
	assert.Empty(t, resp.Logits)
}
