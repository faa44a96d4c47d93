package main

import (
	"encoding/binary"
	"math/rand"

	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
)

// randomMatrix synthesizes a dbits-formatted weight matrix from random
// float32 values, encoded the same way the (out-of-scope) model-file
// parser would: gf4 rows through ml.EncodeGF4Row, fp8/fp16 elementwise.
// The bench CLI never loads a real model, only exercises
// prepare()/forward() end to end (spec.md §1's model-file parser is an
// explicit external collaborator).
func randomMatrix(rng *rand.Rand, dbits, rows, cols int) model.HostMatrix {
	switch dbits {
	case 4:
		data := make([]byte, 0, rows*cols)
		for i := 0; i < rows; i++ {
			data = append(data, ml.EncodeGF4Row(randomVector(rng, cols))...)
		}
		return model.HostMatrix{DBits: dbits, Data: data, Rows: rows, Cols: cols}
	case 8:
		data := make([]byte, rows*cols)
		for i := 0; i < rows*cols; i++ {
			data[i] = byte(ml.EncodeFP8E5M2(rng.Float32()*2 - 1))
		}
		return model.HostMatrix{DBits: dbits, Data: data, Rows: rows, Cols: cols}
	default:
		data := make([]byte, rows*cols*2)
		for i := 0; i < rows*cols; i++ {
			bits := uint16(ml.EncodeFP16(rng.Float32()*2 - 1))
			binary.LittleEndian.PutUint16(data[i*2:i*2+2], bits)
		}
		return model.HostMatrix{DBits: dbits, Data: data, Rows: rows, Cols: cols}
	}
}

func randomVector(rng *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

// buildFixture synthesizes a Config/HostWeights pair for the given
// architecture and size knobs, sized to satisfy model.Config.Validate.
func buildFixture(seed int64, arch model.Architecture, d, h, l, hq, hkv, dh, v, smax, dbits, kvbits int) (model.Config, model.HostWeights) {
	rng := rand.New(rand.NewSource(seed))

	cfg := model.Config{
		Arch:        arch,
		D:           d,
		H:           h,
		Dh:          dh,
		L:           l,
		Hq:          hq,
		Hkv:         hkv,
		V:           v,
		Smax:        smax,
		Dr:          dh,
		Theta:       10000,
		NormEps:     1e-5,
		EmbedScale:  1,
		WeightDBits: dbits,
		KVBits:      kvbits,
	}
	if arch == model.Mixtral {
		cfg.E = 8
		cfg.Ea = 2
	}

	hw := model.HostWeights{
		Embedding: randomMatrix(rng, dbits, v, d),
		FinalNorm: randomVector(rng, d),
		Wcls:      randomMatrix(rng, dbits, v, d),
	}

	kvDim := hkv * dh
	hw.Layers = make([]model.HostLayerWeights, l)
	for i := range hw.Layers {
		layer := model.HostLayerWeights{
			AttnNorm: randomVector(rng, d),
			FFNNorm:  randomVector(rng, d),
			Wq:       randomMatrix(rng, dbits, hq*dh, d),
			Wk:       randomMatrix(rng, dbits, kvDim, d),
			Wv:       randomMatrix(rng, dbits, kvDim, d),
			Wo:       randomMatrix(rng, dbits, d, hq*dh),
		}
		switch arch {
		case model.Phi:
			layer.W1 = randomMatrix(rng, dbits, h, d)
			layer.W2 = randomMatrix(rng, dbits, d, h)
			layer.BiasFFN1 = randomVector(rng, h)
			layer.BiasFFN2 = randomVector(rng, d)
		case model.Mixtral:
			layer.Wg = randomMatrix(rng, dbits, cfg.E, d)
			layer.Experts = make([]model.HostExpertWeights, cfg.E)
			for e := range layer.Experts {
				layer.Experts[e] = model.HostExpertWeights{
					W1: randomMatrix(rng, dbits, h, d),
					W2: randomMatrix(rng, dbits, d, h),
					W3: randomMatrix(rng, dbits, h, d),
				}
			}
		default:
			layer.W1 = randomMatrix(rng, dbits, h, d)
			layer.W2 = randomMatrix(rng, dbits, d, h)
			layer.W3 = randomMatrix(rng, dbits, h, d)
		}
		hw.Layers[i] = layer
	}

	return cfg, hw
}
