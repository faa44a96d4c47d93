package model

import "github.com/tensorcore/calmrt/ml"

// HostMatrix is a weight matrix as the external model-file parser hands it
// to prepare(): raw bytes in one of the three weight formats plus its
// dbits tag (spec.md §3, §6). Rows==0 means the matrix is absent (e.g. an
// optional W3 or Wg).
type HostMatrix struct {
	DBits      int
	Data       []byte
	Rows, Cols int
}

func (m HostMatrix) present() bool { return m.Rows > 0 }

// HostExpertWeights is one MoE expert's FFN weights (spec.md §4.4 MoE variant).
type HostExpertWeights struct {
	W1, W2, W3 HostMatrix
}

// HostLayerWeights is one decoder layer's weights as handed to prepare(),
// covering every architecture variant this spec names: the dense/GQA
// attention projections, the gated/ungated-biased/MoE FFN variants, and
// the optional biases each carries (spec.md §3).
type HostLayerWeights struct {
	AttnNorm []float32
	FFNNorm  []float32

	Wq, Wk, Wv, Wo     HostMatrix
	BiasQ, BiasK, BiasV []float32

	// Dense/gated FFN (W3 is absent for the ungated-with-bias variant; the
	// Forward Driver picks the variant from Config, not from W3).
	W1, W2, W3         HostMatrix
	BiasFFN1, BiasFFN2 []float32

	// MoE (Mixtral): Wg present makes Upload load Experts, which holds
	// per-expert W1/W2/W3; the Forward Driver picks MoE from Config.IsMoE.
	Wg      HostMatrix
	Experts []HostExpertWeights
}

// HostWeights is the full pre-populated weight-pointer table prepare()
// consumes (spec.md §6): one embedding table, per-layer entries, final
// norm and classifier.
type HostWeights struct {
	Embedding HostMatrix
	Layers    []HostLayerWeights
	FinalNorm []float32
	Wcls      HostMatrix
	ClsBias   []float32
}

// LayerWeights is the device-resident form of HostLayerWeights: raw bytes
// replaced with the concrete ml.WeightMatrix for each matrix's dbits.
type LayerWeights struct {
	AttnNorm []float32
	FFNNorm  []float32

	Wq, Wk, Wv, Wo      ml.WeightMatrix
	BiasQ, BiasK, BiasV []float32

	W1, W2, W3         ml.WeightMatrix // W3 nil for ungated-with-bias
	BiasFFN1, BiasFFN2 []float32

	Wg      ml.WeightMatrix // nil for dense/gated-only architectures
	Experts []ExpertWeights
}

// ExpertWeights is one MoE expert's device-resident FFN weights.
type ExpertWeights struct {
	W1, W2, W3 ml.WeightMatrix
}

// Weights is the full device-resident weight set for one transformer
// (spec.md §3), immutable after upload.
type Weights struct {
	Embedding ml.WeightMatrix
	Layers    []LayerWeights
	FinalNorm []float32
	Wcls      ml.WeightMatrix
	ClsBias   []float32
}

// Upload converts a HostWeights table into a device-resident Weights by
// wrapping every HostMatrix's bytes with the ml.WeightMatrix matching its
// dbits tag (spec.md §4.1: "uploads every weight block from host to
// device"). Matrices with Rows==0 stay nil, representing the absent
// optional weight.
func Upload(hw HostWeights) (Weights, error) {
	var w Weights
	var err error

	if w.Embedding, err = uploadMatrix(hw.Embedding); err != nil {
		return Weights{}, err
	}
	if w.Wcls, err = uploadMatrix(hw.Wcls); err != nil {
		return Weights{}, err
	}
	w.FinalNorm = hw.FinalNorm
	w.ClsBias = hw.ClsBias

	w.Layers = make([]LayerWeights, len(hw.Layers))
	for i, hl := range hw.Layers {
		lw := LayerWeights{
			AttnNorm: hl.AttnNorm,
			FFNNorm:  hl.FFNNorm,
			BiasQ:    hl.BiasQ,
			BiasK:    hl.BiasK,
			BiasV:    hl.BiasV,
			BiasFFN1: hl.BiasFFN1,
			BiasFFN2: hl.BiasFFN2,
		}
		if lw.Wq, err = uploadMatrix(hl.Wq); err != nil {
			return Weights{}, err
		}
		if lw.Wk, err = uploadMatrix(hl.Wk); err != nil {
			return Weights{}, err
		}
		if lw.Wv, err = uploadMatrix(hl.Wv); err != nil {
			return Weights{}, err
		}
		if lw.Wo, err = uploadMatrix(hl.Wo); err != nil {
			return Weights{}, err
		}
		if lw.W1, err = uploadMatrix(hl.W1); err != nil {
			return Weights{}, err
		}
		if lw.W2, err = uploadMatrix(hl.W2); err != nil {
			return Weights{}, err
		}
		if hl.W3.present() {
			if lw.W3, err = uploadMatrix(hl.W3); err != nil {
				return Weights{}, err
			}
		}
		if hl.Wg.present() {
			if lw.Wg, err = uploadMatrix(hl.Wg); err != nil {
				return Weights{}, err
			}
			lw.Experts = make([]ExpertWeights, len(hl.Experts))
			for j, he := range hl.Experts {
				var ew ExpertWeights
				if ew.W1, err = uploadMatrix(he.W1); err != nil {
					return Weights{}, err
				}
				if ew.W2, err = uploadMatrix(he.W2); err != nil {
					return Weights{}, err
				}
				if ew.W3, err = uploadMatrix(he.W3); err != nil {
					return Weights{}, err
				}
				lw.Experts[j] = ew
			}
		}
		w.Layers[i] = lw
	}

	return w, nil
}

func uploadMatrix(hm HostMatrix) (ml.WeightMatrix, error) {
	if !hm.present() {
		return nil, nil
	}
	return ml.NewWeightMatrix(hm.DBits, hm.Data, hm.Rows, hm.Cols)
}
