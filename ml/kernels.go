// Kernel implementations: elementary operators over a single token's worth
// of data (spec.md §4.2). Row-level parallelism across goroutines is
// grounded on other_examples/5de56700_ariannamethod-yent__yent-go-quant.go.go's
// MatMulQ4_0 (numWorkers = runtime.NumCPU(), row-range chunking, small-matrix
// single-thread fallback); within a row, lanes are simulated by striding the
// inner dimension in WarpWidth steps and warp-summing the lane partials,
// matching spec.md's "one warp cooperates on a single row, each lane
// handling a stride of the inner dimension, followed by a warp-sum
// reduction."
package ml

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/tensorcore/calmrt/calmerr"
)

var numWorkers = runtime.NumCPU()

// minRowsForParallel mirrors the teacher example's `rows < numWorkers*4`
// single-thread fallback: below this many rows, goroutine overhead would
// dominate the work.
const minRowsForParallel = 4

// EmbeddingGather implements spec.md §4.2's embedding gather: o[i] =
// dequant(E[token*D+i]) * embedScale.
func EmbeddingGather(out []float32, table WeightMatrix, token int, embedScale float32) {
	d := table.Cols()
	for i := 0; i < d; i++ {
		out[i] = table.Element(token, i) * embedScale
	}
}

// RowDot computes one warp's worth of work: the dot product of weight row
// `row` against x, with per-element dequantization inlined via
// w.Element, lanes striding the column dimension and a final warp-sum
// reduction over the lane partials. Exported for the fused QKV+RoPE kernel
// (spec.md §4.3), which needs single-row matmuls rather than MatVec's
// whole-matrix sweep.
func RowDot(w WeightMatrix, row int, x []float32) float32 {
	cols := w.Cols()
	var lanes [WarpWidth]float32
	for lane := 0; lane < WarpWidth && lane < cols; lane++ {
		var sum float32
		for j := lane; j < cols; j += WarpWidth {
			sum += w.Element(row, j) * x[j]
		}
		lanes[lane] = sum
	}
	var total float32
	for _, p := range lanes {
		total += p
	}
	return total
}

// MatVecOptions configures the optional bias/residual behavior of MatVec
// (spec.md §4.2: "Optional bias addition and optional residual add (y[i]
// += ... instead of y[i] = ...)").
type MatVecOptions struct {
	Bias     []float32
	Residual bool
}

// MatVec computes y = W*x (spec.md §4.2's warp-parallel matrix-vector
// multiply), distributing rows across goroutines the way the teacher
// example distributes Q4_0 rows across workers.
func MatVec(out []float32, w WeightMatrix, x []float32, opts MatVecOptions) {
	rows, cols := w.Rows(), w.Cols()
	if cols != len(x) {
		calmerr.Fatal(calmerr.NewDeviceError("MatVec", errShapeMismatch(cols, len(x))))
		return
	}
	if rows != len(out) {
		calmerr.Fatal(calmerr.NewDeviceError("MatVec", errShapeMismatch(rows, len(out))))
		return
	}

	apply := func(i int, sum float32) {
		if opts.Bias != nil {
			sum += opts.Bias[i]
		}
		if opts.Residual {
			out[i] += sum
		} else {
			out[i] = sum
		}
	}

	if rows < numWorkers*minRowsForParallel {
		for i := 0; i < rows; i++ {
			apply(i, RowDot(w, i, x))
		}
		return
	}

	var wg sync.WaitGroup
	chunk := (rows + numWorkers - 1) / numWorkers
	for start := 0; start < rows; start += chunk {
		end := min(start+chunk, rows)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				apply(i, RowDot(w, i, x))
			}
		}(start, end)
	}
	wg.Wait()
}

func errShapeMismatch(want, got int) error {
	return fmt.Errorf("shape mismatch: want %d, got %d", want, got)
}

// RMSNorm computes o[j] = x[j]*w[j]*s where s = 1/sqrt(mean(x^2) + eps),
// spec.md §4.2. The sum-of-squares reduction is the block-parallel
// reduction the spec names; here it is a single accumulation since a
// "block" in this simulation is one goroutine's worth of a token's vector.
func RMSNorm(out []float32, x []float32, w []float32, eps float32) {
	n := len(x)
	var ss float32
	for j := 0; j < n; j++ {
		ss += x[j] * x[j]
	}
	mean := ss / float32(n)
	s := float32(1.0 / math.Sqrt(float64(mean)+float64(eps)))
	for j := 0; j < n; j++ {
		out[j] = x[j] * w[j] * s
	}
}

// LayerNorm computes mean/variance with the shifted-estimator trick
// (subtracting x[0]+acc[0] before summing squares, spec.md §4.2) for
// numerical stability, optionally folding an accumulator into x first —
// this is how the Phi parallel-attention/MLP accumulator path
// (spec.md §4.4) re-enters the next layer's norm.
func LayerNorm(out []float32, x []float32, acc []float32, w []float32, eps float32) {
	n := len(x)
	if acc != nil {
		for j := 0; j < n; j++ {
			x[j] += acc[j]
		}
	}

	shift := x[0]
	var sum, sumShiftedSq float32
	for j := 0; j < n; j++ {
		sum += x[j]
		d := x[j] - shift
		sumShiftedSq += d * d
	}
	mean := sum / float32(n)
	// Var(x) = E[(x-shift)^2] - (E[x]-shift)^2, the shifted-estimator form.
	meanShift := mean - shift
	variance := sumShiftedSq/float32(n) - meanShift*meanShift
	if variance < 0 {
		variance = 0
	}

	inv := float32(1.0 / math.Sqrt(float64(variance)+float64(eps)))
	for j := 0; j < n; j++ {
		out[j] = (x[j] - mean) * w[j] * inv
	}
}

// SiLU computes x/(1+e^-x) elementwise, in place.
func SiLU(x []float32) {
	for i, v := range x {
		x[i] = v / (1 + float32(math.Exp(float64(-v))))
	}
}

// GELU computes the tanh approximation 0.5*x*(1+tanh(sqrt(2/pi)*(x+0.044715*x^3))).
func GELU(x []float32) {
	const c = 0.7978845608028654 // sqrt(2/pi)
	for i, v := range x {
		inner := c * (v + 0.044715*v*v*v)
		x[i] = 0.5 * v * (1 + float32(math.Tanh(float64(inner))))
	}
}

// Softmax subtracts the block-max and exponentiates in place; callers
// normalize by the sum themselves when needed (spec.md §4.2/§4.3: "no
// normalization here — folded into the mix step").
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	for i, v := range x {
		x[i] = float32(math.Exp(float64(v - max)))
	}
}
