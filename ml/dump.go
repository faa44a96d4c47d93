// Debug dump helper for RunState scratch buffers, adapted from the
// teacher's tensor Dump (same threshold/edge-items/precision knobs), but
// operating on the plain []float32 scratch vectors this spec's RunState
// uses instead of a lazy tensor graph.
package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DumpOption configures DumpVector's output format.
type DumpOption func(*dumpOptions)

// DumpWithPrecision sets the number of decimal places to print.
func DumpWithPrecision(n int) DumpOption {
	return func(o *dumpOptions) { o.Precision = n }
}

// DumpWithThreshold sets the element count below which the whole vector is
// printed; above it, only the edge items are shown.
func DumpWithThreshold(n int) DumpOption {
	return func(o *dumpOptions) { o.Threshold = n }
}

// DumpWithEdgeItems sets how many leading/trailing elements are printed
// when the vector exceeds the threshold.
func DumpWithEdgeItems(n int) DumpOption {
	return func(o *dumpOptions) { o.EdgeItems = n }
}

type dumpOptions struct {
	Precision, Threshold, EdgeItems int
}

// DumpVector renders a scratch buffer as a human-readable string, eliding
// the middle when it's larger than the configured threshold.
func DumpVector(name string, v []float32, optFuncs ...DumpOption) string {
	opts := dumpOptions{Precision: 4, Threshold: 64, EdgeItems: 3}
	for _, f := range optFuncs {
		f(&opts)
	}
	if len(v) <= opts.Threshold {
		opts.EdgeItems = math.MaxInt
	}

	fmtVal := func(f float32) string {
		return strconv.FormatFloat(float64(f), 'f', opts.Precision, 32)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{", name, len(v))
	n := opts.EdgeItems
	for i, f := range v {
		if n != math.MaxInt && i == n && len(v)-n > n {
			b.WriteString(", ...")
		}
		if n != math.MaxInt && i >= n && i < len(v)-n {
			continue
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmtVal(f))
	}
	b.WriteString("}")
	return b.String()
}
