// Command calmrt-bench drives prepare()/forward() over a synthetic
// transformer and prints timing and a logit checksum, the way the
// teacher's cmd/vision-benchmark exercises its own subsystem in
// isolation. It never tokenizes, samples, or loads a real model file —
// those are explicit out-of-scope collaborators (spec.md §1).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tensorcore/calmrt/device"
	"github.com/tensorcore/calmrt/forward"
	"github.com/tensorcore/calmrt/ml"
	"github.com/tensorcore/calmrt/model"
)

var (
	archName string
	steps    int
	seed     int64
	dbits    int
	kvbits   int
	coop     bool
	dump     bool
)

var rootCmd = &cobra.Command{
	Use:   "calmrt-bench",
	Short: "Exercise the calmrt forward pass over a synthetic transformer",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Prepare a synthetic model and run a sequence of forward calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		arch, err := parseArch(archName)
		if err != nil {
			return err
		}

		if coop {
			os.Setenv("CALM_COOP", "1")
		}

		const d, h, l, hq, hkv, dh, v, smax = 256, 512, 4, 8, 2, 32, 256, 64
		cfg, hw := buildFixture(seed, arch, d, h, l, hq, hkv, dh, v, smax, dbits, kvbits)

		t, err := device.Prepare(cfg, hw)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		slog.Info("prepared transformer", "id", t.ID, "arch", arch, "memory_bytes", t.Memory.Total())

		start := time.Now()
		var checksum float32
		for pos := 0; pos < steps; pos++ {
			logits := forward.Forward(t, pos%cfg.V, pos, 0)
			for _, x := range logits {
				checksum += x
			}
			if dump {
				fmt.Println(ml.DumpVector(fmt.Sprintf("pos%d.x", pos), t.State.X))
				fmt.Println(ml.DumpVector(fmt.Sprintf("pos%d.logits", pos), t.State.Logits, ml.DumpWithThreshold(16), ml.DumpWithEdgeItems(4)))
			}
		}
		elapsed := time.Since(start)

		fmt.Printf("steps=%d elapsed=%s per_step=%s checksum=%g\n",
			steps, elapsed, elapsed/time.Duration(steps), checksum)
		return nil
	},
}

func parseArch(name string) (model.Architecture, error) {
	switch name {
	case "llama":
		return model.LlamaLike, nil
	case "qwen":
		return model.Qwen, nil
	case "phi":
		return model.Phi, nil
	case "mixtral":
		return model.Mixtral, nil
	case "olmo":
		return model.Olmo, nil
	case "gemma":
		return model.Gemma, nil
	default:
		return 0, fmt.Errorf("unknown architecture %q", name)
	}
}

func init() {
	runCmd.Flags().StringVar(&archName, "arch", "llama", "architecture: llama|qwen|phi|mixtral|olmo|gemma")
	runCmd.Flags().IntVar(&steps, "steps", 8, "number of sequential forward calls")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "fixture RNG seed")
	runCmd.Flags().IntVar(&dbits, "dbits", 16, "weight precision: 4|8|16")
	runCmd.Flags().IntVar(&kvbits, "kvbits", 16, "KV cache precision: 8|16")
	runCmd.Flags().BoolVar(&coop, "coop", false, "use the cooperative fused path")
	runCmd.Flags().BoolVar(&dump, "dump", false, "print RunState.X/Logits after every step via ml.DumpVector")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("calmrt-bench failed", "error", err)
		os.Exit(1)
	}
}
