package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/spf13/cobra"

	evocore "github.com/cwbudde/evocore"
)

var (
	modeScenario string
	modeSeed     int64
	modeMaxEvals int
	modePopSize  int
	modeWorkers  int
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Run the MODE engine against a reference scenario",
	RunE:  runMODE,
}

func init() {
	modeCmd.Flags().StringVar(&modeScenario, "scenario", "zdt1", "Scenario: zdt1, constrained")
	modeCmd.Flags().Int64Var(&modeSeed, "seed", 21, "Random seed")
	modeCmd.Flags().IntVar(&modeMaxEvals, "max-evals", 8000, "Evaluation budget")
	modeCmd.Flags().IntVar(&modePopSize, "pop", 40, "Population size")
	modeCmd.Flags().IntVar(&modeWorkers, "workers", 0, "Parallel workers (0 or 1 selects the serial driver)")
	rootCmd.AddCommand(modeCmd)
}

func runMODE(cmd *cobra.Command, args []string) error {
	var cfg evocore.MODEConfig
	switch modeScenario {
	case "zdt1":
		cfg = zdt1Scenario(modeSeed, modePopSize, modeMaxEvals)
	case "constrained":
		cfg = constrainedScenario(modeSeed, modePopSize, modeMaxEvals)
	default:
		return fmt.Errorf("unknown scenario: %s", modeScenario)
	}
	cfg.Workers = modeWorkers

	slog.Info("starting MODE run", "scenario", modeScenario, "seed", modeSeed, "pop", modePopSize, "workers", modeWorkers)
	start := time.Now()
	res, err := evocore.OptimizeMODE(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("MODE run failed: %w", err)
	}
	elapsed := time.Since(start)

	slog.Info("MODE run complete",
		"elapsed", elapsed,
		"evaluations", res.Evaluations,
		"iterations", res.Iterations,
	)
	for i := 0; i < cfg.PopSize && i < len(res.Y); i++ {
		fmt.Printf("survivor[%d] y=%v\n", i, res.Y[i])
	}
	return nil
}

func zdt1Scenario(seed int64, popSize, maxEvals int) evocore.MODEConfig {
	dim := 6
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range upper {
		upper[i] = 1.0
	}
	return evocore.MODEConfig{
		Objective: func(x []float64) ([]float64, []float64) {
			f1 := x[0]
			g := 1.0
			for _, v := range x[1:] {
				g += 9.0 * v / float64(len(x)-1)
			}
			f2 := g * (1 - math.Sqrt(f1/g))
			return []float64{f1, f2}, nil
		},
		Dim:            dim,
		Nobj:           2,
		Lower:          lower,
		Upper:          upper,
		Seed:           seed,
		PopSize:        popSize,
		MaxEvaluations: maxEvals,
		NSGAUpdate:     true,
	}
}

func constrainedScenario(seed int64, popSize, maxEvals int) evocore.MODEConfig {
	dim := 3
	lower := []float64{-5, -5, -5}
	upper := []float64{5, 5, 5}
	return evocore.MODEConfig{
		Objective: func(x []float64) ([]float64, []float64) {
			s := 0.0
			for _, v := range x {
				s += v * v
			}
			con := 1.0 - (x[0] + x[1] + x[2])
			return []float64{s}, []float64{con}
		},
		Dim:            dim,
		Nobj:           1,
		Ncon:           1,
		Lower:          lower,
		Upper:          upper,
		Seed:           seed,
		PopSize:        popSize,
		MaxEvaluations: maxEvals,
	}
}
