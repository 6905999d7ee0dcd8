package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	evocore "github.com/cwbudde/evocore"
)

var (
	ldeScenario string
	ldeSeed     int64
	ldeMaxEvals int
)

var ldeCmd = &cobra.Command{
	Use:   "lde",
	Short: "Run the LDE engine against a reference scenario",
	RunE:  runLDE,
}

func init() {
	ldeCmd.Flags().StringVar(&ldeScenario, "scenario", "sphere", "Scenario: sphere, rosenbrock")
	ldeCmd.Flags().Int64Var(&ldeSeed, "seed", 42, "Random seed")
	ldeCmd.Flags().IntVar(&ldeMaxEvals, "max-evals", 20000, "Evaluation budget")
	rootCmd.AddCommand(ldeCmd)
}

func runLDE(cmd *cobra.Command, args []string) error {
	var cfg evocore.LDEConfig
	switch ldeScenario {
	case "sphere":
		cfg = sphereScenario(ldeSeed, ldeMaxEvals)
	case "rosenbrock":
		cfg = rosenbrockScenario(ldeSeed, ldeMaxEvals)
	default:
		return fmt.Errorf("unknown scenario: %s", ldeScenario)
	}

	slog.Info("starting LDE run", "scenario", ldeScenario, "seed", ldeSeed, "maxEvals", ldeMaxEvals)
	start := time.Now()
	res, err := evocore.OptimizeLDE(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("LDE run failed: %w", err)
	}
	elapsed := time.Since(start)

	slog.Info("LDE run complete",
		"elapsed", elapsed,
		"bestY", res.BestY,
		"evaluations", res.Evaluations,
		"iterations", res.Iterations,
	)
	fmt.Printf("bestX=%v bestY=%g evaluations=%d\n", res.BestX, res.BestY, res.Evaluations)
	return nil
}

func sphereScenario(seed int64, maxEvals int) evocore.LDEConfig {
	dim := 5
	init := make([]float64, dim)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range init {
		init[i] = 2.0
		lower[i] = -5.0
		upper[i] = 5.0
	}
	return evocore.LDEConfig{
		Objective: func(x []float64) float64 {
			s := 0.0
			for _, v := range x {
				s += v * v
			}
			return s
		},
		Dim:            dim,
		Init:           init,
		Lower:          lower,
		Upper:          upper,
		Seed:           seed,
		MaxEvaluations: maxEvals,
	}
}

func rosenbrockScenario(seed int64, maxEvals int) evocore.LDEConfig {
	return evocore.LDEConfig{
		Objective: func(x []float64) float64 {
			a := 1 - x[0]
			b := x[1] - x[0]*x[0]
			return a*a + 100*b*b
		},
		Dim:            2,
		Init:           []float64{-1, -1},
		Lower:          []float64{-5, -5},
		Upper:          []float64{5, 5},
		Seed:           seed,
		MaxEvaluations: maxEvals,
	}
}
