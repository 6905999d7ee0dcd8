package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const defaultLogLevel = "info"

var (
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "evobench",
	Short: "Run the LDE and MODE optimization engines against reference scenarios",
	Long: `evobench drives the LDE single-objective refinement engine and the
MODE multi-objective engine against a handful of standard benchmark
functions, for smoke-testing and demonstration.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(logLevel)})
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

// parseLogLevel maps the --log-level flag to a slog.Level, falling back to
// Info for an unrecognized value rather than erroring, since this is a
// benchmarking tool, not a server that should refuse to start over a typo.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
}
