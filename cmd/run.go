package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gammafit/internal/config"
	"github.com/cwbudde/gammafit/internal/fit"
	"github.com/cwbudde/gammafit/internal/store"
)

var (
	configPath string
	outPath    string
	tracePath  string
	runBackend string
	overwrite  bool
	checksum   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single fit",
	Long:  `Fits the configured model to the configured data and writes the result record.`,
	RunE:  runFit,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Run configuration file (default: built-in synthetic power law)")
	runCmd.Flags().StringVar(&outPath, "out", "result.yaml", "Result output path")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "Optimizer trace output path (JSONL)")
	runCmd.Flags().StringVar(&runBackend, "backend", "", "Backend override (quadratic, simplex, scalar)")
	runCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing result file")
	runCmd.Flags().BoolVar(&checksum, "checksum", false, "Add an integrity checksum to the result")

	rootCmd.AddCommand(runCmd)
}

func loadRunConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	if runBackend != "" {
		cfg.Backend = runBackend
	}
	if tracePath != "" {
		cfg.StoreTrace = true
	}

	slog.Info("Starting fit", "backend", cfg.Backend, "stat", cfg.Stat)

	collection, err := cfg.BuildCollection()
	if err != nil {
		return fmt.Errorf("failed to build datasets: %w", err)
	}

	start := time.Now()
	result, err := cfg.BuildFit().Run(collection)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	slog.Info("Fit complete",
		"elapsed", elapsed,
		"success", result.Success(),
		"total_stat", result.TotalStat(),
		"nfev", result.NFev(),
	)

	if err := result.Write(outPath, fit.WriteOptions{
		Overwrite:       overwrite,
		WriteCovariance: true,
		Checksum:        checksum,
	}); err != nil {
		return err
	}

	if tracePath != "" {
		trace := result.OptimizeResult().Trace()
		if trace == nil {
			return fmt.Errorf("backend %q produced no trace", result.Backend())
		}
		if err := store.WriteTrace(tracePath, trace); err != nil {
			return err
		}
	}

	fmt.Printf("Wrote %s (stat: %.2f, %d evaluations, success: %t)\n",
		outPath, result.TotalStat(), result.NFev(), result.Success())

	return nil
}
