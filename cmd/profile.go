package main

import (
	"fmt"
	"log/slog"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/cwbudde/gammafit/internal/config"
)

var (
	profileParameter  string
	profileMin        float64
	profileMax        float64
	profilePoints     int
	profileReoptimize bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Scan the fit statistic along one parameter",
	Long: `Fits the model, then evaluates the statistic on a grid of values of
one parameter and plots the profile. Scan settings come from the config
file's scan block; flags override it.`,
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&configPath, "config", "", "Run configuration file (default: built-in synthetic power law)")
	profileCmd.Flags().StringVar(&profileParameter, "parameter", "", "Parameter to scan")
	profileCmd.Flags().Float64Var(&profileMin, "min", 0, "Scan range lower edge")
	profileCmd.Flags().Float64Var(&profileMax, "max", 0, "Scan range upper edge")
	profileCmd.Flags().IntVar(&profilePoints, "points", 0, "Number of scan points")
	profileCmd.Flags().BoolVar(&profileReoptimize, "reoptimize", false, "Re-fit the remaining parameters at every point")

	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	scan := cfg.Scan
	if scan == nil {
		scan = &config.ScanConfig{N: 21}
	}
	if profileParameter != "" {
		scan.Parameter = profileParameter
	}
	if cmd.Flags().Changed("min") {
		scan.Min = profileMin
	}
	if cmd.Flags().Changed("max") {
		scan.Max = profileMax
	}
	if profilePoints > 0 {
		scan.N = profilePoints
	}
	if cmd.Flags().Changed("reoptimize") {
		scan.Reoptimize = profileReoptimize
	}
	if scan.Parameter == "" {
		return fmt.Errorf("no scan parameter: set --parameter or a scan block in the config")
	}
	if scan.N <= 0 {
		scan.N = 21
	}

	collection, err := cfg.BuildCollection()
	if err != nil {
		return fmt.Errorf("failed to build datasets: %w", err)
	}

	par, err := collection.Parameters().Resolve(scan.Parameter)
	if err != nil {
		return err
	}

	engine := cfg.BuildFit()

	slog.Info("Starting fit", "backend", cfg.Backend)
	fitResult, err := engine.Run(collection)
	if err != nil {
		return err
	}
	slog.Info("Fit complete", "success", fitResult.Success(), "total_stat", fitResult.TotalStat())

	// Default scan range: best fit plus/minus three uncertainties, falling
	// back to a relative window when no uncertainty is available.
	lo, hi := scan.Min, scan.Max
	if lo == hi {
		width := 3 * par.Uncertainty()
		if width == 0 {
			width = 0.2 * par.Value()
		}
		lo, hi = par.Value()-width, par.Value()+width
	}
	par.SetScanRange(lo, hi, scan.N)

	profile, err := engine.StatProfile(collection, par, scan.Reoptimize)
	if err != nil {
		return err
	}

	plot := asciigraph.Plot(profile.Stats,
		asciigraph.Height(12),
		asciigraph.Width(60),
		asciigraph.Caption(fmt.Sprintf("%s in [%g, %g]", profile.ParameterName, lo, hi)),
	)
	fmt.Println(plot)

	return nil
}
