// Package config defines the YAML run specification shared by the CLI and
// the job server: which backend to fit with, the model to fit, and the data
// to fit it against (inline counts or a synthetic simulation).
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/gammafit/internal/backend"
	"github.com/cwbudde/gammafit/internal/dataset"
	"github.com/cwbudde/gammafit/internal/fit"
	"github.com/cwbudde/gammafit/internal/model"
)

const (
	DefaultBackend  = backend.Quadratic
	DefaultStat     = "cash"
	DefaultExposure = 1e12
	DefaultBins     = 30
	DefaultEmin     = 0.1
	DefaultEmax     = 10.0
	DefaultSeed     = 42
)

// Config is a full fit run specification. The same structure serves the
// YAML config files of the CLI and the JSON job payloads of the server.
type Config struct {
	Backend    string  `yaml:"backend" json:"backend"`
	Method     string  `yaml:"method,omitempty" json:"method,omitempty"`
	StoreTrace bool    `yaml:"store_trace,omitempty" json:"storeTrace,omitempty"`
	MaxEvals   int     `yaml:"max_evals,omitempty" json:"maxEvals,omitempty"`
	Tolerance  float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	PopSize    int     `yaml:"pop_size,omitempty" json:"popSize,omitempty"`
	Seed       int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
	GridBins   int     `yaml:"grid_bins,omitempty" json:"gridBins,omitempty"`

	Stat     string  `yaml:"stat" json:"stat"`
	Exposure float64 `yaml:"exposure" json:"exposure"`

	Models []model.Spec `yaml:"models" json:"models"`
	Data   DataConfig   `yaml:"data" json:"data"`
	Scan   *ScanConfig  `yaml:"scan,omitempty" json:"scan,omitempty"`
}

// DataConfig selects the counts data: inline bins or a synthetic simulation
// drawn from the configured model.
type DataConfig struct {
	Energy []float64        `yaml:"energy,omitempty" json:"energy,omitempty"`
	Counts []float64        `yaml:"counts,omitempty" json:"counts,omitempty"`
	Synth  *SyntheticConfig `yaml:"synthetic,omitempty" json:"synthetic,omitempty"`
}

// SyntheticConfig configures Poisson-simulated counts on a log energy grid.
type SyntheticConfig struct {
	Seed int64   `yaml:"seed" json:"seed"`
	Bins int     `yaml:"bins" json:"bins"`
	Emin float64 `yaml:"emin" json:"emin"`
	Emax float64 `yaml:"emax" json:"emax"`
}

// ScanConfig configures the scan range of one parameter for profiling.
type ScanConfig struct {
	Parameter  string  `yaml:"parameter" json:"parameter"`
	Min        float64 `yaml:"min" json:"min"`
	Max        float64 `yaml:"max" json:"max"`
	N          int     `yaml:"n" json:"n"`
	Reoptimize bool    `yaml:"reoptimize,omitempty" json:"reoptimize,omitempty"`
}

// DefaultConfig returns a runnable configuration: a power law fitted to
// synthetic counts with the quadratic backend.
func DefaultConfig() *Config {
	return &Config{
		Backend:  DefaultBackend,
		Stat:     DefaultStat,
		Exposure: DefaultExposure,
		Models: []model.Spec{
			{
				Name: "source",
				Type: "powerlaw",
				Parameters: []model.ParameterSpec{
					{Name: "amplitude", Value: 1e-11},
					{Name: "index", Value: 2.3},
					{Name: "reference", Value: 1.0, Frozen: true},
				},
			},
		},
		Data: DataConfig{
			Synth: &SyntheticConfig{
				Seed: DefaultSeed,
				Bins: DefaultBins,
				Emin: DefaultEmin,
				Emax: DefaultEmax,
			},
		},
	}
}

// Load reads a configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// Inline data in the file displaces the default synthetic block, unless
	// the file spells out a synthetic block of its own.
	if len(cfg.Data.Energy) > 0 || len(cfg.Data.Counts) > 0 {
		var probe struct {
			Data struct {
				Synthetic *SyntheticConfig `yaml:"synthetic"`
			} `yaml:"data"`
		}
		if err := yaml.Unmarshal(data, &probe); err == nil && probe.Data.Synthetic == nil {
			cfg.Data.Synth = nil
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("config: at least one model is required")
	}
	if c.Stat != string(dataset.Cash) && c.Stat != string(dataset.Chi2) {
		return fmt.Errorf("config: unknown stat %q", c.Stat)
	}
	if c.Exposure <= 0 {
		return fmt.Errorf("config: exposure must be positive")
	}
	inline := len(c.Data.Energy) > 0 || len(c.Data.Counts) > 0
	if inline && c.Data.Synth != nil {
		return fmt.Errorf("config: inline data and synthetic data are mutually exclusive")
	}
	if inline && len(c.Data.Energy) != len(c.Data.Counts) {
		return fmt.Errorf("config: %d energy bins but %d counts", len(c.Data.Energy), len(c.Data.Counts))
	}
	if !inline && c.Data.Synth == nil {
		return fmt.Errorf("config: either inline data or a synthetic block is required")
	}
	return nil
}

// BuildCollection constructs the dataset collection described by the
// configuration. Synthetic data is simulated from the configured model
// before the models can drift during fitting.
func (c *Config) BuildCollection() (*dataset.Collection, error) {
	models := model.NewModels()
	for _, spec := range c.Models {
		md, err := model.FromSpec(spec)
		if err != nil {
			return nil, err
		}
		models.Add(md)
	}

	energy := c.Data.Energy
	counts := c.Data.Counts
	if c.Data.Synth != nil {
		synth := c.Data.Synth
		bins := synth.Bins
		if bins <= 0 {
			bins = DefaultBins
		}
		energy = logspace(synth.Emin, synth.Emax, bins)
		counts = make([]float64, bins)
	}

	ds, err := dataset.NewSpectrumDataset("spectrum", energy, counts, c.Exposure, dataset.Statistic(c.Stat), models)
	if err != nil {
		return nil, err
	}
	if c.Data.Synth != nil {
		ds.Simulate(c.Data.Synth.Seed)
	}

	return dataset.NewCollection(ds), nil
}

// BuildFit constructs the fit engine described by the configuration.
func (c *Config) BuildFit() *fit.Fit {
	return fit.New(
		fit.WithBackend(c.Backend),
		fit.WithStoreTrace(c.StoreTrace),
		fit.WithOptimizeConfig(fit.OptimizeConfig{
			OptimizeOptions: backend.OptimizeOptions{
				Method:    c.Method,
				MaxEvals:  c.MaxEvals,
				Tolerance: c.Tolerance,
				PopSize:   c.PopSize,
				Seed:      c.Seed,
				GridBins:  c.GridBins,
			},
		}),
	)
}

// logspace returns n logarithmically spaced points over [lo, hi].
func logspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	llo, lhi := math.Log10(lo), math.Log10(hi)
	for i := range out {
		out[i] = math.Pow(10, llo+float64(i)*(lhi-llo)/float64(n-1))
	}
	return out
}
