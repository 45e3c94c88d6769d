// Package store persists fit results and optimizer traces. Result records
// are YAML documents written atomically (temp file + rename) with an
// optional integrity checksum; traces are JSONL files with one row per
// statistic evaluation.
package store

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/gammafit/internal/model"
)

// StepSummary is the serialized form of a fitting step.
type StepSummary struct {
	Backend string `yaml:"backend" json:"backend"`
	Method  string `yaml:"method" json:"method"`
	Success bool   `yaml:"success" json:"success"`
	Message string `yaml:"message" json:"message"`
}

// OptimizeSummary is the serialized form of an optimization step.
type OptimizeSummary struct {
	StepSummary `yaml:",inline"`
	TotalStat   float64 `yaml:"total_stat" json:"total_stat"`
	NFev        int     `yaml:"nfev" json:"nfev"`
}

// CovarianceSummary is the serialized form of a covariance step.
type CovarianceSummary struct {
	StepSummary `yaml:",inline"`
}

// ResultRecord is the persisted form of a full fit: step summaries merged
// with the best-fit model specification.
type ResultRecord struct {
	Optimize   *OptimizeSummary   `yaml:"optimize,omitempty" json:"optimize,omitempty"`
	Covariance *CovarianceSummary `yaml:"covariance,omitempty" json:"covariance,omitempty"`
	Models     []model.Spec       `yaml:"models,omitempty" json:"models,omitempty"`

	// CovarianceMatrix is the covariance in physical units, row by row over
	// the flattened parameter positions. Entries outside the fitted set are
	// NaN, which YAML can represent but JSON cannot; JSON consumers get the
	// per-parameter errors from the model specs instead.
	CovarianceMatrix [][]float64 `yaml:"covariance_matrix,omitempty" json:"-"`

	// Checksum is the xxhash of the record without this field, present only
	// when the writer was asked for one.
	Checksum string `yaml:"checksum,omitempty" json:"checksum,omitempty"`
}

// WriteOptions controls result serialization.
type WriteOptions struct {
	// Overwrite permits replacing an existing file.
	Overwrite bool

	// Checksum adds an integrity checksum to the record.
	Checksum bool
}

// WriteResult writes the record to path atomically. Without Overwrite an
// existing file is an ExistsError.
func WriteResult(path string, record *ResultRecord, opts WriteOptions) error {
	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return &ExistsError{Path: path}
		}
	}

	record.Checksum = ""
	if opts.Checksum {
		payload, err := yaml.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to serialize result: %w", err)
		}
		record.Checksum = fmt.Sprintf("%016x", xxhash.Sum64(payload))
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	// Write to a temporary file first, then rename into place.
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp result file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename result file: %w", err)
	}

	slog.Debug("Result written", "path", path, "checksum", record.Checksum)
	return nil
}

// ReadResult reads a record back and verifies its checksum when present.
func ReadResult(path string) (*ResultRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var record ResultRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize result: %w", err)
	}

	if record.Checksum != "" {
		verify := record
		verify.Checksum = ""
		payload, err := yaml.Marshal(&verify)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize result for verification: %w", err)
		}
		if sum := fmt.Sprintf("%016x", xxhash.Sum64(payload)); sum != record.Checksum {
			return nil, &ChecksumError{Path: path, Expected: record.Checksum, Actual: sum}
		}
	}

	return &record, nil
}

// ExistsError reports a write refused because the target exists and
// overwriting was not requested.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("result file %q already exists (overwrite not requested)", e.Path)
}

// ChecksumError reports a record whose checksum does not match its content.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch in %q: recorded %s, computed %s", e.Path, e.Expected, e.Actual)
}
