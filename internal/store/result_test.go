package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/gammafit/internal/model"
)

func sampleRecord() *ResultRecord {
	return &ResultRecord{
		Optimize: &OptimizeSummary{
			StepSummary: StepSummary{
				Backend: "quadratic",
				Method:  "bfgs",
				Success: true,
				Message: "converged",
			},
			TotalStat: 42.5,
			NFev:      120,
		},
		Covariance: &CovarianceSummary{
			StepSummary: StepSummary{
				Backend: "quadratic",
				Method:  "hesse",
				Success: true,
				Message: "covariance estimated from numerical hessian",
			},
		},
		Models: []model.Spec{
			{
				Name: "src",
				Type: "powerlaw",
				Parameters: []model.ParameterSpec{
					{Name: "amplitude", Value: 3e-12, Error: 4e-13},
					{Name: "index", Value: 2.3, Error: 0.1},
					{Name: "reference", Value: 1.0, Frozen: true},
				},
			},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.yaml")

	require.NoError(t, WriteResult(path, sampleRecord(), WriteOptions{}))

	got, err := ReadResult(path)
	require.NoError(t, err)

	assert.Equal(t, "quadratic", got.Optimize.Backend)
	assert.Equal(t, 42.5, got.Optimize.TotalStat)
	assert.Equal(t, 120, got.Optimize.NFev)
	assert.Equal(t, "hesse", got.Covariance.Method)
	require.Len(t, got.Models, 1)
	assert.Equal(t, 2.3, got.Models[0].Parameters[1].Value)
	assert.Empty(t, got.Checksum)
}

func TestWriteRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.yaml")

	require.NoError(t, WriteResult(path, sampleRecord(), WriteOptions{}))

	err := WriteResult(path, sampleRecord(), WriteOptions{})
	require.Error(t, err)
	var exists *ExistsError
	require.True(t, errors.As(err, &exists))
	assert.Equal(t, path, exists.Path)

	require.NoError(t, WriteResult(path, sampleRecord(), WriteOptions{Overwrite: true}))
}

func TestChecksumRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.yaml")

	require.NoError(t, WriteResult(path, sampleRecord(), WriteOptions{Checksum: true}))

	got, err := ReadResult(path)
	require.NoError(t, err)
	assert.Len(t, got.Checksum, 16)
}

func TestChecksumDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.yaml")

	require.NoError(t, WriteResult(path, sampleRecord(), WriteOptions{Checksum: true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "42.5", "13.5", 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0644))

	_, err = ReadResult(path)
	require.Error(t, err)
	var mismatch *ChecksumError
	require.True(t, errors.As(err, &mismatch))
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.yaml")

	require.NoError(t, WriteResult(path, sampleRecord(), WriteOptions{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "result.yaml", entries[0].Name())
}
