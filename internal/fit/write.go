package fit

import (
	"github.com/cwbudde/gammafit/internal/store"
)

// WriteOptions controls FitResult serialization.
type WriteOptions struct {
	// Overwrite permits replacing an existing file.
	Overwrite bool

	// WriteCovariance includes the expanded covariance matrix.
	WriteCovariance bool

	// Checksum adds an integrity checksum to the record.
	Checksum bool
}

// Write serializes the optimize and covariance summaries merged with the
// best-fit model specification to a YAML file.
func (r *FitResult) Write(path string, opts WriteOptions) error {
	record := r.Record(opts.WriteCovariance)
	return store.WriteResult(path, record, store.WriteOptions{
		Overwrite: opts.Overwrite,
		Checksum:  opts.Checksum,
	})
}

// Record builds the serializable form of the result.
func (r *FitResult) Record(withCovariance bool) *store.ResultRecord {
	record := &store.ResultRecord{}

	if r.optimize != nil {
		record.Optimize = &store.OptimizeSummary{
			StepSummary: store.StepSummary{
				Backend: r.optimize.Backend(),
				Method:  r.optimize.Method(),
				Success: r.optimize.Success(),
				Message: r.optimize.Message(),
			},
			TotalStat: r.optimize.TotalStat(),
			NFev:      r.optimize.NFev(),
		}
		record.Models = r.optimize.Models().Specs()
	}

	if r.covariance != nil {
		record.Covariance = &store.CovarianceSummary{
			StepSummary: store.StepSummary{
				Backend: r.covariance.Backend(),
				Method:  r.covariance.Method(),
				Success: r.covariance.Success(),
				Message: r.covariance.Message(),
			},
		}
		if withCovariance && r.covariance.matrix != nil {
			rows, cols := r.covariance.matrix.Dims()
			matrix := make([][]float64, rows)
			for i := 0; i < rows; i++ {
				row := make([]float64, cols)
				for j := 0; j < cols; j++ {
					row[j] = r.covariance.matrix.At(i, j)
				}
				matrix[i] = row
			}
			record.CovarianceMatrix = matrix
		}
	}

	return record
}
