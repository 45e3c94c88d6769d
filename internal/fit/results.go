package fit

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/gammafit/internal/backend"
	"github.com/cwbudde/gammafit/internal/model"
	"github.com/cwbudde/gammafit/internal/param"
)

// stepResult carries the fields every fitting step reports.
type stepResult struct {
	backend string
	method  string
	success bool
	message string
}

// Backend returns the backend that ran the step.
func (r *stepResult) Backend() string { return r.backend }

// Method returns the algorithm that ran within the backend.
func (r *stepResult) Method() string { return r.method }

// Success reports whether the backend considered the step successful.
func (r *stepResult) Success() bool { return r.success }

// Message returns the backend status message.
func (r *stepResult) Message() string { return r.message }

func (r *stepResult) describe(kind string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", kind)
	fmt.Fprintf(&b, "\tbackend    : %s\n", r.backend)
	fmt.Fprintf(&b, "\tmethod     : %s\n", r.method)
	fmt.Fprintf(&b, "\tsuccess    : %t\n", r.success)
	fmt.Fprintf(&b, "\tmessage    : %s\n", r.message)
	return b.String()
}

// OptimizeResult is the immutable snapshot of an optimization step. The
// models it holds are a deep copy taken at completion: later mutation of the
// live parameters does not affect it.
type OptimizeResult struct {
	stepResult

	models    *model.Models
	totalStat float64
	nfev      int
	trace     *backend.Trace
	state     backend.State
}

// Models returns the best-fit model snapshot.
func (r *OptimizeResult) Models() *model.Models { return r.models }

// Parameters returns the parameters of the best-fit snapshot.
func (r *OptimizeResult) Parameters() *param.Set { return r.models.Parameters() }

// TotalStat returns the statistic value at the minimum.
func (r *OptimizeResult) TotalStat() float64 { return r.totalStat }

// NFev returns the number of statistic evaluations.
func (r *OptimizeResult) NFev() int { return r.nfev }

// Trace returns the optimizer trajectory, nil unless trace storage was on.
func (r *OptimizeResult) Trace() *backend.Trace { return r.trace }

// State returns the opaque backend-native handle, nil for backends without
// one.
func (r *OptimizeResult) State() backend.State { return r.state }

func (r *OptimizeResult) String() string {
	s := r.describe("OptimizeResult")
	s += fmt.Sprintf("\tnfev       : %d\n", r.nfev)
	s += fmt.Sprintf("\ttotal stat : %.2f\n", r.totalStat)
	return s
}

// CovarianceResult is the result of a covariance step. The matrix is in
// physical units over the full parameter list, nil when the step failed.
type CovarianceResult struct {
	stepResult

	matrix *mat.Dense
}

// Matrix returns the covariance matrix in physical units.
func (r *CovarianceResult) Matrix() *mat.Dense { return r.matrix }

func (r *CovarianceResult) String() string {
	return r.describe("CovarianceResult")
}

// ConfidenceResult is an asymmetric confidence interval in physical units.
type ConfidenceResult struct {
	stepResult

	// ErrP and ErrN are the positive and negative 1-sigma (or requested
	// sigma) distances from the best-fit value, both non-negative.
	ErrP float64
	ErrN float64

	// NFev is the number of statistic evaluations spent on the search.
	NFev int
}

// ProfileResult holds a 1D statistic scan. Stats[i] is the statistic at
// Values[i]; the order is the scan configuration order. Results is populated
// only for reoptimizing scans.
type ProfileResult struct {
	ParameterName string
	Values        []float64
	Stats         []float64
	Results       []*OptimizeResult
}

// SurfaceResult holds a 2D statistic scan. Stats is row-major with shape
// (len(XValues), len(YValues)): Stats[i][j] is the statistic at
// (XValues[i], YValues[j]).
type SurfaceResult struct {
	XName   string
	YName   string
	XValues []float64
	YValues []float64
	Stats   [][]float64
	Results [][]*OptimizeResult
}

// ContourResult is a closed confidence polygon in physical units.
type ContourResult struct {
	XName   string
	YName   string
	X       []float64
	Y       []float64
	Success bool
	Message string
}

// FitResult composes the optimize and covariance steps of a full fit run.
type FitResult struct {
	optimize   *OptimizeResult
	covariance *CovarianceResult
}

// OptimizeResult returns the optimization step result.
func (r *FitResult) OptimizeResult() *OptimizeResult { return r.optimize }

// CovarianceResult returns the covariance step result, nil when the backend
// did not support covariance estimation.
func (r *FitResult) CovarianceResult() *CovarianceResult { return r.covariance }

// Models returns the best-fit model snapshot of the optimization step.
func (r *FitResult) Models() *model.Models { return r.optimize.Models() }

// Parameters returns the best-fit parameters of the optimization step.
func (r *FitResult) Parameters() *param.Set { return r.optimize.Parameters() }

// TotalStat returns the statistic value at the minimum.
func (r *FitResult) TotalStat() float64 { return r.optimize.TotalStat() }

// NFev returns the evaluation count of the optimization step.
func (r *FitResult) NFev() int { return r.optimize.NFev() }

// Backend returns the backend of the optimization step.
func (r *FitResult) Backend() string { return r.optimize.Backend() }

// Method returns the method of the optimization step.
func (r *FitResult) Method() string { return r.optimize.Method() }

// Message returns the status message of the optimization step.
func (r *FitResult) Message() string { return r.optimize.Message() }

// Success is the overall flag: the AND of both steps when covariance was
// computed, the optimize flag alone otherwise.
func (r *FitResult) Success() bool {
	success := r.optimize.Success()
	if r.covariance != nil {
		success = success && r.covariance.Success()
	}
	return success
}

func (r *FitResult) String() string {
	var b strings.Builder
	if r.optimize != nil {
		b.WriteString(r.optimize.String())
	}
	if r.covariance != nil {
		b.WriteString(r.covariance.String())
	}
	return b.String()
}
