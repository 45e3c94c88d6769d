// Package backend implements the optimizer backends behind the fit engine.
//
// Every backend operates on the dimensionless factor vector of the unique
// free parameters and calls back into the dataset statistic through a
// StatFunc. Backends differ in algorithm but honor an identical contract so
// the orchestrator can swap them without caller changes. Optimization
// failures are soft: they are reported through the Success flag and Message
// of the output, never as Go errors. Go errors signal caller mistakes.
package backend

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/gammafit/internal/param"
)

// StatFunc evaluates the fit statistic for the current parameter state.
type StatFunc func() float64

// Task identifies a fitting sub-task handled by a backend.
type Task string

const (
	TaskOptimize   Task = "optimize"
	TaskCovariance Task = "covariance"
	TaskConfidence Task = "confidence"
	TaskContour    Task = "contour"
)

// Backend names registered by default.
const (
	Quadratic = "quadratic"
	Simplex   = "simplex"
	Scalar    = "scalar"
)

// State is an opaque backend-native handle retained between steps. Backends
// that can warm-start a later task from it (currently only the quadratic
// backend's covariance) type-assert it back.
type State interface {
	// Backend names the backend that produced the state.
	Backend() string
}

// OptimizeOptions configures a single optimization run.
type OptimizeOptions struct {
	// Method selects an algorithm within the backend where the backend
	// supports several. Empty selects the backend default.
	Method string

	// MaxEvals bounds the number of statistic evaluations. Zero uses the
	// backend default.
	MaxEvals int

	// Tolerance is the absolute convergence tolerance on the statistic.
	// Zero uses the backend default.
	Tolerance float64

	// StoreTrace records the per-evaluation factor trace in the output.
	StoreTrace bool

	// PopSize is the population size for population-based methods.
	PopSize int

	// Seed seeds stochastic methods for reproducibility.
	Seed int64

	// GridBins is the number of bins per dimension for grid search.
	GridBins int
}

// CovarianceOptions configures a covariance estimation.
type CovarianceOptions struct {
	// State is the native handle from a prior optimize step on the same
	// backend, used to skip redundant evaluations. Optional.
	State State
}

// ConfidenceOptions configures an asymmetric confidence interval search.
type ConfidenceOptions struct {
	// Sigma is the confidence level in standard deviations.
	Sigma float64

	// Reoptimize re-fits the remaining free parameters at every probed
	// value of the parameter of interest.
	Reoptimize bool

	// MaxEvals bounds the statistic evaluations of each nested fit.
	MaxEvals int
}

// ContourOptions configures a confidence contour trace.
type ContourOptions struct {
	// NumPoints is the number of polygon points on the contour.
	NumPoints int

	// Sigma is the confidence level in standard deviations.
	Sigma float64

	// MaxEvals bounds the statistic evaluations of each nested fit.
	MaxEvals int
}

// OptimizeOutput is the raw result of a backend optimization.
type OptimizeOutput struct {
	// Factors is the best-fit factor vector over the unique free parameters.
	Factors []float64

	// Method is the algorithm that actually ran.
	Method string

	Success bool
	Message string

	// NFev is the number of statistic evaluations.
	NFev int

	// Trace holds the per-evaluation history, nil unless requested.
	Trace *Trace

	// State is the backend-native handle, nil for backends without one.
	State State
}

// CovarianceOutput is a parameter correlation matrix in factor units.
type CovarianceOutput struct {
	// FactorMatrix is the covariance over the unique free factor space.
	FactorMatrix *mat.SymDense

	Success bool
	Message string
	NFev    int
}

// ConfidenceOutput holds an asymmetric interval in factor units.
type ConfidenceOutput struct {
	// ErrP and ErrN are the positive and negative distances from the best
	// factor, both non-negative.
	ErrP float64
	ErrN float64

	Success bool
	Message string
	NFev    int
}

// ContourOutput is a closed confidence polygon in factor units.
type ContourOutput struct {
	X []float64
	Y []float64

	Success bool
	Message string
	NFev    int
}

// Optimizer is the mandatory capability of every backend.
type Optimizer interface {
	Name() string
	Optimize(params *param.Set, fn StatFunc, opts OptimizeOptions) (*OptimizeOutput, error)
}

// CovarianceEstimator is an optional backend capability.
type CovarianceEstimator interface {
	Covariance(params *param.Set, fn StatFunc, opts CovarianceOptions) (*CovarianceOutput, error)
}

// ConfidenceEstimator is an optional backend capability.
type ConfidenceEstimator interface {
	Confidence(params *param.Set, parameter *param.Parameter, fn StatFunc, opts ConfidenceOptions) (*ConfidenceOutput, error)
}

// ContourTracer is an optional backend capability.
type ContourTracer interface {
	Contour(params *param.Set, fn StatFunc, x, y *param.Parameter, opts ContourOptions) (*ContourOutput, error)
}

// objective adapts the parameter set and statistic function to the
// flat-vector calling convention of the numeric libraries. Every call writes
// the factor vector onto the shared parameters, so linked occurrences and
// frozen parameters behave correctly without backend involvement.
type objective struct {
	free  []*param.Parameter
	fn    StatFunc
	nfev  int
	trace *Trace
}

func newObjective(params *param.Set, fn StatFunc, storeTrace bool) *objective {
	free := params.UniqueFree().All()
	obj := &objective{free: free, fn: fn}
	if storeTrace {
		cols := make([]string, 0, len(free)+1)
		cols = append(cols, "total_stat")
		for _, p := range free {
			cols = append(cols, p.Name())
		}
		obj.trace = &Trace{Columns: cols}
	}
	return obj
}

// factors returns the current factor vector.
func (o *objective) factors() []float64 {
	x := make([]float64, len(o.free))
	for i, p := range o.free {
		x[i] = p.Factor()
	}
	return x
}

// eval writes x onto the parameters and evaluates the statistic.
func (o *objective) eval(x []float64) float64 {
	for i, p := range o.free {
		p.SetFactor(x[i])
	}
	stat := o.fn()
	o.nfev++
	if o.trace != nil {
		o.trace.Rows = append(o.trace.Rows, TraceRow{
			Call:      o.nfev,
			TotalStat: stat,
			Factors:   append([]float64(nil), x...),
		})
	}
	return stat
}

// factorBounds returns the parameter bounds converted to factor units,
// accounting for negative scales. Unbounded sides are NaN.
func factorBounds(p *param.Parameter) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	scale := p.Scale()
	if scale == 0 {
		return
	}
	if !math.IsNaN(p.Min()) {
		lo = p.Min() / scale
	}
	if !math.IsNaN(p.Max()) {
		hi = p.Max() / scale
	}
	if scale < 0 {
		lo, hi = hi, lo
	}
	return
}
