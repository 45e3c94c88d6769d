// Package fit provides the model-fitting orchestrator: a uniform interface
// over the optimizer backends for optimization, covariance estimation,
// confidence intervals and statistic scans.
//
// All probing operations (covariance, confidence, profile, surface, contour)
// temporarily mutate the shared parameter state and unconditionally restore
// it before returning, on the normal path and on failures alike.
package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/gammafit/internal/backend"
	"github.com/cwbudde/gammafit/internal/model"
	"github.com/cwbudde/gammafit/internal/param"
)

// ErrNoFreeParameters is returned when a fit is requested with every
// parameter frozen.
var ErrNoFreeParameters = errors.New("no free parameters for fitting")

// Datasets is the data collaborator of the fit engine. Implementations
// expose a scalar statistic over shared, mutable parameters; evaluation
// reflects the parameter state at call time.
type Datasets interface {
	StatSum() float64
	Parameters() *param.Set
	Models() *model.Models
}

// OptimizeConfig configures the optimize task. An empty Backend uses the
// instance-wide backend.
type OptimizeConfig struct {
	Backend string
	backend.OptimizeOptions
}

// CovarianceConfig configures the covariance task.
type CovarianceConfig struct {
	Backend string
}

// ConfidenceConfig configures the confidence task.
type ConfidenceConfig struct {
	Backend string

	// MaxEvals bounds the statistic evaluations of each nested fit during
	// the interval search.
	MaxEvals int
}

// ProgressFunc receives scan progress as (completed, total) points.
type ProgressFunc func(completed, total int)

// Fit drives datasets through the optimizer backends and composes results.
// The zero value is not usable; create instances with New.
type Fit struct {
	registry   *backend.Registry
	backend    string
	optimize   OptimizeConfig
	covariance CovarianceConfig
	confidence ConfidenceConfig
	storeTrace bool
	progress   ProgressFunc

	// state is the backend-native handle of the most recent optimize step,
	// kept for backends that can warm-start covariance from it.
	state backend.State
}

// Option configures a Fit.
type Option func(*Fit)

// WithBackend sets the instance-wide backend name. Default is "quadratic".
func WithBackend(name string) Option {
	return func(f *Fit) { f.backend = name }
}

// WithStoreTrace records the optimizer trajectory in optimize results.
func WithStoreTrace(store bool) Option {
	return func(f *Fit) { f.storeTrace = store }
}

// WithOptimizeConfig sets the optimize task configuration.
func WithOptimizeConfig(cfg OptimizeConfig) Option {
	return func(f *Fit) { f.optimize = cfg }
}

// WithCovarianceConfig sets the covariance task configuration.
func WithCovarianceConfig(cfg CovarianceConfig) Option {
	return func(f *Fit) { f.covariance = cfg }
}

// WithConfidenceConfig sets the confidence task configuration.
func WithConfidenceConfig(cfg ConfidenceConfig) Option {
	return func(f *Fit) { f.confidence = cfg }
}

// WithRegistry replaces the backend registry, for callers that register
// their own backends.
func WithRegistry(r *backend.Registry) Option {
	return func(f *Fit) { f.registry = r }
}

// WithProgress installs a callback invoked after every scan point of
// StatProfile and StatSurface.
func WithProgress(fn ProgressFunc) Option {
	return func(f *Fit) { f.progress = fn }
}

// New creates a Fit with the default registry and the quadratic backend.
func New(opts ...Option) *Fit {
	f := &Fit{
		registry: backend.DefaultRegistry(),
		backend:  backend.Quadratic,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fit) taskBackend(override string) string {
	if override != "" {
		return override
	}
	return f.backend
}

// Run executes optimization followed by covariance estimation. When the
// selected backend cannot estimate covariance the covariance step is skipped
// with a warning and an optimize-only result is returned.
func (f *Fit) Run(datasets Datasets) (*FitResult, error) {
	optimizeResult, err := f.Optimize(datasets)
	if err != nil {
		return nil, err
	}

	covBackend := f.taskBackend(f.covariance.Backend)
	if !f.registry.HasCovariance(covBackend) {
		slog.Warn("no covariance estimate, not supported by this backend", "backend", covBackend)
		return &FitResult{optimize: optimizeResult}, nil
	}

	covarianceResult, err := f.Covariance(datasets, optimizeResult)
	if err != nil {
		return nil, err
	}

	return &FitResult{
		optimize:   optimizeResult,
		covariance: covarianceResult,
	}, nil
}

// Optimize runs the optimization and writes the best-fit factors back into
// the live parameters. Precondition violations (no free parameters, values
// outside bounds) are hard errors raised before any backend call; optimizer
// non-convergence is reported through the result's Success flag.
func (f *Fit) Optimize(datasets Datasets) (*OptimizeResult, error) {
	params := datasets.Parameters()

	if err := params.CheckLimits(); err != nil {
		return nil, err
	}
	if params.UniqueFree().Len() == 0 {
		return nil, ErrNoFreeParameters
	}

	params.Autoscale()

	name := f.taskBackend(f.optimize.Backend)
	optimizer, err := f.registry.Optimizer(name)
	if err != nil {
		return nil, err
	}

	opts := f.optimize.OptimizeOptions
	opts.StoreTrace = f.storeTrace

	out, err := optimizer.Optimize(params, datasets.StatSum, opts)
	if err != nil {
		return nil, err
	}
	if out.State != nil {
		f.state = out.State
	}

	// Copy the final factors into the live parameters.
	if err := params.SetFreeFactors(out.Factors); err != nil {
		return nil, err
	}
	if err := params.CheckLimits(); err != nil {
		return nil, err
	}

	if f.storeTrace && out.Trace != nil {
		out.Trace.Rename(f.qualifiedFreeNames(datasets, params))
	}

	method := out.Method
	if method == "" {
		method = name
	}

	return &OptimizeResult{
		stepResult: stepResult{
			backend: name,
			method:  method,
			success: out.Success,
			message: out.Message,
		},
		models:    datasets.Models().Copy(),
		totalStat: datasets.StatSum(),
		nfev:      out.NFev,
		trace:     out.Trace,
		state:     out.State,
	}, nil
}

// qualifiedFreeNames returns the model-qualified names of the unique free
// parameters, in factor vector order.
func (f *Fit) qualifiedFreeNames(datasets Datasets, params *param.Set) []string {
	names := datasets.Models().ParametersUniqueNames()
	free := params.UniqueFree().All()
	out := make([]string, 0, len(free))
	for _, p := range free {
		idx := params.Index(p)
		if idx >= 0 && idx < len(names) {
			out = append(out, names[idx])
		} else {
			out = append(out, p.Name())
		}
	}
	return out
}

// Covariance estimates the covariance matrix. It assumes the parameters are
// already optimized; a prior OptimizeResult from the same backend may be
// passed to reuse its native state. The estimation runs over the unique
// parameter set so linked parameters are not double counted, and the factor
// matrix is expanded onto the full parameter list afterwards.
func (f *Fit) Covariance(datasets Datasets, optimizeResult *OptimizeResult) (*CovarianceResult, error) {
	uniquePars := datasets.Parameters().Unique()
	fullPars := datasets.Models().Parameters()

	if uniquePars.Free().Len() == 0 {
		return nil, ErrNoFreeParameters
	}

	name := f.taskBackend(f.covariance.Backend)
	estimator, err := f.registry.CovarianceEstimator(name)
	if err != nil {
		return nil, err
	}

	opts := backend.CovarianceOptions{}
	if optimizeResult != nil && optimizeResult.state != nil && optimizeResult.state.Backend() == name {
		opts.State = optimizeResult.state
	} else if f.state != nil && f.state.Backend() == name {
		opts.State = f.state
	}

	method := ""
	if name == backend.Quadratic {
		method = "hesse"
	}

	var out *backend.CovarianceOutput
	func() {
		defer uniquePars.RestoreStatus()()
		out, err = estimator.Covariance(uniquePars, datasets.StatSum, opts)
	}()
	if err != nil {
		return nil, err
	}

	result := &CovarianceResult{
		stepResult: stepResult{
			backend: name,
			method:  method,
			success: out.Success,
			message: out.Message,
		},
	}

	if !out.Success {
		return result, nil
	}

	covariance, err := FromFactorMatrix(fullPars, out.FactorMatrix)
	if err != nil {
		return nil, err
	}
	datasets.Models().SetCovariance(covariance.Matrix())
	result.matrix = covariance.Matrix()

	if optimizeResult != nil {
		snapshot := covariance.Matrix()
		optimizeResult.models.SetCovariance(mat.DenseCopyOf(snapshot))
	}

	return result, nil
}

// Confidence estimates the asymmetric confidence interval of one parameter,
// given as a *param.Parameter or its name. Errors are returned in physical
// units.
func (f *Fit) Confidence(datasets Datasets, parameter any, sigma float64, reoptimize bool) (*ConfidenceResult, error) {
	params := datasets.Parameters()
	par, err := params.Resolve(parameter)
	if err != nil {
		return nil, err
	}

	name := f.taskBackend(f.confidence.Backend)
	estimator, err := f.registry.ConfidenceEstimator(name)
	if err != nil {
		return nil, err
	}

	opts := backend.ConfidenceOptions{
		Sigma:      sigma,
		Reoptimize: reoptimize,
		MaxEvals:   f.confidence.MaxEvals,
	}

	var out *backend.ConfidenceOutput
	func() {
		defer params.RestoreStatus()()
		out, err = estimator.Confidence(params, par, datasets.StatSum, opts)
	}()
	if err != nil {
		return nil, err
	}

	scale := math.Abs(par.Scale())
	return &ConfidenceResult{
		stepResult: stepResult{
			backend: name,
			method:  "confidence",
			success: out.Success,
			message: out.Message,
		},
		ErrP: out.ErrP * scale,
		ErrN: out.ErrN * scale,
		NFev: out.NFev,
	}, nil
}

// StatProfile evaluates the statistic along the scan values of one
// parameter, in their configured order. With reoptimize the remaining free
// parameters are re-fit at every point and the per-point results are kept.
// All parameter mutation is rolled back before returning.
func (f *Fit) StatProfile(datasets Datasets, parameter any, reoptimize bool) (*ProfileResult, error) {
	params := datasets.Parameters()
	par, err := params.Resolve(parameter)
	if err != nil {
		return nil, err
	}

	values := par.ScanValues()
	if len(values) == 0 {
		return nil, fmt.Errorf("parameter %q has no scan values", par.Name())
	}

	result := &ProfileResult{
		ParameterName: f.qualifiedName(datasets, params, par),
		Values:        append([]float64(nil), values...),
	}

	var scanErr error
	func() {
		defer params.RestoreStatus()()
		for i, value := range values {
			par.SetValue(value)
			if reoptimize {
				par.SetFrozen(true)
				res, err := f.Optimize(datasets)
				if err != nil {
					scanErr = err
					return
				}
				result.Stats = append(result.Stats, res.TotalStat())
				result.Results = append(result.Results, res)
			} else {
				result.Stats = append(result.Stats, datasets.StatSum())
			}
			if f.progress != nil {
				f.progress(i+1, len(values))
			}
		}
	}()
	if scanErr != nil {
		return nil, scanErr
	}
	return result, nil
}

// StatSurface evaluates the statistic over the Cartesian product of two
// parameters' scan values, x outer and y inner, producing a row-major grid
// of shape (len(x), len(y)). All parameter mutation is rolled back.
func (f *Fit) StatSurface(datasets Datasets, x, y any, reoptimize bool) (*SurfaceResult, error) {
	params := datasets.Parameters()
	xp, err := params.Resolve(x)
	if err != nil {
		return nil, err
	}
	yp, err := params.Resolve(y)
	if err != nil {
		return nil, err
	}

	xValues := xp.ScanValues()
	yValues := yp.ScanValues()
	if len(xValues) == 0 {
		return nil, fmt.Errorf("parameter %q has no scan values", xp.Name())
	}
	if len(yValues) == 0 {
		return nil, fmt.Errorf("parameter %q has no scan values", yp.Name())
	}

	result := &SurfaceResult{
		XName:   f.qualifiedName(datasets, params, xp),
		YName:   f.qualifiedName(datasets, params, yp),
		XValues: append([]float64(nil), xValues...),
		YValues: append([]float64(nil), yValues...),
	}

	total := len(xValues) * len(yValues)
	done := 0

	var scanErr error
	func() {
		defer params.RestoreStatus()()
		for _, xv := range xValues {
			statRow := make([]float64, 0, len(yValues))
			var resultRow []*OptimizeResult
			for _, yv := range yValues {
				xp.SetValue(xv)
				yp.SetValue(yv)
				if reoptimize {
					xp.SetFrozen(true)
					yp.SetFrozen(true)
					res, err := f.Optimize(datasets)
					if err != nil {
						scanErr = err
						return
					}
					statRow = append(statRow, res.TotalStat())
					resultRow = append(resultRow, res)
				} else {
					statRow = append(statRow, datasets.StatSum())
				}
				done++
				if f.progress != nil {
					f.progress(done, total)
				}
			}
			result.Stats = append(result.Stats, statRow)
			if reoptimize {
				result.Results = append(result.Results, resultRow)
			}
		}
	}()
	if scanErr != nil {
		return nil, scanErr
	}
	return result, nil
}

// StatContour traces the confidence contour of two parameters at the given
// sigma level. Only backends with the contour capability support this; the
// returned coordinates are in physical units. All parameter mutation is
// rolled back.
func (f *Fit) StatContour(datasets Datasets, x, y any, numpoints int, sigma float64) (*ContourResult, error) {
	params := datasets.Parameters()
	xp, err := params.Resolve(x)
	if err != nil {
		return nil, err
	}
	yp, err := params.Resolve(y)
	if err != nil {
		return nil, err
	}

	tracer, err := f.registry.ContourTracer(f.backend)
	if err != nil {
		return nil, err
	}

	opts := backend.ContourOptions{NumPoints: numpoints, Sigma: sigma}

	var out *backend.ContourOutput
	func() {
		defer params.RestoreStatus()()
		out, err = tracer.Contour(params, datasets.StatSum, xp, yp, opts)
	}()
	if err != nil {
		return nil, err
	}

	result := &ContourResult{
		XName:   f.qualifiedName(datasets, params, xp),
		YName:   f.qualifiedName(datasets, params, yp),
		Success: out.Success,
		Message: out.Message,
	}
	for i := range out.X {
		result.X = append(result.X, out.X[i]*xp.Scale())
		result.Y = append(result.Y, out.Y[i]*yp.Scale())
	}
	return result, nil
}

// qualifiedName returns the model-qualified name of a parameter, falling
// back to its bare name when it has no model position.
func (f *Fit) qualifiedName(datasets Datasets, params *param.Set, p *param.Parameter) string {
	names := datasets.Models().ParametersUniqueNames()
	if idx := params.Index(p); idx >= 0 && idx < len(names) {
		return names[idx]
	}
	return p.Name()
}
