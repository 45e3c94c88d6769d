package backend

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/cwbudde/gammafit/internal/param"
)

// QuadraticBackend is the quasi-Newton backend: BFGS optimization with a
// local quadratic model of the statistic. It is the only backend with the
// full capability set (optimize, covariance, confidence, contour).
//
// The covariance scaling assumes the statistic behaves like -2 ln L (or a
// chi-square): a one-sigma step changes the statistic by one.
type QuadraticBackend struct{}

// NewQuadratic creates the quasi-Newton backend.
func NewQuadratic() *QuadraticBackend {
	return &QuadraticBackend{}
}

// Name returns the registry name of the backend.
func (b *QuadraticBackend) Name() string { return Quadratic }

// quadraticState is the warm-start handle: the factor vector of the last
// best fit, plus the Hessian once a covariance step has computed it.
type quadraticState struct {
	x       []float64
	hessian *mat.SymDense
}

func (s *quadraticState) Backend() string { return Quadratic }

// Optimize runs BFGS in factor space.
func (b *QuadraticBackend) Optimize(params *param.Set, fn StatFunc, opts OptimizeOptions) (*OptimizeOutput, error) {
	obj := newObjective(params, fn, opts.StoreTrace)
	out := minimizeGonum(obj, &optimize.BFGS{}, "bfgs", opts)
	out.State = &quadraticState{x: append([]float64(nil), out.Factors...)}
	return out, nil
}

// Covariance estimates the factor covariance as 2 H^-1 with H the numerical
// Hessian of the statistic at the current factors. A Hessian cached in the
// warm-start state is reused when it was computed at the same point.
func (b *QuadraticBackend) Covariance(params *param.Set, fn StatFunc, opts CovarianceOptions) (*CovarianceOutput, error) {
	obj := newObjective(params, fn, false)
	x := obj.factors()
	n := len(x)

	var hessian *mat.SymDense
	state, _ := opts.State.(*quadraticState)
	if state != nil && state.hessian != nil &&
		len(state.x) == n && floats.EqualApprox(state.x, x, 1e-12) {
		hessian = state.hessian
	}

	if hessian == nil {
		hessian = mat.NewSymDense(n, nil)
		fd.Hessian(hessian, obj.eval, x, nil)
		// Evaluation moved the parameters; park them back at the estimate point.
		for i, p := range obj.free {
			p.SetFactor(x[i])
		}
		if state != nil {
			state.x = append([]float64(nil), x...)
			state.hessian = hessian
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(hessian) {
		return &CovarianceOutput{
			Success: false,
			Message: "hessian is not positive definite",
			NFev:    obj.nfev,
		}, nil
	}

	var inverse mat.SymDense
	if err := chol.InverseTo(&inverse); err != nil {
		return &CovarianceOutput{
			Success: false,
			Message: "hessian inversion failed: " + err.Error(),
			NFev:    obj.nfev,
		}, nil
	}

	covariance := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			covariance.SetSym(i, j, 2*inverse.At(i, j))
		}
	}

	return &CovarianceOutput{
		FactorMatrix: covariance,
		Success:      true,
		Message:      "covariance estimated from numerical hessian",
		NFev:         obj.nfev,
	}, nil
}

// Confidence computes an asymmetric interval by profile-likelihood root
// finding, re-optimizing nested fits with BFGS.
func (b *QuadraticBackend) Confidence(params *param.Set, parameter *param.Parameter, fn StatFunc, opts ConfidenceOptions) (*ConfidenceOutput, error) {
	return confidenceByRoot(b, params, parameter, fn, opts)
}

// Contour traces the confidence region boundary of two parameters. The
// profile statistic (all other free parameters re-optimized) is solved for
// stat_min + delta along rays from the best fit, where delta is the
// two-dimensional chi-square threshold for the requested sigma.
func (b *QuadraticBackend) Contour(params *param.Set, fn StatFunc, x, y *param.Parameter, opts ContourOptions) (*ContourOutput, error) {
	numpoints := opts.NumPoints
	if numpoints <= 0 {
		numpoints = 10
	}
	sigma := opts.Sigma
	if sigma <= 0 {
		sigma = 1
	}

	x.SetFrozen(true)
	y.SetFrozen(true)
	x0, y0 := x.Factor(), y.Factor()

	pr := &profiler{
		sub:        b,
		params:     params,
		fn:         fn,
		reoptimize: true,
		maxEvals:   opts.MaxEvals,
	}
	stat0 := pr.stat()

	// Two-dimensional threshold: chi-square quantile with two degrees of
	// freedom at the confidence level of sigma, -2 ln(1 - cl) in closed form.
	cl := math.Erf(sigma / math.Sqrt2)
	delta := -2 * math.Log(1-cl)
	target := stat0 + delta

	sx := curvatureScale(pr, x, x0)
	sy := curvatureScale(pr, y, y0)

	out := &ContourOutput{Success: true}
	for k := 0; k < numpoints; k++ {
		theta := 2 * math.Pi * float64(k) / float64(numpoints)
		dx := math.Cos(theta) * sx
		dy := math.Sin(theta) * sy

		g := func(r float64) float64 {
			x.SetFactor(x0 + r*dx)
			y.SetFactor(y0 + r*dy)
			return pr.stat() - target
		}

		r, ok := bracketRadial(g, stat0-target)
		if !ok {
			out.Success = false
			out.Message = "contour bracketing failed"
			continue
		}
		out.X = append(out.X, x0+r*dx)
		out.Y = append(out.Y, y0+r*dy)
	}

	// Close the polygon.
	if len(out.X) > 0 {
		out.X = append(out.X, out.X[0])
		out.Y = append(out.Y, out.Y[0])
	}
	if pr.failed {
		out.Success = false
		out.Message = "nested fit did not converge"
	}
	out.NFev = pr.nfev
	return out, nil
}

// bracketRadial expands r outward from 0 (where g = g0 < 0) until g changes
// sign, then solves for the crossing.
func bracketRadial(g func(float64) float64, g0 float64) (float64, bool) {
	a, ga := 0.0, g0
	r := 1.0
	for i := 0; i < 40; i++ {
		gb := g(r)
		if gb >= 0 {
			return brentRoot(g, a, r, ga, gb), true
		}
		a, ga = r, gb
		r *= 2
	}
	return 0, false
}

// curvatureScale estimates the one-sigma factor scale of a parameter from
// the second difference of the profile statistic, used to shape contour rays.
func curvatureScale(pr *profiler, p *param.Parameter, f0 float64) float64 {
	h := 0.01 * math.Abs(f0)
	if h == 0 {
		h = 0.01
	}
	p.SetFactor(f0 + h)
	up := pr.stat()
	p.SetFactor(f0 - h)
	down := pr.stat()
	p.SetFactor(f0)
	center := pr.stat()

	d2 := (up - 2*center + down) / (h * h)
	if d2 <= 0 || math.IsNaN(d2) {
		return 10 * h
	}
	return math.Sqrt(2 / d2)
}
