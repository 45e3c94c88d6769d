package backend

import (
	"math"

	"github.com/cwbudde/gammafit/internal/param"
)

// profiler evaluates the profile statistic: the statistic minimized over the
// remaining free parameters while one or more parameters of interest are
// held fixed (and frozen) by the caller. With reoptimize disabled it is a
// plain evaluation.
type profiler struct {
	sub        Optimizer
	params     *param.Set
	fn         StatFunc
	reoptimize bool
	maxEvals   int

	nfev   int
	failed bool
}

func (pr *profiler) stat() float64 {
	if pr.reoptimize && pr.params.UniqueFree().Len() > 0 {
		out, err := pr.sub.Optimize(pr.params, pr.fn, OptimizeOptions{MaxEvals: pr.maxEvals})
		if err != nil || !out.Success {
			pr.failed = true
		}
		if err == nil {
			pr.nfev += out.NFev
			_ = pr.params.SetFreeFactors(out.Factors)
		}
	}
	pr.nfev++
	return pr.fn()
}

// confidenceByRoot computes an asymmetric confidence interval by finding the
// two factor values where the profile statistic crosses stat_min + sigma^2,
// bracketing outward from the best fit and solving with Brent's method.
// Shared by the quadratic and scalar backends; the caller is responsible for
// scoping parameter state.
func confidenceByRoot(sub Optimizer, params *param.Set, parameter *param.Parameter, fn StatFunc, opts ConfidenceOptions) (*ConfidenceOutput, error) {
	sigma := opts.Sigma
	if sigma <= 0 {
		sigma = 1
	}

	pr := &profiler{
		sub:        sub,
		params:     params,
		fn:         fn,
		reoptimize: opts.Reoptimize,
		maxEvals:   opts.MaxEvals,
	}

	parameter.SetFrozen(true)
	f0 := parameter.Factor()
	stat0 := pr.stat()
	target := stat0 + sigma*sigma

	g := func(t float64) float64 {
		parameter.SetFactor(t)
		return pr.stat() - target
	}

	lo, hi := factorBounds(parameter)

	out := &ConfidenceOutput{Success: true}

	if up, ok := bracketAndSolve(g, f0, stat0-target, +1, hi); ok {
		out.ErrP = up - f0
	} else {
		out.Success = false
		out.Message = "upper interval bracketing failed"
	}

	if down, ok := bracketAndSolve(g, f0, stat0-target, -1, lo); ok {
		out.ErrN = f0 - down
	} else {
		out.Success = false
		if out.Message != "" {
			out.Message += "; "
		}
		out.Message += "lower interval bracketing failed"
	}

	if pr.failed {
		out.Success = false
		if out.Message != "" {
			out.Message += "; "
		}
		out.Message += "nested fit did not converge"
	}
	if out.Success {
		out.Message = "interval found at target statistic"
	}
	out.NFev = pr.nfev
	return out, nil
}

// bracketAndSolve expands from start in direction dir until g changes sign,
// then solves for the root. limit bounds the expansion (NaN for unbounded).
// g(start) = g0 must be negative.
func bracketAndSolve(g func(float64) float64, start, g0, dir, limit float64) (float64, bool) {
	step := 0.1 * math.Abs(start)
	if step == 0 {
		step = 0.1
	}

	a, ga := start, g0
	for i := 0; i < 60; i++ {
		b := start + dir*step
		atLimit := false
		if !math.IsNaN(limit) {
			if (dir > 0 && b >= limit) || (dir < 0 && b <= limit) {
				b = limit
				atLimit = true
			}
		}
		gb := g(b)
		if gb >= 0 {
			return brentRoot(g, a, b, ga, gb), true
		}
		if atLimit {
			// Crossing lies outside the allowed range.
			return 0, false
		}
		a, ga = b, gb
		step *= 2
	}
	return 0, false
}

// brentRoot finds a root of g in [a, b] given g(a) and g(b) with opposite
// signs. Classic Brent: inverse quadratic interpolation with bisection
// fallback.
func brentRoot(g func(float64) float64, a, b, fa, fb float64) float64 {
	const (
		tol     = 1e-10
		maxIter = 100
	)

	c, fc := a, fa
	d := b - a
	e := d

	for i := 0; i < maxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*2.2e-16*math.Abs(b) + tol/2
		xm := (c - b) / 2
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			var p, q, r float64
			s := fb / fa
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r = fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = g(b)
	}
	return b
}
