package backend

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// gradTol is the infinity-norm gradient threshold below which a stalled
// line search counts as converged.
const gradTol = 1e-4

// minimizeGonum runs a gonum/optimize method over the objective and maps the
// library result onto the backend contract. Gradient-based methods get a
// finite-difference gradient; every probe goes through the objective so the
// evaluation count and trace stay complete. Library-reported failures
// (line search breakdown, iteration limits) become soft failures, except
// when the gradient vanishes at the returned point: a line search cannot
// step away from a point that already minimizes the statistic.
func minimizeGonum(obj *objective, method optimize.Method, methodName string, opts OptimizeOptions) *OptimizeOutput {
	x0 := obj.factors()

	problem := optimize.Problem{
		Func: obj.eval,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, obj.eval, x, nil)
		},
	}

	settings := &optimize.Settings{}
	if opts.MaxEvals > 0 {
		settings.FuncEvaluations = opts.MaxEvals
	}
	if opts.Tolerance > 0 {
		settings.Converger = &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Iterations: 20,
		}
	}

	result, err := optimize.Minimize(problem, x0, settings, method)

	out := &OptimizeOutput{
		Method: methodName,
		Trace:  obj.trace,
	}
	switch {
	case result == nil:
		out.Factors = x0
		out.Message = "optimization produced no result"
		if err != nil {
			out.Message = err.Error()
		}
	case err != nil:
		out.Factors = result.X
		out.Message = err.Error()
		if gradientVanishes(obj, result.X) {
			out.Success = true
			out.Message = "gradient vanishes at solution"
		}
	default:
		out.Factors = result.X
		out.Success = true
		out.Message = result.Status.String()
	}
	out.NFev = obj.nfev
	return out
}

// gradientVanishes reports whether the finite-difference gradient at x is
// numerically zero. The central formula cancels the truncation error of the
// forward one, which at a quadratic minimum is of the order of the step.
func gradientVanishes(obj *objective, x []float64) bool {
	grad := make([]float64, len(x))
	fd.Gradient(grad, obj.eval, x, &fd.Settings{Formula: fd.Central})
	return floats.Norm(grad, math.Inf(1)) <= gradTol
}
