package backend

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/gammafit/internal/param"
)

var _ Optimizer = (*SimplexBackend)(nil)

// SimplexBackend is the derivative-free backend. It offers several search
// strategies behind one contract:
//
//	neldermead  downhill simplex (default)
//	gridsearch  exhaustive scan over bounded factor space
//	mayfly      population search, reproducible via Seed
//
// It has no covariance, confidence or contour capability.
type SimplexBackend struct{}

// NewSimplex creates the derivative-free backend.
func NewSimplex() *SimplexBackend {
	return &SimplexBackend{}
}

// Name returns the registry name of the backend.
func (b *SimplexBackend) Name() string { return Simplex }

// Optimize dispatches to the method selected in the options.
func (b *SimplexBackend) Optimize(params *param.Set, fn StatFunc, opts OptimizeOptions) (*OptimizeOutput, error) {
	method := opts.Method
	if method == "" {
		method = "neldermead"
	}

	obj := newObjective(params, fn, opts.StoreTrace)

	switch method {
	case "neldermead":
		return minimizeGonum(obj, &optimize.NelderMead{}, method, opts), nil
	case "gridsearch":
		return b.gridSearch(obj, opts)
	case "mayfly":
		return b.mayfly(obj, opts)
	default:
		return nil, fmt.Errorf("unknown method %q for backend %q", method, Simplex)
	}
}

// gridSearch evaluates the statistic on a regular grid spanning the factor
// bounds of every free parameter and keeps the minimum. Cost grows as
// bins^dim, so it is only useful for low-dimensional problems.
func (b *SimplexBackend) gridSearch(obj *objective, opts OptimizeOptions) (*OptimizeOutput, error) {
	bins := opts.GridBins
	if bins < 2 {
		bins = 10
	}

	dim := len(obj.free)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i, p := range obj.free {
		lo, hi := factorBounds(p)
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return nil, fmt.Errorf("gridsearch: parameter %q has no finite bounds", p.Name())
		}
		lower[i], upper[i] = lo, hi
	}

	best := math.Inf(1)
	bestX := obj.factors()
	x := make([]float64, dim)
	idx := make([]int, dim)

	for {
		for i, k := range idx {
			x[i] = lower[i] + float64(k)*(upper[i]-lower[i])/float64(bins-1)
		}
		if stat := obj.eval(x); stat < best {
			best = stat
			bestX = append([]float64(nil), x...)
		}

		// Advance the odometer.
		i := 0
		for ; i < dim; i++ {
			idx[i]++
			if idx[i] < bins {
				break
			}
			idx[i] = 0
		}
		if i == dim {
			break
		}
	}

	return &OptimizeOutput{
		Factors: bestX,
		Method:  "gridsearch",
		Success: true,
		Message: fmt.Sprintf("grid scan complete, %d evaluations", obj.nfev),
		NFev:    obj.nfev,
		Trace:   obj.trace,
	}, nil
}

// mayfly runs the external mayfly population optimizer. The library takes
// scalar bounds for all dimensions, so the widest factor bounds are used;
// unbounded parameters fall back to a window around the start point.
func (b *SimplexBackend) mayfly(obj *objective, opts OptimizeOptions) (*OptimizeOutput, error) {
	dim := len(obj.free)
	x0 := obj.factors()

	lower, upper := math.Inf(1), math.Inf(-1)
	for i, p := range obj.free {
		lo, hi := factorBounds(p)
		if math.IsNaN(lo) {
			lo = x0[i] - 10
		}
		if math.IsNaN(hi) {
			hi = x0[i] + 10
		}
		lower = math.Min(lower, lo)
		upper = math.Max(upper, hi)
	}

	iters := opts.MaxEvals
	if iters <= 0 {
		iters = 100
	}
	popSize := opts.PopSize
	if popSize < 20 {
		// mayfly v0.1.0 requires at least 20 individuals.
		popSize = 20
	}
	seed := opts.Seed
	if seed == 0 {
		seed = 42
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = obj.eval
	config.ProblemSize = dim
	config.MaxIterations = iters
	config.NPop = popSize
	config.LowerBound = lower
	config.UpperBound = upper
	config.Rand = rand.New(rand.NewSource(seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return &OptimizeOutput{
			Factors: x0,
			Method:  "mayfly",
			Success: false,
			Message: err.Error(),
			NFev:    obj.nfev,
			Trace:   obj.trace,
		}, nil
	}

	return &OptimizeOutput{
		Factors: result.GlobalBest.Position,
		Method:  "mayfly",
		Success: true,
		Message: "population search complete",
		NFev:    obj.nfev,
		Trace:   obj.trace,
	}, nil
}
