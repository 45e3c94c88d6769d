package backend

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"

	"github.com/cwbudde/gammafit/internal/param"
)

// ScalarBackend is the general-purpose numeric backend: multivariate
// minimization with a selectable gonum method ("bfgs", "cg", "neldermead")
// and confidence intervals by bounded scalar root bracketing on the profile
// statistic. It has no covariance or contour capability.
type ScalarBackend struct{}

// NewScalar creates the scalar backend.
func NewScalar() *ScalarBackend {
	return &ScalarBackend{}
}

// Name returns the registry name of the backend.
func (b *ScalarBackend) Name() string { return Scalar }

// Optimize runs the selected gonum method in factor space.
func (b *ScalarBackend) Optimize(params *param.Set, fn StatFunc, opts OptimizeOptions) (*OptimizeOutput, error) {
	method := opts.Method
	if method == "" {
		method = "bfgs"
	}

	var m optimize.Method
	switch method {
	case "bfgs":
		m = &optimize.BFGS{}
	case "cg":
		m = &optimize.CG{}
	case "neldermead":
		m = &optimize.NelderMead{}
	default:
		return nil, fmt.Errorf("unknown method %q for backend %q", method, Scalar)
	}

	obj := newObjective(params, fn, opts.StoreTrace)
	return minimizeGonum(obj, m, method, opts), nil
}

// Confidence brackets the target statistic crossing on both sides of the
// best fit and solves with Brent's method.
func (b *ScalarBackend) Confidence(params *param.Set, parameter *param.Parameter, fn StatFunc, opts ConfidenceOptions) (*ConfidenceOutput, error) {
	return confidenceByRoot(b, params, parameter, fn, opts)
}

var (
	_ Optimizer           = (*ScalarBackend)(nil)
	_ ConfidenceEstimator = (*ScalarBackend)(nil)
)
