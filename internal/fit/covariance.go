package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/gammafit/internal/param"
)

// Covariance maps a backend factor-space covariance onto the full parameter
// list in physical units. Parameters outside the fitted unique free set keep
// NaN entries: "not estimated" stays distinguishable from a measured zero.
type Covariance struct {
	params *param.Set
	data   *mat.Dense
}

// FromFactorMatrix expands a factor-unit covariance over the unique free
// parameters onto the full (possibly aliased) parameter list. A parameter
// shared between several positions receives identical entries at each of
// them. The per-parameter 1-sigma uncertainties are written back onto the
// live parameters.
func FromFactorMatrix(params *param.Set, factorMatrix *mat.SymDense) (*Covariance, error) {
	free := params.UniqueFree().All()
	dim := factorMatrix.SymmetricDim()
	if len(free) != dim {
		return nil, fmt.Errorf("factor matrix dimension %d does not match %d unique free parameters", dim, len(free))
	}

	// Position of every fitted parameter in factor vector order.
	factorIndex := make(map[*param.Parameter]int, len(free))
	for i, p := range free {
		factorIndex[p] = i
	}

	n := params.Len()
	data := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			data.Set(i, j, math.NaN())
		}
	}

	for i := 0; i < n; i++ {
		pi := params.At(i)
		ui, ok := factorIndex[pi]
		if !ok {
			continue
		}
		for j := 0; j < n; j++ {
			pj := params.At(j)
			uj, ok := factorIndex[pj]
			if !ok {
				continue
			}
			data.Set(i, j, factorMatrix.At(ui, uj)*pi.Scale()*pj.Scale())
		}
	}

	for _, p := range free {
		i := params.Index(p)
		if variance := data.At(i, i); variance >= 0 {
			p.SetUncertainty(math.Sqrt(variance))
		}
	}

	return &Covariance{params: params, data: data}, nil
}

// Matrix returns the covariance in physical units, indexed by the positions
// of the parameter list.
func (c *Covariance) Matrix() *mat.Dense { return c.data }

// Get returns the covariance between two parameters, NaN when either lies
// outside the estimated set.
func (c *Covariance) Get(pi, pj *param.Parameter) float64 {
	i := c.params.Index(pi)
	j := c.params.Index(pj)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return c.data.At(i, j)
}
