// Package model provides the minimal physical model graph consumed by the
// fit engine: named models owning shared parameters, with deep copy,
// qualified parameter names and a covariance block.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/gammafit/internal/param"
)

// Model is a named parametric component. Implementations live in this
// package; copyWith keeps deep copies link-preserving across models.
type Model interface {
	Name() string
	Type() string
	Parameters() *param.Set

	copyWith(remap func(*param.Parameter) *param.Parameter) Model
}

// SpectralModel is a model evaluable as a 1D differential flux.
type SpectralModel interface {
	Model
	Eval(x float64) float64
}

// Models is an ordered collection of models. Two models may share a
// parameter by pointer (a linked parameter); the flattened parameter set
// then contains that parameter at several positions.
type Models struct {
	models     []Model
	covariance *mat.Dense
}

// NewModels creates a collection holding the given models in order.
func NewModels(models ...Model) *Models {
	return &Models{models: append([]Model(nil), models...)}
}

// Add appends models to the collection.
func (m *Models) Add(models ...Model) {
	m.models = append(m.models, models...)
}

// Len returns the number of models.
func (m *Models) Len() int { return len(m.models) }

// At returns the model at position i.
func (m *Models) At(i int) Model { return m.models[i] }

// All returns the models as a slice copy.
func (m *Models) All() []Model { return append([]Model(nil), m.models...) }

// ByName returns the model with the given name.
func (m *Models) ByName(name string) (Model, error) {
	for _, md := range m.models {
		if md.Name() == name {
			return md, nil
		}
	}
	return nil, fmt.Errorf("model %q not found", name)
}

// Parameters returns the flattened parameter set in model order. Linked
// parameters appear once per holding model.
func (m *Models) Parameters() *param.Set {
	out := param.NewSet()
	for _, md := range m.models {
		out.Add(md.Parameters().All()...)
	}
	return out
}

// ParametersUniqueNames returns the "model.parameter" qualified name for
// every position of the flattened parameter set.
func (m *Models) ParametersUniqueNames() []string {
	var names []string
	for _, md := range m.models {
		for _, p := range md.Parameters().All() {
			names = append(names, md.Name()+"."+p.Name())
		}
	}
	return names
}

// Copy returns a deep copy. Parameter links between models are preserved:
// a parameter shared by two models is shared by their copies.
func (m *Models) Copy() *Models {
	mapping := make(map[*param.Parameter]*param.Parameter)
	remap := func(p *param.Parameter) *param.Parameter {
		if c, ok := mapping[p]; ok {
			return c
		}
		c := p.Copy()
		mapping[p] = c
		return c
	}

	out := &Models{models: make([]Model, len(m.models))}
	for i, md := range m.models {
		out.models[i] = md.copyWith(remap)
	}
	if m.covariance != nil {
		var c mat.Dense
		c.CloneFrom(m.covariance)
		out.covariance = &c
	}
	return out
}

// Covariance returns the covariance block in physical units over the
// flattened parameter positions, nil until a covariance step has set it.
func (m *Models) Covariance() *mat.Dense { return m.covariance }

// SetCovariance replaces the covariance block in place.
func (m *Models) SetCovariance(cov *mat.Dense) { m.covariance = cov }
