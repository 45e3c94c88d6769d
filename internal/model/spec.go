package model

import (
	"fmt"
	"math"
)

// ParameterSpec is the serializable form of a parameter. Unbounded sides are
// omitted from the output rather than written as NaN.
type ParameterSpec struct {
	Name   string   `yaml:"name" json:"name"`
	Value  float64  `yaml:"value" json:"value"`
	Unit   string   `yaml:"unit,omitempty" json:"unit,omitempty"`
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Frozen bool     `yaml:"frozen,omitempty" json:"frozen,omitempty"`
	Error  float64  `yaml:"error,omitempty" json:"error,omitempty"`
}

// Spec is the serializable form of a model.
type Spec struct {
	Name       string          `yaml:"name" json:"name"`
	Type       string          `yaml:"type" json:"type"`
	Parameters []ParameterSpec `yaml:"parameters" json:"parameters"`
}

// ToSpec captures the current state of a model.
func ToSpec(m Model) Spec {
	spec := Spec{Name: m.Name(), Type: m.Type()}
	for _, p := range m.Parameters().All() {
		ps := ParameterSpec{
			Name:   p.Name(),
			Value:  p.Value(),
			Unit:   p.Unit(),
			Frozen: p.Frozen(),
			Error:  p.Uncertainty(),
		}
		if v := p.Min(); !math.IsNaN(v) {
			ps.Min = &v
		}
		if v := p.Max(); !math.IsNaN(v) {
			ps.Max = &v
		}
		spec.Parameters = append(spec.Parameters, ps)
	}
	return spec
}

// Specs captures the current state of every model in the collection.
func (m *Models) Specs() []Spec {
	specs := make([]Spec, 0, len(m.models))
	for _, md := range m.models {
		specs = append(specs, ToSpec(md))
	}
	return specs
}

// FromSpec builds a model from its serialized form. Parameter entries
// override the constructor defaults by name; unknown parameter names are an
// error.
func FromSpec(spec Spec) (Model, error) {
	var m Model
	switch spec.Type {
	case "powerlaw":
		m = NewPowerLaw(spec.Name, 1, 2, 1)
	case "gaussian":
		m = NewGaussian(spec.Name, 1, 0, 1)
	default:
		return nil, fmt.Errorf("unknown model type %q", spec.Type)
	}

	params := m.Parameters()
	for _, ps := range spec.Parameters {
		p, err := params.ByName(ps.Name)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", spec.Name, err)
		}
		p.SetValue(ps.Value)
		p.SetUnit(ps.Unit)
		min, max := math.NaN(), math.NaN()
		if ps.Min != nil {
			min = *ps.Min
		}
		if ps.Max != nil {
			max = *ps.Max
		}
		// Constructor bounds survive unless the spec sets its own.
		if ps.Min != nil || ps.Max != nil {
			p.SetBounds(min, max)
		}
		p.SetFrozen(ps.Frozen)
	}
	return m, nil
}
