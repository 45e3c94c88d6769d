// Package param provides the mutable parameter model shared by models,
// datasets and the fit engine.
//
// A Parameter stores its value split into a dimensionless factor and a
// physical scale (value = factor * scale). Optimizer backends only ever see
// factors, which keeps parameters of wildly different magnitudes
// well-conditioned. Parameters are shared by pointer: the same *Parameter may
// appear in several models or datasets (a "linked" parameter), and a mutation
// through any holder is observed by all of them.
package param

import (
	"fmt"
	"math"
)

// Parameter is a named scalar with bounds, scale and frozen state.
// The zero value is not usable; create parameters with New.
type Parameter struct {
	name   string
	factor float64
	scale  float64
	unit   string
	min    float64 // NaN means unbounded
	max    float64 // NaN means unbounded
	frozen bool

	// uncertainty is the 1-sigma error in physical units,
	// written back by the covariance step.
	uncertainty float64

	scanValues []float64
}

// New creates a free, unbounded parameter with scale 1.
func New(name string, value float64) *Parameter {
	return &Parameter{
		name:   name,
		factor: value,
		scale:  1,
		min:    math.NaN(),
		max:    math.NaN(),
	}
}

// Name returns the parameter name. Names identify parameters within a model;
// identity across models is pointer identity, not the name.
func (p *Parameter) Name() string { return p.name }

// Value returns the physical value (factor * scale).
func (p *Parameter) Value() float64 { return p.factor * p.scale }

// SetValue sets the physical value, keeping the current scale.
func (p *Parameter) SetValue(v float64) { p.factor = v / p.scale }

// Factor returns the dimensionless factor seen by optimizer backends.
func (p *Parameter) Factor() float64 { return p.factor }

// SetFactor sets the factor, keeping the current scale.
func (p *Parameter) SetFactor(f float64) { p.factor = f }

// Scale returns the physical scale.
func (p *Parameter) Scale() float64 { return p.scale }

// SetScale changes the scale, preserving the physical value.
func (p *Parameter) SetScale(s float64) {
	v := p.Value()
	p.scale = s
	p.factor = v / s
}

// Autoscale sets the scale to the current value so the factor becomes 1.
// Zero-valued parameters get scale 1. The physical value is preserved exactly.
func (p *Parameter) Autoscale() {
	v := p.Value()
	if v == 0 {
		p.scale = 1
		p.factor = 0
		return
	}
	p.scale = v
	p.factor = 1
}

// Unit returns the physical unit string.
func (p *Parameter) Unit() string { return p.unit }

// SetUnit sets the physical unit string.
func (p *Parameter) SetUnit(unit string) { p.unit = unit }

// Min returns the lower bound, NaN if unbounded.
func (p *Parameter) Min() float64 { return p.min }

// Max returns the upper bound, NaN if unbounded.
func (p *Parameter) Max() float64 { return p.max }

// SetBounds sets the allowed range in physical units. Pass NaN to leave a
// side unbounded.
func (p *Parameter) SetBounds(min, max float64) {
	p.min = min
	p.max = max
}

// Frozen reports whether the parameter is excluded from optimization.
func (p *Parameter) Frozen() bool { return p.frozen }

// SetFrozen freezes or thaws the parameter.
func (p *Parameter) SetFrozen(frozen bool) { p.frozen = frozen }

// Uncertainty returns the 1-sigma error in physical units, zero until a
// covariance step has written it.
func (p *Parameter) Uncertainty() float64 { return p.uncertainty }

// SetUncertainty sets the 1-sigma error in physical units.
func (p *Parameter) SetUncertainty(sigma float64) { p.uncertainty = sigma }

// ScanValues returns the configured scan points in physical units.
func (p *Parameter) ScanValues() []float64 { return p.scanValues }

// SetScanValues configures explicit scan points for profile and surface scans.
func (p *Parameter) SetScanValues(values []float64) {
	p.scanValues = append([]float64(nil), values...)
}

// SetScanRange configures n equally spaced scan points over [min, max].
func (p *Parameter) SetScanRange(min, max float64, n int) {
	if n < 2 {
		p.scanValues = []float64{min}
		return
	}
	values := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range values {
		values[i] = min + float64(i)*step
	}
	p.scanValues = values
}

// CheckLimits returns a BoundsError if the physical value lies outside the
// declared bounds. Values are never clamped.
func (p *Parameter) CheckLimits() error {
	v := p.Value()
	if !math.IsNaN(p.min) && v < p.min {
		return &BoundsError{Name: p.name, Value: v, Min: p.min, Max: p.max}
	}
	if !math.IsNaN(p.max) && v > p.max {
		return &BoundsError{Name: p.name, Value: v, Min: p.min, Max: p.max}
	}
	return nil
}

// Copy returns a deep copy. The copy is a distinct identity: links to the
// original are not preserved.
func (p *Parameter) Copy() *Parameter {
	c := *p
	c.scanValues = append([]float64(nil), p.scanValues...)
	return &c
}

func (p *Parameter) String() string {
	state := "free"
	if p.frozen {
		state = "frozen"
	}
	return fmt.Sprintf("%s=%g %s (%s)", p.name, p.Value(), p.unit, state)
}

// BoundsError reports a parameter whose value lies outside its declared
// bounds.
type BoundsError struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("parameter %q value %g outside bounds [%g, %g]", e.Name, e.Value, e.Min, e.Max)
}

// NotFoundError reports a parameter lookup that matched nothing.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("parameter %q not found", e.Name)
}
