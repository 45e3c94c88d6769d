package model

import (
	"math"

	"github.com/cwbudde/gammafit/internal/param"
)

// PowerLaw is the standard gamma-ray spectral shape
//
//	phi(x) = amplitude * (x / reference)^(-index)
//
// The reference energy is frozen by default; fitting it together with the
// amplitude would be degenerate.
type PowerLaw struct {
	name      string
	amplitude *param.Parameter
	index     *param.Parameter
	reference *param.Parameter
}

// NewPowerLaw creates a power law with the given starting values.
func NewPowerLaw(name string, amplitude, index, reference float64) *PowerLaw {
	a := param.New("amplitude", amplitude)
	a.SetBounds(0, math.NaN())
	i := param.New("index", index)
	r := param.New("reference", reference)
	r.SetFrozen(true)
	return &PowerLaw{name: name, amplitude: a, index: i, reference: r}
}

func (m *PowerLaw) Name() string { return m.name }
func (m *PowerLaw) Type() string { return "powerlaw" }

// Amplitude returns the amplitude parameter.
func (m *PowerLaw) Amplitude() *param.Parameter { return m.amplitude }

// Index returns the spectral index parameter.
func (m *PowerLaw) Index() *param.Parameter { return m.index }

// Reference returns the (frozen) reference energy parameter.
func (m *PowerLaw) Reference() *param.Parameter { return m.reference }

func (m *PowerLaw) Parameters() *param.Set {
	return param.NewSet(m.amplitude, m.index, m.reference)
}

func (m *PowerLaw) Eval(x float64) float64 {
	return m.amplitude.Value() * math.Pow(x/m.reference.Value(), -m.index.Value())
}

// LinkParameter replaces the named parameter with p. The parameter is then
// shared with every other holder of p and fitted as a single degree of
// freedom.
func (m *PowerLaw) LinkParameter(name string, p *param.Parameter) error {
	switch name {
	case "amplitude":
		m.amplitude = p
	case "index":
		m.index = p
	case "reference":
		m.reference = p
	default:
		return &param.NotFoundError{Name: name}
	}
	return nil
}

func (m *PowerLaw) copyWith(remap func(*param.Parameter) *param.Parameter) Model {
	return &PowerLaw{
		name:      m.name,
		amplitude: remap(m.amplitude),
		index:     remap(m.index),
		reference: remap(m.reference),
	}
}

// Gaussian is a spectral line
//
//	phi(x) = amplitude * exp(-(x - mean)^2 / (2 sigma^2))
type Gaussian struct {
	name      string
	amplitude *param.Parameter
	mean      *param.Parameter
	sigma     *param.Parameter
}

// NewGaussian creates a Gaussian line with the given starting values.
func NewGaussian(name string, amplitude, mean, sigma float64) *Gaussian {
	a := param.New("amplitude", amplitude)
	a.SetBounds(0, math.NaN())
	mu := param.New("mean", mean)
	s := param.New("sigma", sigma)
	s.SetBounds(0, math.NaN())
	return &Gaussian{name: name, amplitude: a, mean: mu, sigma: s}
}

func (m *Gaussian) Name() string { return m.name }
func (m *Gaussian) Type() string { return "gaussian" }

// Amplitude returns the amplitude parameter.
func (m *Gaussian) Amplitude() *param.Parameter { return m.amplitude }

// Mean returns the line position parameter.
func (m *Gaussian) Mean() *param.Parameter { return m.mean }

// Sigma returns the line width parameter.
func (m *Gaussian) Sigma() *param.Parameter { return m.sigma }

func (m *Gaussian) Parameters() *param.Set {
	return param.NewSet(m.amplitude, m.mean, m.sigma)
}

func (m *Gaussian) Eval(x float64) float64 {
	d := (x - m.mean.Value()) / m.sigma.Value()
	return m.amplitude.Value() * math.Exp(-d*d/2)
}

// LinkParameter replaces the named parameter with p. The parameter is then
// shared with every other holder of p and fitted as a single degree of
// freedom.
func (m *Gaussian) LinkParameter(name string, p *param.Parameter) error {
	switch name {
	case "amplitude":
		m.amplitude = p
	case "mean":
		m.mean = p
	case "sigma":
		m.sigma = p
	default:
		return &param.NotFoundError{Name: name}
	}
	return nil
}

func (m *Gaussian) copyWith(remap func(*param.Parameter) *param.Parameter) Model {
	return &Gaussian{
		name:      m.name,
		amplitude: remap(m.amplitude),
		mean:      remap(m.mean),
		sigma:     remap(m.sigma),
	}
}

var (
	_ SpectralModel = (*PowerLaw)(nil)
	_ SpectralModel = (*Gaussian)(nil)
)
