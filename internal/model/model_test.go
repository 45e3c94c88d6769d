package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerLawEval(t *testing.T) {
	pl := NewPowerLaw("src", 2.0, 2.0, 1.0)

	assert.InDelta(t, 2.0, pl.Eval(1), 1e-12)
	assert.InDelta(t, 0.5, pl.Eval(2), 1e-12)
	assert.InDelta(t, 0.02, pl.Eval(10), 1e-12)
}

func TestGaussianEval(t *testing.T) {
	g := NewGaussian("line", 3.0, 5.0, 1.0)

	assert.InDelta(t, 3.0, g.Eval(5), 1e-12)
	assert.InDelta(t, 3.0*math.Exp(-0.5), g.Eval(6), 1e-12)
	assert.InDelta(t, g.Eval(4), g.Eval(6), 1e-12)
}

func TestParametersUniqueNames(t *testing.T) {
	models := NewModels(
		NewPowerLaw("src", 1, 2, 1),
		NewGaussian("line", 1, 5, 1),
	)

	assert.Equal(t, []string{
		"src.amplitude", "src.index", "src.reference",
		"line.amplitude", "line.mean", "line.sigma",
	}, models.ParametersUniqueNames())
}

func TestLinkedParameterAppearsAtBothPositions(t *testing.T) {
	a := NewPowerLaw("a", 1, 2, 1)
	b := NewPowerLaw("b", 1, 2, 1)
	require.NoError(t, b.LinkParameter("index", a.Index()))

	models := NewModels(a, b)
	params := models.Parameters()
	assert.Equal(t, 6, params.Len())
	assert.Equal(t, 5, params.Unique().Len())

	a.Index().SetValue(3.1)
	assert.Equal(t, 3.1, b.Index().Value())
}

func TestCopyPreservesLinks(t *testing.T) {
	a := NewPowerLaw("a", 1, 2, 1)
	b := NewPowerLaw("b", 1, 2, 1)
	require.NoError(t, b.LinkParameter("index", a.Index()))

	clone := NewModels(a, b).Copy()
	ca := clone.At(0).(*PowerLaw)
	cb := clone.At(1).(*PowerLaw)

	// The copies share a fresh parameter with each other, not with the
	// originals.
	assert.Same(t, ca.Index(), cb.Index())
	assert.NotSame(t, a.Index(), ca.Index())

	ca.Index().SetValue(4)
	assert.Equal(t, 2.0, a.Index().Value())
}

func TestSpecRoundTrip(t *testing.T) {
	pl := NewPowerLaw("src", 3e-12, 2.7, 1.0)
	pl.Amplitude().SetUnit("cm-2 s-1 TeV-1")
	pl.Amplitude().SetUncertainty(4e-13)

	spec := ToSpec(pl)
	assert.Equal(t, "src", spec.Name)
	assert.Equal(t, "powerlaw", spec.Type)
	require.Len(t, spec.Parameters, 3)
	assert.Equal(t, 4e-13, spec.Parameters[0].Error)
	require.NotNil(t, spec.Parameters[0].Min)
	assert.Equal(t, 0.0, *spec.Parameters[0].Min)
	assert.Nil(t, spec.Parameters[0].Max)

	rebuilt, err := FromSpec(spec)
	require.NoError(t, err)
	rpl := rebuilt.(*PowerLaw)
	assert.Equal(t, 3e-12, rpl.Amplitude().Value())
	assert.Equal(t, 2.7, rpl.Index().Value())
	assert.True(t, rpl.Reference().Frozen())
	assert.Equal(t, "cm-2 s-1 TeV-1", rpl.Amplitude().Unit())
}

func TestFromSpecUnknownType(t *testing.T) {
	_, err := FromSpec(Spec{Name: "x", Type: "logparabola"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logparabola")
}

func TestFromSpecUnknownParameter(t *testing.T) {
	_, err := FromSpec(Spec{
		Name: "src", Type: "powerlaw",
		Parameters: []ParameterSpec{{Name: "cutoff", Value: 1}},
	})
	require.Error(t, err)
}
