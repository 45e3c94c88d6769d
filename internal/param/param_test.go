package param

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorScaleRoundTrip(t *testing.T) {
	p := New("amplitude", 3e-12)

	assert.Equal(t, 3e-12, p.Value())
	assert.Equal(t, 3e-12, p.Factor())
	assert.Equal(t, 1.0, p.Scale())

	p.SetScale(1e-12)
	assert.InDelta(t, 3.0, p.Factor(), 1e-12)
	assert.InDelta(t, 3e-12, p.Value(), 1e-24)

	p.SetFactor(5)
	assert.InDelta(t, 5e-12, p.Value(), 1e-24)

	p.SetValue(7e-12)
	assert.InDelta(t, 7.0, p.Factor(), 1e-12)
}

func TestAutoscale(t *testing.T) {
	p := New("amplitude", 4.2e-11)
	p.Autoscale()

	assert.Equal(t, 1.0, p.Factor())
	assert.Equal(t, 4.2e-11, p.Scale())
	assert.Equal(t, 4.2e-11, p.Value())
}

func TestAutoscaleZeroValue(t *testing.T) {
	p := New("offset", 0)
	p.SetScale(100)
	p.Autoscale()

	assert.Equal(t, 0.0, p.Factor())
	assert.Equal(t, 1.0, p.Scale())
	assert.Equal(t, 0.0, p.Value())
}

func TestCheckLimits(t *testing.T) {
	p := New("index", 2.5)
	p.SetBounds(0, 5)
	require.NoError(t, p.CheckLimits())

	p.SetValue(6)
	err := p.CheckLimits()
	require.Error(t, err)

	var bounds *BoundsError
	require.True(t, errors.As(err, &bounds))
	assert.Equal(t, "index", bounds.Name)
	assert.Equal(t, 6.0, bounds.Value)

	// One-sided bounds leave the other side open.
	p.SetBounds(0, math.NaN())
	require.NoError(t, p.CheckLimits())
	p.SetValue(-1)
	require.Error(t, p.CheckLimits())
}

func TestSetScanRange(t *testing.T) {
	p := New("index", 2)
	p.SetScanRange(1, 3, 5)

	assert.Equal(t, []float64{1, 1.5, 2, 2.5, 3}, p.ScanValues())

	p.SetScanRange(1, 3, 1)
	assert.Equal(t, []float64{1}, p.ScanValues())
}

func TestCopyIsDistinct(t *testing.T) {
	p := New("sigma", 1.5)
	p.SetScanValues([]float64{1, 2})

	c := p.Copy()
	c.SetValue(99)
	c.SetScanValues([]float64{7})

	assert.Equal(t, 1.5, p.Value())
	assert.Equal(t, []float64{1, 2}, p.ScanValues())
}
