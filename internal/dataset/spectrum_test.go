package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/gammafit/internal/model"
)

func flatSpectrum(t *testing.T, counts []float64, exposure float64, stat Statistic) (*SpectrumDataset, *model.PowerLaw) {
	t.Helper()
	// index 0 makes the power law a constant, so Npred = amplitude * exposure
	// in every bin.
	pl := model.NewPowerLaw("src", 1, 0, 1)
	energy := make([]float64, len(counts))
	for i := range energy {
		energy[i] = float64(i + 1)
	}
	ds, err := NewSpectrumDataset("test", energy, counts, exposure, stat, model.NewModels(pl))
	require.NoError(t, err)
	return ds, pl
}

func TestNewSpectrumDatasetValidation(t *testing.T) {
	models := model.NewModels(model.NewPowerLaw("src", 1, 2, 1))

	_, err := NewSpectrumDataset("bad", []float64{1, 2}, []float64{1}, 1, Cash, models)
	require.Error(t, err)

	_, err = NewSpectrumDataset("bad", []float64{1}, []float64{1}, 0, Cash, models)
	require.Error(t, err)

	_, err = NewSpectrumDataset("bad", []float64{1}, []float64{1}, 1, Statistic("wstat"), models)
	require.Error(t, err)
}

func TestNpred(t *testing.T) {
	ds, pl := flatSpectrum(t, []float64{0, 0, 0}, 10, Cash)
	pl.Amplitude().SetValue(2)

	for i := range ds.Counts() {
		assert.InDelta(t, 20.0, ds.Npred(i), 1e-12)
	}
}

func TestCashStat(t *testing.T) {
	ds, pl := flatSpectrum(t, []float64{5, 5}, 1, Cash)
	pl.Amplitude().SetValue(5)

	// mu == n per bin: 2 * (5 - 5 ln 5) each.
	want := 2 * 2 * (5 - 5*math.Log(5))
	assert.InDelta(t, want, ds.StatSum(), 1e-10)

	// The Cash statistic is minimal at mu == n.
	atMin := ds.StatSum()
	pl.Amplitude().SetValue(4)
	assert.Greater(t, ds.StatSum(), atMin)
	pl.Amplitude().SetValue(6)
	assert.Greater(t, ds.StatSum(), atMin)
}

func TestCashStatFiniteAtZeroPrediction(t *testing.T) {
	ds, pl := flatSpectrum(t, []float64{3}, 1, Cash)
	pl.Amplitude().SetValue(0)

	assert.False(t, math.IsInf(ds.StatSum(), 0))
	assert.False(t, math.IsNaN(ds.StatSum()))
}

func TestChi2Stat(t *testing.T) {
	ds, pl := flatSpectrum(t, []float64{4, 9}, 1, Chi2)
	pl.Amplitude().SetValue(5)

	// (4-5)^2/4 + (9-5)^2/9
	assert.InDelta(t, 0.25+16.0/9.0, ds.StatSum(), 1e-10)
}

func TestSimulateIsDeterministic(t *testing.T) {
	ds1, pl1 := flatSpectrum(t, make([]float64, 50), 1, Cash)
	pl1.Amplitude().SetValue(12)
	ds1.Simulate(7)

	ds2, pl2 := flatSpectrum(t, make([]float64, 50), 1, Cash)
	pl2.Amplitude().SetValue(12)
	ds2.Simulate(7)

	assert.Equal(t, ds1.Counts(), ds2.Counts())

	// Counts should scatter around the mean of 12.
	var sum float64
	for _, n := range ds1.Counts() {
		sum += n
	}
	assert.InDelta(t, 12, sum/50, 3)
}

func TestCollectionMergesSharedModels(t *testing.T) {
	shared := model.NewModels(model.NewPowerLaw("src", 1, 2, 1))
	ds1, err := NewSpectrumDataset("a", []float64{1}, []float64{1}, 1, Cash, shared)
	require.NoError(t, err)
	ds2, err := NewSpectrumDataset("b", []float64{1}, []float64{2}, 1, Cash, shared)
	require.NoError(t, err)

	c := NewCollection(ds1, ds2)
	assert.Equal(t, 1, c.Models().Len())
	assert.Equal(t, 3, c.Parameters().Len())
	assert.InDelta(t, ds1.StatSum()+ds2.StatSum(), c.StatSum(), 1e-12)
}
