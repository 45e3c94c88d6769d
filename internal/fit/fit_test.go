package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/gammafit/internal/backend"
	"github.com/cwbudde/gammafit/internal/model"
	"github.com/cwbudde/gammafit/internal/param"
)

// quadDatasets adapts a model collection and a statistic closure to the
// Datasets contract for engine tests.
type quadDatasets struct {
	models *model.Models
	fn     func() float64
}

func (d *quadDatasets) StatSum() float64       { return d.fn() }
func (d *quadDatasets) Parameters() *param.Set { return d.models.Parameters() }
func (d *quadDatasets) Models() *model.Models  { return d.models }

// newProblem builds a power law whose statistic is a unit paraboloid with the
// minimum at amplitude 5, index 2, behaving like -2 ln L of unit Gaussians.
func newProblem() (*quadDatasets, *model.PowerLaw) {
	pl := model.NewPowerLaw("src", 1, 1.5, 1)
	ds := &quadDatasets{models: model.NewModels(pl)}
	ds.fn = func() float64 {
		da := pl.Amplitude().Value() - 5
		di := pl.Index().Value() - 2
		return da*da + di*di
	}
	return ds, pl
}

func TestOptimizeFindsMinimum(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	result, err := f.Optimize(ds)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, backend.Quadratic, result.Backend())
	assert.Equal(t, "bfgs", result.Method())
	assert.InDelta(t, 0, result.TotalStat(), 1e-6)
	assert.Greater(t, result.NFev(), 0)

	// The live parameters hold the best fit.
	assert.InDelta(t, 5, pl.Amplitude().Value(), 1e-4)
	assert.InDelta(t, 2, pl.Index().Value(), 1e-4)
	assert.True(t, pl.Reference().Frozen())
}

func TestOptimizeResultIsSnapshot(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	result, err := f.Optimize(ds)
	require.NoError(t, err)

	best := result.Parameters().At(0).Value()
	pl.Amplitude().SetValue(99)

	assert.InDelta(t, best, result.Parameters().At(0).Value(), 1e-12)
}

func TestOptimizeNoFreeParameters(t *testing.T) {
	ds, pl := newProblem()
	pl.Amplitude().SetFrozen(true)
	pl.Index().SetFrozen(true)

	f := New()
	_, err := f.Optimize(ds)
	require.ErrorIs(t, err, ErrNoFreeParameters)
}

func TestOptimizeRejectsOutOfBoundsStart(t *testing.T) {
	ds, pl := newProblem()
	pl.Index().SetBounds(0, 1) // current value 1.5 violates this

	f := New()
	_, err := f.Optimize(ds)
	require.Error(t, err)

	var bounds *param.BoundsError
	require.True(t, errors.As(err, &bounds))
	assert.Equal(t, "index", bounds.Name)
}

func TestOptimizeTraceUsesQualifiedNames(t *testing.T) {
	ds, _ := newProblem()

	f := New(WithStoreTrace(true))
	result, err := f.Optimize(ds)
	require.NoError(t, err)

	trace := result.Trace()
	require.NotNil(t, trace)
	assert.Equal(t, []string{"total_stat", "src.amplitude", "src.index"}, trace.Columns)
	assert.Equal(t, result.NFev(), trace.Len())
}

func TestRunWithCovariance(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	result, err := f.Run(ds)
	require.NoError(t, err)
	assert.True(t, result.Success())
	require.NotNil(t, result.CovarianceResult())

	// Unit Gaussians in physical units: both uncertainties are 1.
	assert.InDelta(t, 1, pl.Amplitude().Uncertainty(), 1e-3)
	assert.InDelta(t, 1, pl.Index().Uncertainty(), 1e-3)

	m := result.CovarianceResult().Matrix()
	require.NotNil(t, m)
	assert.InDelta(t, 1, m.At(0, 0), 1e-3)
	assert.InDelta(t, 1, m.At(1, 1), 1e-3)
	// The frozen reference was not estimated.
	assert.True(t, math.IsNaN(m.At(2, 2)))

	// The covariance is attached to the live models and to the snapshot.
	assert.NotNil(t, ds.Models().Covariance())
	assert.NotNil(t, result.Models().Covariance())

	// The covariance probe left the best-fit values in place.
	assert.InDelta(t, 5, pl.Amplitude().Value(), 1e-4)
	assert.InDelta(t, 2, pl.Index().Value(), 1e-4)
}

func TestRunSkipsCovarianceWithoutCapability(t *testing.T) {
	ds, _ := newProblem()

	f := New(WithBackend(backend.Simplex))
	result, err := f.Run(ds)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Nil(t, result.CovarianceResult())
	assert.Nil(t, ds.Models().Covariance())
}

func TestCovarianceWithLinkedParameter(t *testing.T) {
	a := model.NewPowerLaw("a", 1, 1.5, 1)
	b := model.NewPowerLaw("b", 1, 1.5, 1)
	require.NoError(t, b.LinkParameter("index", a.Index()))

	ds := &quadDatasets{models: model.NewModels(a, b)}
	ds.fn = func() float64 {
		d1 := a.Amplitude().Value() - 2
		d2 := b.Amplitude().Value() - 3
		d3 := a.Index().Value() - 2
		return d1*d1 + d2*d2 + d3*d3
	}

	f := New()
	result, err := f.Run(ds)
	require.NoError(t, err)
	require.NotNil(t, result.CovarianceResult())

	m := result.CovarianceResult().Matrix()
	rows, cols := m.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 6, cols)

	// The linked index sits at positions 1 (model a) and 4 (model b) and
	// carries identical entries at both.
	assert.InDelta(t, m.At(1, 1), m.At(4, 4), 1e-12)
	assert.InDelta(t, m.At(1, 0), m.At(4, 0), 1e-12)
	assert.InDelta(t, 1, m.At(1, 1), 1e-3)
}

func TestCovarianceAllFrozenIsError(t *testing.T) {
	ds, pl := newProblem()
	pl.Amplitude().SetFrozen(true)
	pl.Index().SetFrozen(true)

	f := New()
	_, err := f.Covariance(ds, nil)
	require.ErrorIs(t, err, ErrNoFreeParameters)
}

func TestCovarianceTwiceIsIdempotent(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	_, err := f.Optimize(ds)
	require.NoError(t, err)

	params := ds.Parameters().All()
	values := make([]float64, len(params))
	frozen := make([]bool, len(params))
	for i, p := range params {
		values[i] = p.Value()
		frozen[i] = p.Frozen()
	}

	first, err := f.Covariance(ds, nil)
	require.NoError(t, err)
	require.True(t, first.Success())
	second, err := f.Covariance(ds, nil)
	require.NoError(t, err)
	require.True(t, second.Success())

	assert.InDelta(t, first.Matrix().At(0, 0), second.Matrix().At(0, 0), 1e-9)
	assert.InDelta(t, first.Matrix().At(1, 1), second.Matrix().At(1, 1), 1e-9)

	// Neither call moved a value or touched a frozen flag.
	for i, p := range params {
		assert.InDelta(t, values[i], p.Value(), 1e-12, p.Name())
		assert.Equal(t, frozen[i], p.Frozen(), p.Name())
	}
	assert.False(t, pl.Amplitude().Frozen())
}

func TestConfidenceTwiceIsIdempotent(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	_, err := f.Optimize(ds)
	require.NoError(t, err)

	value := pl.Index().Value()

	first, err := f.Confidence(ds, "index", 1, false)
	require.NoError(t, err)
	require.True(t, first.Success())
	second, err := f.Confidence(ds, "index", 1, false)
	require.NoError(t, err)
	require.True(t, second.Success())

	assert.InDelta(t, first.ErrP, second.ErrP, 1e-6)
	assert.InDelta(t, first.ErrN, second.ErrN, 1e-6)
	assert.InDelta(t, value, pl.Index().Value(), 1e-9)
	assert.False(t, pl.Index().Frozen())
}

func TestConfidencePhysicalUnits(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	_, err := f.Optimize(ds)
	require.NoError(t, err)

	valueBefore := pl.Index().Value()
	result, err := f.Confidence(ds, "index", 1, false)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.InDelta(t, 1, result.ErrP, 1e-4)
	assert.InDelta(t, 1, result.ErrN, 1e-4)

	// The probed parameter is rolled back.
	assert.InDelta(t, valueBefore, pl.Index().Value(), 1e-9)
	assert.False(t, pl.Index().Frozen())
}

func TestStatProfile(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	_, err := f.Optimize(ds)
	require.NoError(t, err)

	// Descending order must be preserved, not sorted.
	pl.Index().SetScanValues([]float64{2.5, 2.0, 1.5})
	valueBefore := pl.Index().Value()

	profile, err := f.StatProfile(ds, pl.Index(), false)
	require.NoError(t, err)

	assert.Equal(t, "src.index", profile.ParameterName)
	assert.Equal(t, []float64{2.5, 2.0, 1.5}, profile.Values)
	require.Len(t, profile.Stats, 3)
	assert.InDelta(t, 0.25, profile.Stats[0], 1e-6)
	assert.InDelta(t, 0.0, profile.Stats[1], 1e-6)
	assert.InDelta(t, 0.25, profile.Stats[2], 1e-6)
	assert.Empty(t, profile.Results)

	assert.InDelta(t, valueBefore, pl.Index().Value(), 1e-9)
}

func TestStatProfileReoptimize(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	_, err := f.Optimize(ds)
	require.NoError(t, err)

	pl.Index().SetScanValues([]float64{1.8, 2.0, 2.2})

	profile, err := f.StatProfile(ds, "index", true)
	require.NoError(t, err)

	require.Len(t, profile.Results, 3)
	for _, r := range profile.Results {
		assert.True(t, r.Success())
	}
	// The scanned parameter is thawed again afterwards.
	assert.False(t, pl.Index().Frozen())
}

func TestStatProfileRequiresScanValues(t *testing.T) {
	ds, _ := newProblem()

	f := New()
	_, err := f.StatProfile(ds, "index", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan values")
}

func TestStatProfileProgress(t *testing.T) {
	ds, pl := newProblem()
	pl.Index().SetScanValues([]float64{1.9, 2.0, 2.1})

	var calls [][2]int
	f := New(WithProgress(func(completed, total int) {
		calls = append(calls, [2]int{completed, total})
	}))

	_, err := f.StatProfile(ds, "index", false)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, calls)
}

func TestStatSurfaceShape(t *testing.T) {
	ds, pl := newProblem()

	pl.Amplitude().SetScanValues([]float64{4.5, 5, 5.5})
	pl.Index().SetScanValues([]float64{1.5, 2})

	f := New()
	surface, err := f.StatSurface(ds, "amplitude", "index", false)
	require.NoError(t, err)

	assert.Equal(t, "src.amplitude", surface.XName)
	assert.Equal(t, "src.index", surface.YName)
	require.Len(t, surface.Stats, 3)
	for i, xv := range surface.XValues {
		require.Len(t, surface.Stats[i], 2)
		for j, yv := range surface.YValues {
			want := (xv-5)*(xv-5) + (yv-2)*(yv-2)
			assert.InDelta(t, want, surface.Stats[i][j], 1e-9,
				"stat at (%g, %g)", xv, yv)
		}
	}
}

func TestStatContourPhysicalUnits(t *testing.T) {
	ds, pl := newProblem()

	f := New()
	_, err := f.Optimize(ds)
	require.NoError(t, err)

	contour, err := f.StatContour(ds, "amplitude", "index", 4, 1)
	require.NoError(t, err)
	require.True(t, contour.Success, contour.Message)
	require.Len(t, contour.X, 5) // closed polygon

	// For a unit paraboloid in physical units the 1-sigma contour is a
	// circle of radius sqrt(-2 ln(1 - erf(1/sqrt 2))) around the best fit.
	want := math.Sqrt(-2 * math.Log(1-math.Erf(1/math.Sqrt2)))
	for i := 0; i < 4; i++ {
		r := math.Hypot(contour.X[i]-5, contour.Y[i]-2)
		assert.InDelta(t, want, r, 1e-2)
	}

	// The traced parameters are rolled back and thawed.
	assert.InDelta(t, 5, pl.Amplitude().Value(), 1e-4)
	assert.False(t, pl.Amplitude().Frozen())
	assert.False(t, pl.Index().Frozen())
}
