package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/gammafit/internal/model"
)

// Statistic selects the fit statistic of a spectrum dataset. Both behave
// like -2 ln L, so a one-sigma parameter step changes them by one.
type Statistic string

const (
	// Cash is the Poisson likelihood statistic for counts data.
	Cash Statistic = "cash"

	// Chi2 is the Gaussian least-squares statistic with sqrt(n) errors.
	Chi2 Statistic = "chi2"
)

// SpectrumDataset holds binned counts measured at energy bin centers,
// compared against the summed flux of its spectral models. Exposure converts
// model flux to predicted counts per bin.
type SpectrumDataset struct {
	name     string
	energy   []float64
	counts   []float64
	exposure float64
	stat     Statistic
	models   *model.Models
}

// NewSpectrumDataset creates a dataset over the given energy bin centers and
// measured counts.
func NewSpectrumDataset(name string, energy, counts []float64, exposure float64, stat Statistic, models *model.Models) (*SpectrumDataset, error) {
	if len(energy) != len(counts) {
		return nil, fmt.Errorf("dataset %q: %d energy bins but %d counts", name, len(energy), len(counts))
	}
	if exposure <= 0 {
		return nil, fmt.Errorf("dataset %q: exposure must be positive", name)
	}
	if stat != Cash && stat != Chi2 {
		return nil, fmt.Errorf("dataset %q: unknown statistic %q", name, stat)
	}
	return &SpectrumDataset{
		name:     name,
		energy:   append([]float64(nil), energy...),
		counts:   append([]float64(nil), counts...),
		exposure: exposure,
		stat:     stat,
		models:   models,
	}, nil
}

// Name returns the dataset name.
func (d *SpectrumDataset) Name() string { return d.name }

// Models returns the attached models.
func (d *SpectrumDataset) Models() *model.Models { return d.models }

// Energy returns the energy bin centers.
func (d *SpectrumDataset) Energy() []float64 { return d.energy }

// Counts returns the measured counts per bin.
func (d *SpectrumDataset) Counts() []float64 { return d.counts }

// Npred returns the predicted counts in bin i for the current parameters.
func (d *SpectrumDataset) Npred(i int) float64 {
	var flux float64
	for _, md := range d.models.All() {
		if sm, ok := md.(model.SpectralModel); ok {
			flux += sm.Eval(d.energy[i])
		}
	}
	return flux * d.exposure
}

// StatSum evaluates the fit statistic for the current parameter state.
func (d *SpectrumDataset) StatSum() float64 {
	var total float64
	switch d.stat {
	case Chi2:
		for i, n := range d.counts {
			mu := d.Npred(i)
			sigma2 := math.Max(n, 1)
			r := n - mu
			total += r * r / sigma2
		}
	default: // Cash
		for i, n := range d.counts {
			mu := d.Npred(i)
			if mu <= 0 {
				// Zero or negative prediction with observed counts is
				// infinitely unlikely; a tiny floor keeps the statistic
				// finite and steers the optimizer away.
				mu = 1e-25
			}
			total += 2 * (mu - n*math.Log(mu))
		}
	}
	return total
}

// Simulate replaces the counts with Poisson draws from the current model
// prediction, for building synthetic test and demo datasets.
func (d *SpectrumDataset) Simulate(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range d.counts {
		d.counts[i] = float64(poisson(rng, d.Npred(i)))
	}
}

// poisson draws a Poisson variate; Knuth's method below mean 30, Gaussian
// approximation above.
func poisson(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 30 {
		n := int(math.Round(mean + math.Sqrt(mean)*rng.NormFloat64()))
		if n < 0 {
			return 0
		}
		return n
	}
	limit := math.Exp(-mean)
	p := 1.0
	n := -1
	for p > limit {
		p *= rng.Float64()
		n++
	}
	return n
}

var _ Dataset = (*SpectrumDataset)(nil)
