// Package dataset provides the observational data side of the fit: datasets
// expose a scalar fit statistic evaluated against their models, and a
// Collection flattens several datasets into the single parameter list and
// statistic sum the fit engine works on.
package dataset

import (
	"github.com/cwbudde/gammafit/internal/model"
	"github.com/cwbudde/gammafit/internal/param"
)

// Dataset is a single observation with attached models.
type Dataset interface {
	Name() string

	// StatSum evaluates the fit statistic of this dataset for the current
	// parameter state.
	StatSum() float64

	Models() *model.Models
}

// Collection is an ordered list of datasets presented to the fit engine as
// one joint likelihood. Datasets may share models (and therefore
// parameters); the flattened parameter list preserves those duplicates.
type Collection struct {
	datasets []Dataset
	models   *model.Models
}

// NewCollection creates a collection from the given datasets.
func NewCollection(datasets ...Dataset) *Collection {
	c := &Collection{datasets: append([]Dataset(nil), datasets...)}
	c.rebuild()
	return c
}

// Add appends datasets to the collection.
func (c *Collection) Add(datasets ...Dataset) {
	c.datasets = append(c.datasets, datasets...)
	c.rebuild()
}

// rebuild merges the member models, deduplicating shared model identities so
// a model attached to two datasets appears once.
func (c *Collection) rebuild() {
	merged := model.NewModels()
	seen := make(map[model.Model]struct{})
	for _, ds := range c.datasets {
		for _, md := range ds.Models().All() {
			if _, ok := seen[md]; ok {
				continue
			}
			seen[md] = struct{}{}
			merged.Add(md)
		}
	}
	c.models = merged
}

// Len returns the number of datasets.
func (c *Collection) Len() int { return len(c.datasets) }

// At returns the dataset at position i.
func (c *Collection) At(i int) Dataset { return c.datasets[i] }

// StatSum returns the joint statistic, the sum over all datasets.
func (c *Collection) StatSum() float64 {
	var total float64
	for _, ds := range c.datasets {
		total += ds.StatSum()
	}
	return total
}

// Parameters returns the flattened parameter set of the merged models,
// aligned position by position with Models().ParametersUniqueNames(). A
// parameter linked across models appears once per holding model;
// deduplication is the fit engine's job.
func (c *Collection) Parameters() *param.Set {
	return c.models.Parameters()
}

// Models returns the merged model collection.
func (c *Collection) Models() *model.Models { return c.models }
