package param

import (
	"fmt"
)

// Set is an ordered collection of parameters. The same *Parameter may appear
// at several positions when models share (link) a parameter; deduplication is
// by pointer identity, never by name.
type Set struct {
	params []*Parameter
}

// NewSet creates a set holding the given parameters in order.
func NewSet(params ...*Parameter) *Set {
	return &Set{params: append([]*Parameter(nil), params...)}
}

// Add appends parameters, keeping duplicates (linked occurrences).
func (s *Set) Add(params ...*Parameter) {
	s.params = append(s.params, params...)
}

// Len returns the number of positions, counting duplicates.
func (s *Set) Len() int { return len(s.params) }

// At returns the parameter at position i.
func (s *Set) At(i int) *Parameter { return s.params[i] }

// All returns the positions as a slice. The slice is a copy, the parameters
// are shared.
func (s *Set) All() []*Parameter {
	return append([]*Parameter(nil), s.params...)
}

// Names returns the name at every position.
func (s *Set) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name()
	}
	return names
}

// Index returns the first position of p by pointer identity, or -1.
func (s *Set) Index(p *Parameter) int {
	for i, q := range s.params {
		if q == p {
			return i
		}
	}
	return -1
}

// ByName returns the first parameter with the given name, or a NotFoundError.
func (s *Set) ByName(name string) (*Parameter, error) {
	for _, p := range s.params {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, &NotFoundError{Name: name}
}

// Resolve accepts either a *Parameter that must be a member of the set, or a
// string name looked up with ByName.
func (s *Set) Resolve(ref any) (*Parameter, error) {
	switch v := ref.(type) {
	case *Parameter:
		if s.Index(v) < 0 {
			return nil, &NotFoundError{Name: v.Name()}
		}
		return v, nil
	case string:
		return s.ByName(v)
	default:
		return nil, fmt.Errorf("cannot resolve parameter from %T", ref)
	}
}

// Free returns the subset of non-frozen positions, order preserved.
func (s *Set) Free() *Set {
	out := &Set{}
	for _, p := range s.params {
		if !p.Frozen() {
			out.params = append(out.params, p)
		}
	}
	return out
}

// Unique returns the subset with duplicate pointers removed, keeping the
// first occurrence of each parameter.
func (s *Set) Unique() *Set {
	out := &Set{}
	seen := make(map[*Parameter]struct{}, len(s.params))
	for _, p := range s.params {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out.params = append(out.params, p)
	}
	return out
}

// UniqueFree returns the deduplicated free parameters. This is the vector
// space every optimizer backend operates on.
func (s *Set) UniqueFree() *Set {
	return s.Unique().Free()
}

// FreeFactors returns the factor vector over the unique free parameters.
func (s *Set) FreeFactors() []float64 {
	free := s.UniqueFree()
	factors := make([]float64, free.Len())
	for i, p := range free.params {
		factors[i] = p.Factor()
	}
	return factors
}

// SetFreeFactors writes a factor vector back onto the unique free parameters.
// Linked occurrences observe the new value through the shared pointer.
func (s *Set) SetFreeFactors(factors []float64) error {
	free := s.UniqueFree()
	if len(factors) != free.Len() {
		return fmt.Errorf("factor vector length %d does not match %d free parameters", len(factors), free.Len())
	}
	for i, p := range free.params {
		p.SetFactor(factors[i])
	}
	return nil
}

// CheckLimits checks every position and returns the first BoundsError.
func (s *Set) CheckLimits() error {
	for _, p := range s.params {
		if err := p.CheckLimits(); err != nil {
			return err
		}
	}
	return nil
}

// Autoscale rescales all free parameters so their factors start near 1.
func (s *Set) Autoscale() {
	for _, p := range s.Unique().params {
		if !p.Frozen() {
			p.Autoscale()
		}
	}
}

// RestoreStatus snapshots factor, scale and frozen state of every parameter
// and returns a closure that restores the snapshot. Callers defer the
// closure so transient mutation is rolled back on every exit path:
//
//	defer parameters.RestoreStatus()()
func (s *Set) RestoreStatus() func() {
	type status struct {
		p      *Parameter
		factor float64
		scale  float64
		frozen bool
	}
	unique := s.Unique()
	snapshot := make([]status, 0, unique.Len())
	for _, p := range unique.params {
		snapshot = append(snapshot, status{p: p, factor: p.factor, scale: p.scale, frozen: p.frozen})
	}
	return func() {
		for _, st := range snapshot {
			st.p.factor = st.factor
			st.p.scale = st.scale
			st.p.frozen = st.frozen
		}
	}
}
