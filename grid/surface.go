package grid

import (
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// Surface holds one model's predicted values keyed by grid coordinate.
type Surface struct {
	values map[Point]float64
	order  []Point
}

// NewSurface pairs predictions with the points of g in grid order.
// len(values) must equal g.Len().
func NewSurface(model string, g *FeatureGrid, values []float64) (*Surface, error) {
	if len(values) != g.Len() {
		return nil, mlerrors.NewAdapterContractError(model, g.Len(), len(values))
	}
	s := &Surface{
		values: make(map[Point]float64, len(values)),
		order:  make([]Point, 0, len(values)),
	}
	for i, p := range g.points {
		s.Set(p, values[i])
	}
	return s, nil
}

// EmptySurface creates a Surface to be filled with Set.
func EmptySurface() *Surface {
	return &Surface{values: make(map[Point]float64)}
}

// Set stores the value at p. Setting an existing point overwrites it in place.
func (s *Surface) Set(p Point, v float64) {
	if _, ok := s.values[p]; !ok {
		s.order = append(s.order, p)
	}
	s.values[p] = v
}

// At returns the value stored at p.
func (s *Surface) At(p Point) (float64, bool) {
	v, ok := s.values[p]
	return v, ok
}

// Len returns the number of distinct points in the surface.
func (s *Surface) Len() int {
	return len(s.values)
}

// Points returns the stored points in insertion order.
func (s *Surface) Points() []Point {
	return append([]Point(nil), s.order...)
}
