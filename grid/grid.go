// Package grid builds the regular two-feature lattice every model is evaluated on.
//
// A FeatureGrid is constructed once from the observed range of two record columns and
// is immutable afterwards. Points are ordered with the first feature in the outer loop
// and the second feature in the inner loop:
//
//	(a0, b0), (a0, b1), ..., (a0, bR-1), (a1, b0), ...
package grid

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/dataset"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

// DefaultResolution is the number of values per axis used when none is configured.
const DefaultResolution = 100

// Point is one grid coordinate.
type Point struct {
	A float64
	B float64
}

// Bounds is the inclusive observed range of one feature.
type Bounds struct {
	Min float64
	Max float64
}

// FeatureGrid is the Cartesian product of two evenly spaced axes.
type FeatureGrid struct {
	featureA string
	featureB string
	axisA    []float64
	axisB    []float64
	points   []Point
	distinct int
}

// Build creates a resolution × resolution grid spanning the observed min..max of
// featureA and featureB in records. A constant feature yields resolution identical
// values on its axis.
func Build(records *dataset.RecordSet, featureA, featureB string, resolution int) (_ *FeatureGrid, err error) {
	defer mlerrors.Recover(&err, "grid.Build")

	logger := log.GetLoggerWithName("grid").With(log.ComponentKey, "grid")
	startTime := time.Now()

	if resolution < 2 {
		return nil, mlerrors.NewConfigError("resolution", "must be at least 2", resolution)
	}
	if records == nil || records.Len() == 0 {
		return nil, mlerrors.NewConfigError("records", "must contain at least one record", 0)
	}
	if featureA == featureB {
		return nil, mlerrors.NewConfigError("features", "grid features must differ", featureA)
	}

	axisA, err := axis(records, featureA, resolution)
	if err != nil {
		return nil, err
	}
	axisB, err := axis(records, featureB, resolution)
	if err != nil {
		return nil, err
	}

	g := New(featureA, featureB, axisA, axisB)

	logger.Debug("Grid built",
		log.OperationKey, log.OperationBuildGrid,
		log.PhaseKey, log.PhaseGrid,
		log.ResolutionKey, resolution,
		log.GridPointsKey, g.Len(),
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return g, nil
}

func axis(records *dataset.RecordSet, feature string, resolution int) ([]float64, error) {
	values, err := records.Column(feature)
	if err != nil {
		return nil, err
	}
	lo, hi := floats.Min(values), floats.Max(values)
	out := floats.Span(make([]float64, resolution), lo, hi)
	// pin endpoints so bounds equal the observed extremes exactly
	out[0], out[resolution-1] = lo, hi
	return out, nil
}

// New builds a grid from explicit axis values, keeping the outer/inner ordering of Build.
func New(featureA, featureB string, axisA, axisB []float64) *FeatureGrid {
	g := &FeatureGrid{
		featureA: featureA,
		featureB: featureB,
		axisA:    append([]float64(nil), axisA...),
		axisB:    append([]float64(nil), axisB...),
		points:   make([]Point, 0, len(axisA)*len(axisB)),
	}
	seen := make(map[Point]bool, cap(g.points))
	for _, a := range g.axisA {
		for _, b := range g.axisB {
			p := Point{A: a, B: b}
			g.points = append(g.points, p)
			seen[p] = true
		}
	}
	g.distinct = len(seen)
	return g
}

// Len returns the number of grid points.
func (g *FeatureGrid) Len() int {
	return len(g.points)
}

// Distinct returns the number of distinct coordinates. It is smaller than Len only
// when a grid feature is constant in the records.
func (g *FeatureGrid) Distinct() int {
	return g.distinct
}

// Features returns the names of the two grid features.
func (g *FeatureGrid) Features() (a, b string) {
	return g.featureA, g.featureB
}

// Point returns the i-th grid point.
func (g *FeatureGrid) Point(i int) Point {
	return g.points[i]
}

// Points returns a copy of all grid points in grid order.
func (g *FeatureGrid) Points() []Point {
	return append([]Point(nil), g.points...)
}

// Axis returns a copy of the axis values of the named feature.
func (g *FeatureGrid) Axis(feature string) ([]float64, error) {
	switch feature {
	case g.featureA:
		return append([]float64(nil), g.axisA...), nil
	case g.featureB:
		return append([]float64(nil), g.axisB...), nil
	}
	return nil, mlerrors.NewSchemaError(feature, "not a grid feature")
}

// Bounds returns the frozen range of each feature.
func (g *FeatureGrid) Bounds() (a, b Bounds) {
	a = Bounds{Min: g.axisA[0], Max: g.axisA[len(g.axisA)-1]}
	b = Bounds{Min: g.axisB[0], Max: g.axisB[len(g.axisB)-1]}
	return a, b
}

// Matrix returns the grid as an n_points × 2 matrix with columns (featureA, featureB).
func (g *FeatureGrid) Matrix() *mat.Dense {
	X := mat.NewDense(len(g.points), 2, nil)
	for i, p := range g.points {
		X.Set(i, 0, p.A)
		X.Set(i, 1, p.B)
	}
	return X
}

// String implements fmt.Stringer.
func (g *FeatureGrid) String() string {
	return fmt.Sprintf("FeatureGrid(%s × %s, %d×%d points)", g.featureA, g.featureB, len(g.axisA), len(g.axisB))
}
