// Package preprocessing provides the column transforms used while preparing records:
//
//   - OrdinalEncoder: deterministic integer codes for categorical string columns
//   - StandardScaler: zero-mean, unit-variance scaling of continuous features
//
// Both follow the Fit / Transform / FitTransform pattern and refuse to Transform
// before Fit.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/mlsurface/core/model"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// StandardScaler standardizes each column to zero mean and unit population variance.
type StandardScaler struct {
	state *model.StateManager

	// Mean holds the per-feature mean.
	Mean []float64

	// Scale holds the per-feature population standard deviation (1 for constant features).
	Scale []float64

	// NFeatures is the number of fitted features.
	NFeatures int
}

// NewStandardScaler creates an unfitted StandardScaler.
//
//	scaler := preprocessing.NewStandardScaler()
//	scaled, err := scaler.FitTransform(X)
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{state: model.NewStateManager()}
}

// Fit computes the per-column mean and scale of X.
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer mlerrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return mlerrors.NewModelError("StandardScaler.Fit", "empty data", mlerrors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		// constant columns would divide by zero
		if math.IsNaN(std) || std < 1e-8 {
			std = 1.0
		}
		s.Scale[j] = std
	}

	s.state.SetFitted()
	s.state.SetDimensions(c, r)
	return nil
}

// Transform applies (x - mean) / scale column-wise.
func (s *StandardScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "StandardScaler.Transform")
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("StandardScaler.Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return result, nil
}

// FitTransform fits on X and returns X transformed.
func (s *StandardScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "StandardScaler.FitTransform")
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "StandardScaler.InverseTransform")
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("StandardScaler.InverseTransform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

// IsFitted reports whether Fit has completed.
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// String implements fmt.Stringer.
func (s *StandardScaler) String() string {
	if !s.state.IsFitted() {
		return "StandardScaler()"
	}
	return fmt.Sprintf("StandardScaler(n_features=%d)", s.NFeatures)
}
