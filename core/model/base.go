// Package model provides the core abstractions shared by the estimators in mlsurface.
//
// Estimators hold a *StateManager rather than embedding a base struct:
//
//	type MyClassifier struct {
//		state *model.StateManager
//		// model-specific fields
//	}
//
//	func (m *MyClassifier) Fit(X, y mat.Matrix) error {
//		// training logic
//		m.state.SetFitted()
//		m.state.SetDimensions(nFeatures, nSamples)
//		return nil
//	}
//
// Predict-side methods call RequireFitted (or IsFitted) before touching fitted state.
package model

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// Fitter is a model that learns from a feature matrix and a label column.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor returns one label per row of X, as an n×1 matrix.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbabilityClassifier is a fitted classifier exposing per-class probabilities.
// PredictProba returns an n×len(Classes()) matrix whose columns follow Classes().
type ProbabilityClassifier interface {
	Fitter
	Predictor
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []int
}

// Transformer learns a transformation from X and applies it.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// StateManager tracks the fitted state of a model in a thread-safe manner.
type StateManager struct {
	Fitted bool
	mu     sync.RWMutex

	NFeatures int
	NSamples  int
}

// NewStateManager creates an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
}

// Reset clears the fitted state and recorded dimensions.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// SetDimensions records the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError naming modelName and method when unfitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return mlerrors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckFeatures returns a DimensionError when X does not have the fitted feature count.
func (s *StateManager) CheckFeatures(op string, X mat.Matrix) error {
	_, c := X.Dims()
	nFeatures, _ := s.GetDimensions()
	if c != nFeatures {
		return mlerrors.NewDimensionError(op, nFeatures, c, 1)
	}
	return nil
}

// ExtractClasses returns the distinct integer labels in column 0 of y, sorted ascending.
func ExtractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	classes := make([]int, 0, 2)
	for i := 0; i < rows; i++ {
		label := int(y.At(i, 0))
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	sort.Ints(classes)
	return classes
}

// ValidateXY checks that X is non-empty and y is an n×1 column matching X's rows.
func ValidateXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, mlerrors.NewModelError(op, "empty data", mlerrors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return 0, 0, mlerrors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, mlerrors.NewValueError(op, "y must be a column vector")
	}
	return nSamples, nFeatures, nil
}
