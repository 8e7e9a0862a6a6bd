package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("KNeighborsClassifier", "PredictProba")
	var notFitted *mlerrors.NotFittedError
	require.True(t, mlerrors.As(err, &notFitted))
	assert.Equal(t, "PredictProba", notFitted.Method)

	s.SetFitted()
	s.SetDimensions(2, 10)
	assert.True(t, s.IsFitted())
	assert.NoError(t, s.RequireFitted("KNeighborsClassifier", "PredictProba"))

	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 2, nFeatures)
	assert.Equal(t, 10, nSamples)

	assert.NoError(t, s.CheckFeatures("op", mat.NewDense(3, 2, nil)))
	assert.Error(t, s.CheckFeatures("op", mat.NewDense(3, 3, nil)))

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestExtractClasses(t *testing.T) {
	y := mat.NewDense(5, 1, []float64{1, 0, 1, 1, 0})
	assert.Equal(t, []int{0, 1}, ExtractClasses(y))

	single := mat.NewDense(2, 1, []float64{1, 1})
	assert.Equal(t, []int{1}, ExtractClasses(single))
}

func TestValidateXY(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	n, f, err := ValidateXY("Fit", X, mat.NewDense(3, 1, []float64{0, 1, 0}))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, f)

	_, _, err = ValidateXY("Fit", X, mat.NewDense(2, 1, []float64{0, 1}))
	var dimErr *mlerrors.DimensionError
	assert.True(t, mlerrors.As(err, &dimErr))

	_, _, err = ValidateXY("Fit", X, mat.NewDense(3, 2, nil))
	var valueErr *mlerrors.ValueError
	assert.True(t, mlerrors.As(err, &valueErr))

	_, _, err = ValidateXY("Fit", &mat.Dense{}, &mat.Dense{})
	assert.True(t, mlerrors.Is(err, mlerrors.ErrEmptyData))
}
