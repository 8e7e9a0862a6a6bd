package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/core/model"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

var _ model.ProbabilityClassifier = (*DecisionTreeClassifier)(nil)

func separableData() (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(8, 2, []float64{
		1, 10,
		2, 11,
		3, 10,
		4, 12,
		6, 10,
		7, 11,
		8, 12,
		9, 10,
	})
	y := mat.NewVecDense(8, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_SeparableSplit(t *testing.T) {
	X, y := separableData()

	dt := NewDecisionTreeClassifier(WithDTRandomState(1))
	require.NoError(t, dt.Fit(X, y))
	assert.True(t, dt.IsFitted())

	root := dt.Root()
	require.False(t, root.IsLeaf)
	assert.Equal(t, 0, root.Feature)
	assert.Equal(t, 5.0, root.Threshold)
	assert.Equal(t, 2, dt.GetNLeaves())
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, []float64{1, 0}, dt.GetFeatureImportances())
	assert.Equal(t, []int{0, 1}, dt.Classes())

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	probas, err := dt.PredictProba(mat.NewDense(2, 2, []float64{0, 0, 100, 0}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, probas.At(0, 0))
	assert.Equal(t, 0.0, probas.At(0, 1))
	assert.Equal(t, 1.0, probas.At(1, 1))
}

func TestDecisionTreeClassifier_LeafFractions(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 10, 11, 12})
	y := mat.NewVecDense(6, []float64{0, 0, 1, 1, 1, 0})

	// leaves of at least three records cannot be pure here
	dt := NewDecisionTreeClassifier(WithMinSamplesLeaf(3))
	require.NoError(t, dt.Fit(X, y))

	probas, err := dt.PredictProba(mat.NewDense(2, 1, []float64{0, 20}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, probas.At(0, 1), 1e-12)
	assert.InDelta(t, 2.0/3.0, probas.At(1, 1), 1e-12)

	for i := 0; i < 2; i++ {
		assert.InDelta(t, 1.0, probas.At(i, 0)+probas.At(i, 1), 1e-12)
	}
}

func TestDecisionTreeClassifier_MinImpurityDecreaseStopsSplits(t *testing.T) {
	X, y := separableData()

	dt := NewDecisionTreeClassifier(WithMinImpurityDecrease(0.6))
	require.NoError(t, dt.Fit(X, y))

	assert.True(t, dt.Root().IsLeaf)
	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	r, _ := probas.Dims()
	for i := 0; i < r; i++ {
		assert.Equal(t, 0.5, probas.At(i, 1))
	}
}

func TestDecisionTreeClassifier_MaxFeaturesIsSeeded(t *testing.T) {
	X := mat.NewDense(10, 3, []float64{
		1, 5, 9,
		2, 4, 8,
		3, 6, 7,
		4, 5, 6,
		5, 7, 5,
		6, 3, 4,
		7, 8, 3,
		8, 2, 2,
		9, 9, 1,
		10, 1, 0,
	})
	y := mat.NewVecDense(10, []float64{0, 0, 1, 0, 1, 0, 1, 1, 1, 1})

	predict := func(seed int64) []float64 {
		dt := NewDecisionTreeClassifier(WithMaxFeatures(1), WithDTRandomState(seed))
		require.NoError(t, dt.Fit(X, y))
		probas, err := dt.PredictProba(X)
		require.NoError(t, err)
		return mat.Col(nil, 1, probas)
	}

	assert.Equal(t, predict(42), predict(42))
}

func TestDecisionTreeClassifier_AdjacentFloatThreshold(t *testing.T) {
	// (v1+v2)/2 rounds to v2 for these two values
	v1 := math.Nextafter(1, 2)
	v2 := math.Nextafter(v1, 2)
	require.Equal(t, v2, (v1+v2)/2)

	X := mat.NewDense(4, 1, []float64{v1, v1, v2, v2})
	y := mat.NewVecDense(4, []float64{0, 0, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, v1, dt.Root().Threshold)
	assert.Equal(t, 2, dt.GetNLeaves())
	assert.Equal(t, 1, dt.GetDepth())

	probas, err := dt.PredictProba(mat.NewDense(3, 1, []float64{v1, v2, 2}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, probas.At(0, 1))
	assert.Equal(t, 1.0, probas.At(1, 1))
	assert.Equal(t, 1.0, probas.At(2, 1))
}

func TestDecisionTreeClassifier_MaxFeaturesKeepsDrawing(t *testing.T) {
	// feature 0 is constant, so a node that drew only it must draw again
	X := mat.NewDense(6, 2, []float64{
		7, 1,
		7, 2,
		7, 3,
		7, 10,
		7, 11,
		7, 12,
	})
	y := mat.NewVecDense(6, []float64{0, 0, 0, 1, 1, 1})

	for seed := int64(0); seed < 10; seed++ {
		dt := NewDecisionTreeClassifier(WithMaxFeatures(1), WithDTRandomState(seed))
		require.NoError(t, dt.Fit(X, y))
		root := dt.Root()
		require.False(t, root.IsLeaf, "seed %d", seed)
		assert.Equal(t, 1, root.Feature, "seed %d", seed)
		assert.Equal(t, 6.5, root.Threshold, "seed %d", seed)
	}
}

func TestDecisionTreeClassifier_Entropy(t *testing.T) {
	X, y := separableData()
	dt := NewDecisionTreeClassifier(WithCriterion("entropy"))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1.0, dt.Root().Impurity)
	assert.Equal(t, 5.0, dt.Root().Threshold)
}

func TestDecisionTreeClassifier_Errors(t *testing.T) {
	X, y := separableData()

	_, err := NewDecisionTreeClassifier().Predict(X)
	var notFitted *mlerrors.NotFittedError
	assert.True(t, mlerrors.As(err, &notFitted))

	tests := []struct {
		name  string
		opt   DecisionTreeClassifierOption
		param string
	}{
		{"min leaf", WithMinSamplesLeaf(0), "min_samples_leaf"},
		{"negative cp", WithMinImpurityDecrease(-0.1), "min_impurity_decrease"},
		{"criterion", WithCriterion("mse"), "criterion"},
		{"max features", WithMaxFeatures(3), "max_features"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDecisionTreeClassifier(tt.opt).Fit(X, y)
			var configErr *mlerrors.ConfigError
			require.True(t, mlerrors.As(err, &configErr), "got %v", err)
			assert.Equal(t, tt.param, configErr.Param)
		})
	}

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	_, err = dt.PredictProba(mat.NewDense(1, 3, nil))
	var dimErr *mlerrors.DimensionError
	assert.True(t, mlerrors.As(err, &dimErr))

	err = dt.Fit(X, mat.NewVecDense(3, nil))
	assert.True(t, mlerrors.As(err, &dimErr))
}
