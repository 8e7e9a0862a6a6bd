package adapter

import (
	"context"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/mlsurface/dataset"
	"github.com/ezoic/mlsurface/grid"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

var allColumns = []dataset.Column{
	{Name: "Age", Kind: dataset.Continuous},
	{Name: "Gender", Kind: dataset.Categorical},
	{Name: "BMI", Kind: dataset.Continuous},
	{Name: "Diabetes", Kind: dataset.Categorical},
}

func twoRecords(t *testing.T) *dataset.RecordSet {
	t.Helper()
	frame := dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("Age", nil, 30.0, 60.0),
		dataframe.NewSeriesString("Gender", nil, "female", "male"),
		dataframe.NewSeriesFloat64("BMI", nil, 25.0, 35.0),
		dataframe.NewSeriesString("Diabetes", nil, "No", "Yes"),
	)
	rs, err := dataset.Prepare(frame, allColumns, "Diabetes")
	require.NoError(t, err)
	return rs
}

func survey(t *testing.T) *dataset.RecordSet {
	t.Helper()
	var age, bmi []interface{}
	var gender, diabetes []interface{}
	for i := 0; i < 30; i++ {
		a := 20.0 + 2*float64(i)
		b := 18.0 + float64((i*11)%20)
		age = append(age, a)
		bmi = append(bmi, b)
		if i%3 == 0 {
			gender = append(gender, "female")
		} else {
			gender = append(gender, "male")
		}
		if a+b > 70 {
			diabetes = append(diabetes, "Yes")
		} else {
			diabetes = append(diabetes, "No")
		}
	}
	frame := dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("Age", nil, age...),
		dataframe.NewSeriesString("Gender", nil, gender...),
		dataframe.NewSeriesFloat64("BMI", nil, bmi...),
		dataframe.NewSeriesString("Diabetes", nil, diabetes...),
	)
	rs, err := dataset.Prepare(frame, allColumns, "Diabetes")
	require.NoError(t, err)
	return rs
}

func predict(t *testing.T, a Adapter, rs *dataset.RecordSet, formula string, g *grid.FeatureGrid) []float64 {
	t.Helper()
	ctx := context.Background()
	trained, err := a.Fit(ctx, rs, MustParseFormula(formula))
	require.NoError(t, err)
	values, err := trained.PredictProb(ctx, g)
	require.NoError(t, err)
	require.NoError(t, CheckContract(a.Name(), g, values))
	return values
}

func TestTwoRecordScenario(t *testing.T) {
	rs := twoRecords(t)
	g, err := grid.Build(rs, "Age", "BMI", 2)
	require.NoError(t, err)

	null := predict(t, NullModel{}, rs, "Diabetes ~ Age + BMI", g)
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, null)

	tree := predict(t, NewTreeModel(), rs, "Diabetes ~ Age + BMI", g)
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, tree)

	knn := predict(t, NeighborModel{K: 1}, rs, "Diabetes ~ Age + BMI", g)
	assert.Equal(t, []float64{0, 0, 1, 1}, knn)

	knnAll := predict(t, NeighborModel{K: 2}, rs, "Diabetes ~ Age + BMI", g)
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, knnAll)

	forest := predict(t, ForestModel{NTree: 10, MTry: 1, Seed: 1}, rs, "Diabetes ~ Age + BMI", g)
	assert.Len(t, forest, 4)
}

func TestNullModelIsConstant(t *testing.T) {
	rs := survey(t)
	g, err := grid.Build(rs, "Age", "BMI", 15)
	require.NoError(t, err)

	values := predict(t, NullModel{}, rs, "Diabetes ~ .", g)
	require.Len(t, values, 225)
	for _, v := range values {
		assert.Equal(t, rs.PositiveRate(), v)
	}

	intercept := predict(t, NullModel{}, rs, "Diabetes ~ 1", g)
	assert.Equal(t, values, intercept)
}

func TestNeighborModelKEqualsN(t *testing.T) {
	rs := survey(t)
	g, err := grid.Build(rs, "Age", "BMI", 10)
	require.NoError(t, err)

	for _, standardize := range []bool{false, true} {
		values := predict(t, NeighborModel{K: rs.Len(), Standardize: standardize}, rs, "Diabetes ~ Age + BMI", g)
		for _, v := range values {
			assert.InDelta(t, rs.PositiveRate(), v, 1e-12)
		}
	}
}

func TestForestModelSeedReproducible(t *testing.T) {
	rs := survey(t)
	g, err := grid.Build(rs, "Age", "BMI", 8)
	require.NoError(t, err)

	m := ForestModel{NTree: 30, MTry: 2, Seed: 1}
	first := predict(t, m, rs, "Diabetes ~ Age + BMI + Gender", g)
	m.Workers = 1
	second := predict(t, m, rs, "Diabetes ~ Age + BMI + Gender", g)
	assert.Equal(t, first, second)
}

func TestTreeModelFillsNonGridPredictors(t *testing.T) {
	rs := survey(t)
	g, err := grid.Build(rs, "Age", "BMI", 6)
	require.NoError(t, err)

	ctx := context.Background()
	trained, err := NewTreeModel().Fit(ctx, rs, MustParseFormula("Diabetes ~ ."))
	require.NoError(t, err)

	f := trained.(*fitted)
	assert.Equal(t, []string{"Age", "Gender", "BMI"}, f.design.predictors)
	X := f.design.gridMatrix(g)
	r, c := X.Dims()
	assert.Equal(t, 36, r)
	assert.Equal(t, 3, c)
	// most records are male, code 1
	for i := 0; i < r; i++ {
		assert.Equal(t, 1.0, X.At(i, 1))
	}

	surface, err := Evaluate(ctx, "tree", trained, g)
	require.NoError(t, err)
	assert.Equal(t, 36, surface.Len())
}

type badFitted struct {
	values []float64
}

func (b badFitted) PredictProb(context.Context, *grid.FeatureGrid) ([]float64, error) {
	return b.values, nil
}

func TestEvaluateContract(t *testing.T) {
	g := grid.New("Age", "BMI", []float64{30, 60}, []float64{25, 35})
	ctx := context.Background()

	var contractErr *mlerrors.AdapterContractError

	_, err := Evaluate(ctx, "short", badFitted{values: []float64{0.1, 0.2, 0.3}}, g)
	require.True(t, mlerrors.As(err, &contractErr))
	assert.Equal(t, "short", contractErr.Model)
	assert.Equal(t, 4, contractErr.Expected)
	assert.Equal(t, 3, contractErr.Got)

	_, err = Evaluate(ctx, "range", badFitted{values: []float64{0.1, 1.2, 0.3, 0.4}}, g)
	require.True(t, mlerrors.As(err, &contractErr))
	assert.Equal(t, "range", contractErr.Model)

	surface, err := Evaluate(ctx, "ok", badFitted{values: []float64{0, 0.25, 0.5, 1}}, g)
	require.NoError(t, err)
	v, ok := surface.At(grid.Point{A: 30, B: 35})
	require.True(t, ok)
	assert.Equal(t, 0.25, v)
}

func TestAdapterConfigErrors(t *testing.T) {
	rs := twoRecords(t)
	ctx := context.Background()
	formula := MustParseFormula("Diabetes ~ Age + BMI")

	tests := []struct {
		name    string
		adapter Adapter
		param   string
	}{
		{"k zero", NeighborModel{K: 0}, "knn.k"},
		{"k above n", NeighborModel{K: 3}, "knn.k"},
		{"no trees", ForestModel{NTree: 0, MTry: 1}, "forest.ntree"},
		{"mtry zero", ForestModel{NTree: 5, MTry: 0}, "forest.mtry"},
		{"mtry above predictors", ForestModel{NTree: 5, MTry: 3}, "forest.mtry"},
		{"min leaf", TreeModel{MinSamplesLeaf: 0}, "tree.min_samples_leaf"},
		{"negative cp", TreeModel{MinImpurityDecrease: -1, MinSamplesLeaf: 5}, "tree.min_impurity_decrease"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.adapter.Fit(ctx, rs, formula)
			var configErr *mlerrors.ConfigError
			require.True(t, mlerrors.As(err, &configErr), "got %v", err)
			assert.Equal(t, tt.param, configErr.Param)
		})
	}

	_, err := NeighborModel{K: 1}.Fit(ctx, rs, MustParseFormula("Diabetes ~ Age + Gender"))
	var configErr *mlerrors.ConfigError
	assert.True(t, mlerrors.As(err, &configErr))

	_, err = NullModel{}.Fit(ctx, rs, MustParseFormula("Diabetes ~ Weight"))
	var schemaErr *mlerrors.SchemaError
	require.True(t, mlerrors.As(err, &schemaErr))
	assert.Equal(t, "Weight", schemaErr.Column)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NullModel{}.Fit(cancelled, rs, formula)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckMatchesFit(t *testing.T) {
	rs := twoRecords(t)
	formula := MustParseFormula("Diabetes ~ Age + BMI")

	assert.NoError(t, Check(NullModel{}, rs, formula))
	assert.NoError(t, Check(NeighborModel{K: 2}, rs, formula))

	var configErr *mlerrors.ConfigError
	require.True(t, mlerrors.As(Check(NeighborModel{K: 3}, rs, formula), &configErr))
	assert.Equal(t, "knn.k", configErr.Param)

	require.True(t, mlerrors.As(Check(ForestModel{NTree: 5, MTry: 3}, rs, formula), &configErr))
	assert.Equal(t, "forest.mtry", configErr.Param)

	var schemaErr *mlerrors.SchemaError
	assert.True(t, mlerrors.As(Check(NewTreeModel(), rs, MustParseFormula("Diabetes ~ Weight")), &schemaErr))
}

func TestPredictRecords(t *testing.T) {
	rs := twoRecords(t)
	ctx := context.Background()

	trained, err := NeighborModel{K: 1}.Fit(ctx, rs, MustParseFormula("Diabetes ~ Age + BMI"))
	require.NoError(t, err)
	rp, ok := trained.(RecordPredictor)
	require.True(t, ok)

	values, err := rp.PredictRecords(ctx, rs)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, values)
}
