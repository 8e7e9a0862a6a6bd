package dataset_test

import (
	"context"
	"strings"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/mlsurface/dataset"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

func twoColumnSchema() []dataset.Column {
	return []dataset.Column{
		{Name: "Age", Kind: dataset.Continuous},
		{Name: "BMI", Kind: dataset.Continuous},
		{Name: "Diabetes", Kind: dataset.Categorical},
	}
}

func TestPrepare_DropsIncompleteRecords(t *testing.T) {
	frame := dataframe.NewDataFrame(
		dataframe.NewSeriesString("Age", nil, "30", "45", "60", "50"),
		dataframe.NewSeriesString("BMI", nil, "25", "NA", "35", ""),
		dataframe.NewSeriesString("Diabetes", nil, "No", "Yes", "Yes", nil),
		dataframe.NewSeriesString("Unused", nil, nil, nil, nil, nil),
	)

	provider, logger := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetGlobalProvider(provider)
	defer log.SetGlobalProvider(log.NewZerologProvider(log.LevelInfo))

	rs, err := dataset.Prepare(frame, twoColumnSchema(), "Diabetes")
	require.NoError(t, err)

	assert.Equal(t, 2, rs.Len())
	age, err := rs.Column("Age")
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 60}, age)
	assert.Equal(t, []int{0, 1}, rs.Labels())
	assert.Equal(t, "Yes", rs.PositiveLevel())
	assert.False(t, rs.Has("Unused"))

	assert.True(t, logger.ContainsMessage("dropped 2 of 4 records"))
	assert.True(t, logger.ContainsField(log.DroppedKey, float64(2)))
}

func TestPrepare_CategoricalEncoding(t *testing.T) {
	frame := dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("Age", nil, 30.0, 40.0, 50.0),
		dataframe.NewSeriesString("Gender", nil, "male", "female", "male"),
		dataframe.NewSeriesString("Diabetes", nil, "No", "No", "Yes"),
	)
	columns := []dataset.Column{
		{Name: "Age", Kind: dataset.Continuous},
		{Name: "Gender", Kind: dataset.Categorical},
		{Name: "Diabetes", Kind: dataset.Categorical},
	}

	rs, err := dataset.Prepare(frame, columns, "Diabetes")
	require.NoError(t, err)

	gender, err := rs.Column("Gender")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, gender)
	assert.Equal(t, []string{"female", "male"}, rs.Levels("Gender"))
	assert.Nil(t, rs.Levels("Age"))
	assert.Equal(t, []string{"Age", "Gender"}, rs.Predictors())

	mode, err := rs.Typical("Gender")
	require.NoError(t, err)
	assert.Equal(t, 1.0, mode)

	median, err := rs.Typical("Age")
	require.NoError(t, err)
	assert.Equal(t, 40.0, median)

	lo, hi, err := rs.Range("Age")
	require.NoError(t, err)
	assert.Equal(t, 30.0, lo)
	assert.Equal(t, 50.0, hi)

	X, err := rs.Matrix("Age", "Gender")
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 50.0, X.At(2, 0))
	assert.InDelta(t, 1.0/3.0, rs.PositiveRate(), 1e-12)
}

func TestPrepare_LeavesFrameUnchanged(t *testing.T) {
	frame := dataframe.NewDataFrame(
		dataframe.NewSeriesString("Age", nil, "30", "45", nil, "50", "61"),
		dataframe.NewSeriesString("Gender", nil, "male", "female", "male", "NA", "female"),
		dataframe.NewSeriesFloat64("BMI", nil, 25.0, 31.5, 22.0, 40.0, nil),
		dataframe.NewSeriesString("Diabetes", nil, "No", "Yes", "No", "Yes", "No"),
	)
	columns := []dataset.Column{
		{Name: "Age", Kind: dataset.Continuous},
		{Name: "Gender", Kind: dataset.Categorical},
		{Name: "BMI", Kind: dataset.Continuous},
		{Name: "Diabetes", Kind: dataset.Categorical},
	}

	snapshot := func() [][]interface{} {
		out := make([][]interface{}, len(frame.Series))
		for i, s := range frame.Series {
			for j := 0; j < s.NRows(); j++ {
				out[i] = append(out[i], s.Value(j))
			}
		}
		return out
	}
	before := snapshot()
	rowsBefore := frame.NRows()
	names := frame.Names()

	rs, err := dataset.Prepare(frame, columns, "Diabetes")
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len(), "three incomplete rows are dropped")

	assert.Equal(t, rowsBefore, frame.NRows())
	assert.Equal(t, names, frame.Names())
	assert.Equal(t, before, snapshot())
	assert.Equal(t, "male", frame.Series[1].Value(0))
	assert.Nil(t, frame.Series[0].Value(2))
}

func TestRecordSet_TypicalEvenCount(t *testing.T) {
	frame := dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("Age", nil, 60.0, 20.0, 40.0, 30.0),
		dataframe.NewSeriesString("Gender", nil, "male", "female", "female", "male"),
		dataframe.NewSeriesString("Diabetes", nil, "No", "Yes", "No", "Yes"),
	)
	rs, err := dataset.Prepare(frame, []dataset.Column{
		{Name: "Age", Kind: dataset.Continuous},
		{Name: "Gender", Kind: dataset.Categorical},
		{Name: "Diabetes", Kind: dataset.Categorical},
	}, "Diabetes")
	require.NoError(t, err)

	median, err := rs.Typical("Age")
	require.NoError(t, err)
	assert.Equal(t, 30.0, median, "lower middle value")

	mode, err := rs.Typical("Gender")
	require.NoError(t, err)
	assert.Equal(t, 0.0, mode, "tied counts go to the lower code")

	_, _, err = rs.Range("Weight")
	var schemaErr *mlerrors.SchemaError
	assert.True(t, mlerrors.As(err, &schemaErr))
}

func TestPrepare_PositiveLabel(t *testing.T) {
	frame := dataframe.NewDataFrame(
		dataframe.NewSeriesString("Age", nil, "30", "40"),
		dataframe.NewSeriesString("BMI", nil, "20", "30"),
		dataframe.NewSeriesString("Diabetes", nil, "No", "Yes"),
	)

	rs, err := dataset.Prepare(frame, twoColumnSchema(), "Diabetes", dataset.WithPositiveLabel("No"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, rs.Labels())

	_, err = dataset.Prepare(frame, twoColumnSchema(), "Diabetes", dataset.WithPositiveLabel("Maybe"))
	var schemaErr *mlerrors.SchemaError
	require.True(t, mlerrors.As(err, &schemaErr))
	assert.Equal(t, "Diabetes", schemaErr.Column)
}

func TestPrepare_NumericLabel(t *testing.T) {
	frame := dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("Age", nil, 30.0, 40.0, 50.0),
		dataframe.NewSeriesFloat64("BMI", nil, 20.0, 30.0, 40.0),
		dataframe.NewSeriesFloat64("Diabetes", nil, 0.0, 1.0, 1.0),
	)
	columns := []dataset.Column{
		{Name: "Age", Kind: dataset.Continuous},
		{Name: "BMI", Kind: dataset.Continuous},
		{Name: "Diabetes", Kind: dataset.Continuous},
	}

	rs, err := dataset.Prepare(frame, columns, "Diabetes")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1}, rs.Labels())
	assert.Equal(t, "1", rs.PositiveLevel())
}

func TestPrepare_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		frame  *dataframe.DataFrame
		column string
	}{
		{
			name: "missing column",
			frame: dataframe.NewDataFrame(
				dataframe.NewSeriesString("Age", nil, "30"),
				dataframe.NewSeriesString("Diabetes", nil, "No"),
			),
			column: "BMI",
		},
		{
			name: "non numeric continuous value",
			frame: dataframe.NewDataFrame(
				dataframe.NewSeriesString("Age", nil, "thirty", "40"),
				dataframe.NewSeriesString("BMI", nil, "20", "30"),
				dataframe.NewSeriesString("Diabetes", nil, "No", "Yes"),
			),
			column: "Age",
		},
		{
			name: "single label level",
			frame: dataframe.NewDataFrame(
				dataframe.NewSeriesString("Age", nil, "30", "40"),
				dataframe.NewSeriesString("BMI", nil, "20", "30"),
				dataframe.NewSeriesString("Diabetes", nil, "No", "No"),
			),
			column: "Diabetes",
		},
		{
			name: "three label levels",
			frame: dataframe.NewDataFrame(
				dataframe.NewSeriesString("Age", nil, "30", "40", "50"),
				dataframe.NewSeriesString("BMI", nil, "20", "30", "40"),
				dataframe.NewSeriesString("Diabetes", nil, "No", "Yes", "Borderline"),
			),
			column: "Diabetes",
		},
		{
			name: "nothing left after dropping",
			frame: dataframe.NewDataFrame(
				dataframe.NewSeriesString("Age", nil, "30"),
				dataframe.NewSeriesString("BMI", nil, "NA"),
				dataframe.NewSeriesString("Diabetes", nil, "No"),
			),
			column: "Diabetes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dataset.Prepare(tt.frame, twoColumnSchema(), "Diabetes")
			var schemaErr *mlerrors.SchemaError
			require.True(t, mlerrors.As(err, &schemaErr), "got %v", err)
			assert.Equal(t, tt.column, schemaErr.Column)
			assert.True(t, mlerrors.IsStructural(err))
		})
	}
}

func TestPrepare_LabelNotSelected(t *testing.T) {
	frame := dataframe.NewDataFrame(dataframe.NewSeriesString("Age", nil, "30"))
	_, err := dataset.Prepare(frame, []dataset.Column{{Name: "Age"}}, "Diabetes")
	var schemaErr *mlerrors.SchemaError
	assert.True(t, mlerrors.As(err, &schemaErr))
}

func TestLoadCSV(t *testing.T) {
	csv := "Age,BMI,Diabetes\n30,25,No\n60,NA,Yes\n45,31.5,Yes\n"
	frame, err := dataset.LoadCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, frame.NRows())
	assert.Equal(t, []string{"Age", "BMI", "Diabetes"}, frame.Names())

	rs, err := dataset.Prepare(frame, twoColumnSchema(), "Diabetes")
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	bmi, err := rs.Column("BMI")
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 31.5}, bmi)
}

func TestLoadCSVFile_NHANESSample(t *testing.T) {
	frame, err := dataset.LoadCSVFile(context.Background(), "testdata/nhanes_sample.csv")
	require.NoError(t, err)
	assert.Equal(t, 60, frame.NRows())

	rs, err := dataset.Prepare(frame, dataset.NHANESColumns(), dataset.NHANESLabel)
	require.NoError(t, err)
	assert.Equal(t, 48, rs.Len())
	assert.Equal(t, []string{"No", "Yes"}, rs.Levels("Diabetes"))
	assert.Equal(t, []string{"female", "male"}, rs.Levels("Gender"))

	positives := 0
	for _, l := range rs.Labels() {
		positives += l
	}
	assert.Equal(t, 14, positives)

	_, err = dataset.LoadCSVFile(context.Background(), "testdata/missing.csv")
	assert.Error(t, err)
}
