package dataset

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// RecordSet is the cleaned, numeric view of the selected columns.
// Every column has the same length and contains no missing values.
// A RecordSet is never mutated after Prepare returns it.
type RecordSet struct {
	names    []string
	kinds    map[string]Kind
	values   map[string][]float64
	levels   map[string][]string
	labels   []int
	label    string
	positive string
}

// Len returns the number of records.
func (rs *RecordSet) Len() int {
	return len(rs.labels)
}

// Names returns the selected column names in declaration order.
func (rs *RecordSet) Names() []string {
	out := make([]string, len(rs.names))
	copy(out, rs.names)
	return out
}

// Label returns the label column name.
func (rs *RecordSet) Label() string {
	return rs.label
}

// PositiveLevel returns the label level encoded as 1.
func (rs *RecordSet) PositiveLevel() string {
	return rs.positive
}

// Predictors returns every selected column except the label, in declaration order.
func (rs *RecordSet) Predictors() []string {
	out := make([]string, 0, len(rs.names))
	for _, name := range rs.names {
		if name != rs.label {
			out = append(out, name)
		}
	}
	return out
}

// Has reports whether name is a selected column.
func (rs *RecordSet) Has(name string) bool {
	_, ok := rs.values[name]
	return ok
}

// Kind returns the declared kind of a column.
func (rs *RecordSet) Kind(name string) Kind {
	return rs.kinds[name]
}

// Levels returns the sorted levels of a categorical column, or nil for a continuous one.
func (rs *RecordSet) Levels(name string) []string {
	return rs.levels[name]
}

// Column returns a copy of the encoded values of a column.
func (rs *RecordSet) Column(name string) ([]float64, error) {
	values, ok := rs.values[name]
	if !ok {
		return nil, mlerrors.NewSchemaError(name, "column not found in record set")
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out, nil
}

// Labels returns a copy of the binary labels (1 for the positive level).
func (rs *RecordSet) Labels() []int {
	out := make([]int, len(rs.labels))
	copy(out, rs.labels)
	return out
}

// LabelVector returns the labels as a column vector.
func (rs *RecordSet) LabelVector() *mat.VecDense {
	data := make([]float64, len(rs.labels))
	for i, l := range rs.labels {
		data[i] = float64(l)
	}
	return mat.NewVecDense(len(data), data)
}

// Matrix returns an n_records × len(features) design matrix.
func (rs *RecordSet) Matrix(features ...string) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, mlerrors.NewConfigError("features", "must name at least one feature", features)
	}
	X := mat.NewDense(rs.Len(), len(features), nil)
	for j, name := range features {
		values, ok := rs.values[name]
		if !ok {
			return nil, mlerrors.NewSchemaError(name, "column not found in record set")
		}
		X.SetCol(j, values)
	}
	return X, nil
}

// Range returns the observed minimum and maximum of a column.
func (rs *RecordSet) Range(name string) (lo, hi float64, err error) {
	values, ok := rs.values[name]
	if !ok {
		return 0, 0, mlerrors.NewSchemaError(name, "column not found in record set")
	}
	return floats.Min(values), floats.Max(values), nil
}

// Typical returns the value used to hold a column fixed: the median for continuous
// columns and the most frequent code for categorical ones (ties go to the lower code).
// The median is the empirical 0.5 quantile, so an even count yields the lower of the
// two middle values, which is always an observed value.
func (rs *RecordSet) Typical(name string) (float64, error) {
	values, ok := rs.values[name]
	if !ok {
		return 0, mlerrors.NewSchemaError(name, "column not found in record set")
	}
	if rs.kinds[name] == Continuous {
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		return stat.Quantile(0.5, stat.Empirical, sorted, nil), nil
	}

	counts := make([]int, len(rs.levels[name]))
	for _, v := range values {
		counts[int(v)]++
	}
	best := 0
	for code, c := range counts {
		if c > counts[best] {
			best = code
		}
	}
	return float64(best), nil
}

// PositiveRate returns the fraction of records whose label is positive.
func (rs *RecordSet) PositiveRate() float64 {
	return stat.Mean(rs.LabelVector().RawVector().Data, nil)
}

// String implements fmt.Stringer.
func (rs *RecordSet) String() string {
	return fmt.Sprintf("RecordSet(records=%d, columns=%v, label=%s)", rs.Len(), rs.names, rs.label)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
