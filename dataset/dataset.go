// Package dataset turns a source table into an immutable, fully numeric RecordSet.
//
// Prepare selects the requested columns, drops records with a missing value in any of
// them, and encodes categorical columns with a deterministic lexicographic ordinal
// encoding. The label column must have exactly two levels after dropping; its positive
// class is encoded as 1.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"gonum.org/v1/gonum/mat"

	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
	"github.com/ezoic/mlsurface/preprocessing"
)

// Kind is the declared type of a source column.
type Kind int

const (
	// Continuous columns are parsed as float64.
	Continuous Kind = iota
	// Categorical columns are read as strings and ordinal-encoded.
	Categorical
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "continuous"
}

// Column declares one selected source column.
type Column struct {
	Name string
	Kind Kind
}

// NHANESColumns are the survey columns compared in the diabetes walkthrough.
func NHANESColumns() []Column {
	return []Column{
		{Name: "Age", Kind: Continuous},
		{Name: "Gender", Kind: Categorical},
		{Name: "Diabetes", Kind: Categorical},
		{Name: "BMI", Kind: Continuous},
		{Name: "HHIncome", Kind: Categorical},
		{Name: "PhysActive", Kind: Categorical},
	}
}

// NHANESLabel is the label column of the walkthrough.
const NHANESLabel = "Diabetes"

// missingTokens are cell values treated as missing in addition to nil and NaN.
var missingTokens = map[string]bool{"": true, "NA": true, "NaN": true}

// Option configures Prepare.
type Option func(*prepareConfig)

type prepareConfig struct {
	positiveLabel string
	logger        log.Logger
}

// WithPositiveLabel selects which label level is encoded as 1. By default the
// lexicographically last level is positive ("Yes" over "No", "1" over "0").
func WithPositiveLabel(level string) Option {
	return func(c *prepareConfig) {
		c.positiveLabel = level
	}
}

// WithLogger overrides the logger used by Prepare.
func WithLogger(logger log.Logger) Option {
	return func(c *prepareConfig) {
		c.logger = logger
	}
}

// Prepare builds a RecordSet from frame. columns must include the label column.
// The frame is only read.
func Prepare(frame *dataframe.DataFrame, columns []Column, label string, opts ...Option) (_ *RecordSet, err error) {
	defer mlerrors.Recover(&err, "dataset.Prepare")

	cfg := prepareConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("dataset").With(log.ComponentKey, "dataset")
	}

	startTime := time.Now()

	if frame == nil {
		return nil, mlerrors.NewSchemaError(label, "source table is nil")
	}
	if len(columns) == 0 {
		return nil, mlerrors.NewConfigError("columns", "must name at least one column", columns)
	}

	found := false
	for _, col := range columns {
		if col.Name == label {
			found = true
		}
	}
	if !found {
		return nil, mlerrors.NewSchemaError(label, "label column is not among the selected columns")
	}

	series := make([]dataframe.Series, len(columns))
	names := make([]string, len(columns))
	for j, col := range columns {
		idx, err := frame.NameToColumn(col.Name)
		if err != nil {
			return nil, mlerrors.NewSchemaError(col.Name, "column not found in source table")
		}
		series[j] = frame.Series[idx]
		names[j] = col.Name
	}

	nRows := frame.NRows()
	continuous := make(map[string][]float64)
	categorical := make(map[string][]string)
	dropped := 0

	for i := 0; i < nRows; i++ {
		nums := make([]float64, len(columns))
		strs := make([]string, len(columns))
		complete := true

		for j, col := range columns {
			raw := series[j].Value(i)
			if isMissing(raw) {
				complete = false
				break
			}
			switch col.Kind {
			case Continuous:
				v, ok := toFloat(raw)
				if !ok {
					return nil, mlerrors.NewSchemaError(col.Name,
						fmt.Sprintf("row %d: value %v is not numeric", i, raw))
				}
				nums[j] = v
			default:
				strs[j] = toLevel(raw)
			}
		}

		if !complete {
			dropped++
			continue
		}
		for j, col := range columns {
			if col.Kind == Continuous {
				continuous[col.Name] = append(continuous[col.Name], nums[j])
			} else {
				categorical[col.Name] = append(categorical[col.Name], strs[j])
			}
		}
	}

	kept := nRows - dropped
	if dropped > 0 {
		mlerrors.Warn(mlerrors.NewRowsDroppedWarning(dropped, kept, names))
	}
	if kept == 0 {
		return nil, mlerrors.NewSchemaError(label, "no complete records remain after dropping missing values")
	}

	rs := &RecordSet{
		names:  names,
		kinds:  make(map[string]Kind, len(columns)),
		values: make(map[string][]float64, len(columns)),
		levels: make(map[string][]string),
		label:  label,
	}
	for _, col := range columns {
		rs.kinds[col.Name] = col.Kind
		if col.Kind == Continuous {
			rs.values[col.Name] = continuous[col.Name]
		}
	}

	if err := rs.encodeCategorical(columns, categorical); err != nil {
		return nil, err
	}
	if err := rs.encodeLabel(cfg.positiveLabel); err != nil {
		return nil, err
	}

	cfg.logger.Info("Records prepared",
		log.OperationKey, log.OperationPrepare,
		log.PhaseKey, log.PhasePreparation,
		log.SamplesKey, kept,
		log.DroppedKey, dropped,
		log.ColumnsKey, names,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return rs, nil
}

func (rs *RecordSet) encodeCategorical(columns []Column, categorical map[string][]string) error {
	var catNames []string
	for _, col := range columns {
		if col.Kind == Categorical {
			catNames = append(catNames, col.Name)
		}
	}
	if len(catNames) == 0 {
		return nil
	}

	n := len(categorical[catNames[0]])
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]string, len(catNames))
		for j, name := range catNames {
			rows[i][j] = categorical[name][i]
		}
	}

	encoder := preprocessing.NewOrdinalEncoder()
	codes, err := encoder.FitTransform(rows)
	if err != nil {
		return mlerrors.Wrap(err, "encode categorical columns")
	}
	for j, name := range catNames {
		rs.values[name] = mat.Col(nil, j, codes)
		rs.levels[name] = encoder.Categories[j]
	}
	return nil
}

func (rs *RecordSet) encodeLabel(positive string) error {
	if rs.kinds[rs.label] == Continuous {
		// numeric labels are re-read as levels so 0/1 columns work either way
		raw := rs.values[rs.label]
		levelSet := make(map[string]bool)
		for _, v := range raw {
			levelSet[strconv.FormatFloat(v, 'f', -1, 64)] = true
		}
		levels := sortedKeys(levelSet)
		codes := make([]float64, len(raw))
		for i, v := range raw {
			s := strconv.FormatFloat(v, 'f', -1, 64)
			for k, level := range levels {
				if level == s {
					codes[i] = float64(k)
				}
			}
		}
		rs.values[rs.label] = codes
		rs.levels[rs.label] = levels
		rs.kinds[rs.label] = Categorical
	}

	levels := rs.levels[rs.label]
	if len(levels) != 2 {
		return mlerrors.NewSchemaError(rs.label,
			fmt.Sprintf("label must have exactly two levels, found %d %v", len(levels), levels))
	}

	posCode := 1
	if positive != "" {
		posCode = -1
		for k, level := range levels {
			if level == positive {
				posCode = k
			}
		}
		if posCode < 0 {
			return mlerrors.NewSchemaError(rs.label,
				fmt.Sprintf("positive label %q not among levels %v", positive, levels))
		}
	}

	codes := rs.values[rs.label]
	rs.labels = make([]int, len(codes))
	for i, c := range codes {
		if int(c) == posCode {
			rs.labels[i] = 1
		}
	}
	rs.positive = levels[posCode]
	return nil
}

func isMissing(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return missingTokens[strings.TrimSpace(x)]
	case float64:
		return math.IsNaN(x)
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func toLevel(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return fmt.Sprintf("%v", v)
}
