package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/core/model"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// OrdinalEncoder maps each categorical column to integer codes.
// Levels are sorted lexicographically, so the same input always yields the same codes.
type OrdinalEncoder struct {
	state *model.StateManager

	// Categories holds the sorted levels of each feature.
	Categories [][]string

	// CategoryToIdx maps level -> code for each feature.
	CategoryToIdx []map[string]int

	// NFeatures is the number of encoded columns.
	NFeatures int
}

// NewOrdinalEncoder creates an unfitted OrdinalEncoder.
//
//	encoder := preprocessing.NewOrdinalEncoder()
//	codes, err := encoder.FitTransform([][]string{{"male", "Yes"}, {"female", "No"}})
func NewOrdinalEncoder() *OrdinalEncoder {
	return &OrdinalEncoder{state: model.NewStateManager()}
}

// Fit learns the sorted level set of every column in data (n_samples × n_features).
func (e *OrdinalEncoder) Fit(data [][]string) (err error) {
	defer mlerrors.Recover(&err, "OrdinalEncoder.Fit")
	if len(data) == 0 {
		return mlerrors.NewModelError("OrdinalEncoder.Fit", "empty data", mlerrors.ErrEmptyData)
	}
	if len(data[0]) == 0 {
		return mlerrors.NewModelError("OrdinalEncoder.Fit", "empty features", mlerrors.ErrEmptyData)
	}

	nFeatures := len(data[0])
	for _, row := range data {
		if len(row) != nFeatures {
			return mlerrors.NewDimensionError("OrdinalEncoder.Fit", nFeatures, len(row), 1)
		}
	}

	e.NFeatures = nFeatures
	e.Categories = make([][]string, nFeatures)
	e.CategoryToIdx = make([]map[string]int, nFeatures)

	for j := 0; j < nFeatures; j++ {
		levelSet := make(map[string]bool)
		for i := range data {
			levelSet[data[i][j]] = true
		}

		levels := make([]string, 0, len(levelSet))
		for level := range levelSet {
			levels = append(levels, level)
		}
		sort.Strings(levels)

		e.Categories[j] = levels
		e.CategoryToIdx[j] = make(map[string]int, len(levels))
		for idx, level := range levels {
			e.CategoryToIdx[j][level] = idx
		}
	}

	e.state.SetFitted()
	e.state.SetDimensions(nFeatures, len(data))
	return nil
}

// Transform replaces every level with its code. An unseen level is a ValueError.
func (e *OrdinalEncoder) Transform(data [][]string) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "OrdinalEncoder.Transform")
	if err := e.state.RequireFitted("OrdinalEncoder", "Transform"); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &mat.Dense{}, nil
	}

	result := mat.NewDense(len(data), e.NFeatures, nil)
	for i, row := range data {
		if len(row) != e.NFeatures {
			return nil, mlerrors.NewDimensionError("OrdinalEncoder.Transform", e.NFeatures, len(row), 1)
		}
		for j, level := range row {
			code, ok := e.CategoryToIdx[j][level]
			if !ok {
				return nil, mlerrors.NewValueError("OrdinalEncoder.Transform",
					fmt.Sprintf("unknown category %q in feature %d", level, j))
			}
			result.Set(i, j, float64(code))
		}
	}
	return result, nil
}

// FitTransform fits on data and returns its codes.
func (e *OrdinalEncoder) FitTransform(data [][]string) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "OrdinalEncoder.FitTransform")
	if err := e.Fit(data); err != nil {
		return nil, err
	}
	return e.Transform(data)
}

// InverseTransform maps a code of feature j back to its level.
func (e *OrdinalEncoder) InverseTransform(feature, code int) (string, error) {
	if err := e.state.RequireFitted("OrdinalEncoder", "InverseTransform"); err != nil {
		return "", err
	}
	if feature < 0 || feature >= e.NFeatures {
		return "", mlerrors.NewValueError("OrdinalEncoder.InverseTransform",
			fmt.Sprintf("feature %d out of range [0, %d)", feature, e.NFeatures))
	}
	levels := e.Categories[feature]
	if code < 0 || code >= len(levels) {
		return "", mlerrors.NewValueError("OrdinalEncoder.InverseTransform",
			fmt.Sprintf("code %d out of range [0, %d)", code, len(levels)))
	}
	return levels[code], nil
}

// IsFitted reports whether Fit has completed.
func (e *OrdinalEncoder) IsFitted() bool {
	return e.state.IsFitted()
}
