// Package assemble joins per-model prediction surfaces into one long-format table.
package assemble

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/ezoic/mlsurface/grid"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

// Header is the column order of the prediction table.
var Header = []string{"feature_a", "feature_b", "model", "predicted_value"}

// Named pairs a model name with its prediction surface.
type Named struct {
	Name    string
	Surface *grid.Surface
}

// Row is one (feature_a, feature_b, model, predicted_value) record.
type Row struct {
	FeatureA       float64 `json:"feature_a"`
	FeatureB       float64 `json:"feature_b"`
	Model          string  `json:"model"`
	PredictedValue float64 `json:"predicted_value"`
}

// PredictionTable holds grid.Len() rows per accepted model, grouped by model in the
// order the models were supplied and within a model in grid order.
type PredictionTable struct {
	FeatureA string
	FeatureB string
	Rows     []Row
	// Rejected maps each misaligned model to its AlignmentError.
	Rejected map[string]error

	models []string
}

// Assemble builds the table from every aligned surface. A surface that does not cover
// the grid exactly is left out and reported in Rejected.
func Assemble(g *grid.FeatureGrid, surfaces []Named) (*PredictionTable, error) {
	return assemble(g, surfaces, false)
}

// AssembleStrict is like Assemble but fails on the first misaligned surface.
func AssembleStrict(g *grid.FeatureGrid, surfaces []Named) (*PredictionTable, error) {
	return assemble(g, surfaces, true)
}

func assemble(g *grid.FeatureGrid, surfaces []Named, strict bool) (*PredictionTable, error) {
	logger := log.GetLoggerWithName("assemble").With(log.ComponentKey, "assemble")
	startTime := time.Now()

	featureA, featureB := g.Features()
	table := &PredictionTable{
		FeatureA: featureA,
		FeatureB: featureB,
		Rows:     make([]Row, 0, g.Len()*len(surfaces)),
		Rejected: make(map[string]error),
	}

	seen := make(map[string]bool, len(surfaces))
	for _, s := range surfaces {
		if seen[s.Name] {
			return nil, mlerrors.NewConfigError("model", "duplicate model name", s.Name)
		}
		seen[s.Name] = true

		rows, err := align(g, s)
		if err != nil {
			if strict {
				return nil, err
			}
			logger.Warn("Model rejected",
				log.OperationKey, log.OperationAssemble,
				log.ModelNameKey, s.Name,
				log.ErrorKey, err,
			)
			table.Rejected[s.Name] = err
			continue
		}
		table.Rows = append(table.Rows, rows...)
		table.models = append(table.models, s.Name)
	}

	logger.Debug("Table assembled",
		log.OperationKey, log.OperationAssemble,
		log.PhaseKey, log.PhaseAssembly,
		log.RowsKey, len(table.Rows),
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return table, nil
}

// align looks every grid point up by coordinate in the surface.
func align(g *grid.FeatureGrid, s Named) ([]Row, error) {
	if s.Surface == nil {
		return nil, mlerrors.NewAlignmentError(s.Name, g.Len(), 0)
	}
	if s.Surface.Len() != g.Distinct() {
		return nil, mlerrors.NewAlignmentError(s.Name, g.Distinct(), s.Surface.Len())
	}

	rows := make([]Row, g.Len())
	covered := 0
	for i := 0; i < g.Len(); i++ {
		p := g.Point(i)
		v, ok := s.Surface.At(p)
		if !ok {
			continue
		}
		covered++
		rows[i] = Row{FeatureA: p.A, FeatureB: p.B, Model: s.Name, PredictedValue: v}
	}
	if covered != g.Len() {
		return nil, mlerrors.NewAlignmentError(s.Name, g.Len(), covered)
	}
	return rows, nil
}

// Len returns the number of rows.
func (t *PredictionTable) Len() int {
	return len(t.Rows)
}

// Models returns the accepted model names in table order.
func (t *PredictionTable) Models() []string {
	return append([]string(nil), t.models...)
}

// CountByModel returns the number of rows per accepted model.
func (t *PredictionTable) CountByModel() map[string]int {
	counts := make(map[string]int, len(t.models))
	for _, r := range t.Rows {
		counts[r.Model]++
	}
	return counts
}

// ForModel returns the rows of one model in grid order.
func (t *PredictionTable) ForModel(name string) []Row {
	var out []Row
	for _, r := range t.Rows {
		if r.Model == name {
			out = append(out, r)
		}
	}
	return out
}

// WriteCSV writes the table with a header row in Header order. Floats use the
// shortest representation that round-trips.
func (t *PredictionTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return mlerrors.Wrap(err, "write header")
	}
	record := make([]string, len(Header))
	for _, r := range t.Rows {
		record[0] = strconv.FormatFloat(r.FeatureA, 'g', -1, 64)
		record[1] = strconv.FormatFloat(r.FeatureB, 'g', -1, 64)
		record[2] = r.Model
		record[3] = strconv.FormatFloat(r.PredictedValue, 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return mlerrors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return mlerrors.WithStack(cw.Error())
}
