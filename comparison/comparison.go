// Package comparison runs the full model comparison: prepare the records, build the
// feature grid, fit and evaluate every configured model, then assemble one
// prediction table.
//
// Schema and configuration problems abort the run before any model is fitted. A
// model that fails afterwards (a fit error, a broken prediction contract, a panic,
// a misaligned surface) is left out of the table and reported in Result.Failures;
// the other models are unaffected.
package comparison

import (
	"context"
	"time"

	"github.com/google/uuid"
	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/ezoic/mlsurface/adapter"
	"github.com/ezoic/mlsurface/assemble"
	"github.com/ezoic/mlsurface/config"
	"github.com/ezoic/mlsurface/core/parallel"
	"github.com/ezoic/mlsurface/dataset"
	"github.com/ezoic/mlsurface/grid"
	"github.com/ezoic/mlsurface/metrics"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

// Observation is one training record projected onto the grid features.
type Observation struct {
	A     float64 `json:"feature_a"`
	B     float64 `json:"feature_b"`
	Label int     `json:"label"`
}

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Records *dataset.RecordSet
	Grid    *grid.FeatureGrid
	Table   *assemble.PredictionTable

	// Scores holds training-set metrics for every model that could score its records.
	Scores map[string]metrics.Summary
	// Observed holds the training records for overlaying on the surfaces.
	Observed []Observation
	// Failures maps each failed model to its error.
	Failures map[string]error
}

// Err returns a *PartialFailure when at least one model failed, and nil otherwise.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &mlerrors.PartialFailure{Failures: r.Failures, Succeeded: r.Table.Models()}
}

// Options control how models are evaluated.
type Options struct {
	// Parallel fits models concurrently. Results are the same as a sequential run.
	Parallel bool
	// Workers bounds concurrent models when Parallel is set. Zero means one per model.
	Workers int
}

// Run executes the run described by cfg against frame.
func Run(ctx context.Context, frame *dataframe.DataFrame, cfg *config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	columns, err := cfg.DatasetColumns()
	if err != nil {
		return nil, err
	}
	entries, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	records, err := dataset.Prepare(frame, columns, cfg.Label, cfg.PrepareOptions()...)
	if err != nil {
		return nil, err
	}
	g, err := grid.Build(records, cfg.Grid.FeatureA, cfg.Grid.FeatureB, cfg.Grid.Resolution)
	if err != nil {
		return nil, err
	}
	return Compare(ctx, records, g, entries, Options{Parallel: cfg.Parallel, Workers: cfg.Workers})
}

type outcome struct {
	surface *grid.Surface
	score   *metrics.Summary
	err     error
}

// Compare fits and evaluates entries on an already prepared RecordSet and grid.
// Every entry is checked against records first; the first check failure is returned
// and nothing is fitted.
func Compare(ctx context.Context, records *dataset.RecordSet, g *grid.FeatureGrid, entries []config.Entry, opts Options) (*Result, error) {
	runID := uuid.NewString()
	logger := log.GetLoggerWithName("comparison").With(
		log.RunIDKey, runID,
		log.ComponentKey, "comparison",
	)

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			return nil, mlerrors.NewConfigError("model", "duplicate model name", e.Name)
		}
		seen[e.Name] = true
		if err := adapter.Check(e.Adapter, records, e.Formula); err != nil {
			return nil, mlerrors.Wrapf(err, "model '%s'", e.Name)
		}
	}

	startTime := time.Now()
	featureA, featureB := g.Features()
	logger.Info("Comparison started",
		log.SamplesKey, records.Len(),
		log.GridPointsKey, g.Len(),
		log.ColumnsKey, []string{featureA, featureB},
		"models", len(entries),
		"parallel", opts.Parallel,
	)

	outcomes := make([]outcome, len(entries))
	evaluate := func(i int) {
		e := entries[i]
		outcomes[i] = evaluateOne(ctx, logger.With(log.ModelNameKey, e.Name), records, g, e)
	}
	if opts.Parallel {
		parallel.ForEach(len(entries), opts.Workers, evaluate)
	} else {
		for i := range entries {
			evaluate(i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:    runID,
		Records:  records,
		Grid:     g,
		Scores:   make(map[string]metrics.Summary),
		Failures: make(map[string]error),
	}
	named := make([]assemble.Named, 0, len(entries))
	for i, e := range entries {
		o := outcomes[i]
		if o.err != nil {
			result.Failures[e.Name] = o.err
			continue
		}
		named = append(named, assemble.Named{Name: e.Name, Surface: o.surface})
		if o.score != nil {
			result.Scores[e.Name] = *o.score
		}
	}

	table, err := assemble.Assemble(g, named)
	if err != nil {
		return nil, err
	}
	for name, err := range table.Rejected {
		result.Failures[name] = err
		delete(result.Scores, name)
	}
	result.Table = table

	if result.Observed, err = observe(records, featureA, featureB); err != nil {
		return nil, err
	}

	logger.Info("Comparison completed",
		log.RowsKey, table.Len(),
		"failed", len(result.Failures),
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return result, nil
}

// evaluateOne fits one model and evaluates it on g. Panics become errors.
func evaluateOne(ctx context.Context, logger log.Logger, records *dataset.RecordSet, g *grid.FeatureGrid, e config.Entry) outcome {
	var o outcome
	o.err = mlerrors.SafeExecute("comparison."+e.Name, func() error {
		trained, err := e.Adapter.Fit(ctx, records, e.Formula)
		if err != nil {
			return err
		}
		surface, err := adapter.Evaluate(ctx, e.Name, trained, g)
		if err != nil {
			return err
		}
		o.surface = surface
		o.score = score(ctx, logger, records, trained)
		return nil
	})
	if o.err != nil {
		logger.Error("Model failed", log.ErrorKey, o.err)
		o.surface, o.score = nil, nil
	}
	return o
}

// score computes training-set metrics. Scoring is best effort: a model that cannot
// score its records still contributes its surface.
func score(ctx context.Context, logger log.Logger, records *dataset.RecordSet, trained adapter.Fitted) *metrics.Summary {
	rp, ok := trained.(adapter.RecordPredictor)
	if !ok {
		return nil
	}
	preds, err := rp.PredictRecords(ctx, records)
	if err == nil {
		var s metrics.Summary
		if s, err = metrics.ScoreSlice(records.Labels(), preds); err == nil {
			logger.Info("Model scored",
				log.OperationKey, log.OperationScore,
				log.AccuracyKey, s.Accuracy,
				log.AUCKey, s.AUC,
			)
			return &s
		}
	}
	logger.Warn("Scoring skipped", log.ErrorKey, err)
	return nil
}

func observe(records *dataset.RecordSet, featureA, featureB string) ([]Observation, error) {
	a, err := records.Column(featureA)
	if err != nil {
		return nil, err
	}
	b, err := records.Column(featureB)
	if err != nil {
		return nil, err
	}
	labels := records.Labels()
	out := make([]Observation, records.Len())
	for i := range out {
		out[i] = Observation{A: a[i], B: b[i], Label: labels[i]}
	}
	return out, nil
}
