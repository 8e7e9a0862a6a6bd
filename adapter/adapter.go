// Package adapter puts every compared model behind one Fit / PredictProb contract.
//
// An Adapter fits on a RecordSet with a Formula and returns a Fitted model whose
// PredictProb yields exactly one positive-class probability per grid point, in grid
// order. Evaluate enforces that contract and keys the predictions by coordinate.
package adapter

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/core/model"
	"github.com/ezoic/mlsurface/dataset"
	"github.com/ezoic/mlsurface/grid"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

// Adapter fits one model family.
type Adapter interface {
	// Name identifies the model in logs, errors and the prediction table.
	Name() string

	// Fit trains on records using the formula's predictors. Invalid hyperparameters
	// are ConfigErrors; unknown formula columns are SchemaErrors.
	Fit(ctx context.Context, records *dataset.RecordSet, formula Formula) (Fitted, error)
}

// Fitted is a trained model.
type Fitted interface {
	// PredictProb returns one positive-class probability per grid point, in grid order.
	PredictProb(ctx context.Context, g *grid.FeatureGrid) ([]float64, error)
}

// Checker is implemented by adapters that can validate their hyperparameters and
// formula against a RecordSet without fitting.
type Checker interface {
	Check(records *dataset.RecordSet, formula Formula) error
}

// Check runs a's Checker if it has one, and otherwise only resolves the formula.
func Check(a Adapter, records *dataset.RecordSet, formula Formula) error {
	if c, ok := a.(Checker); ok {
		return c.Check(records, formula)
	}
	_, err := formula.Resolve(records)
	return err
}

// RecordPredictor is implemented by fitted models that can also score the records
// they were trained on.
type RecordPredictor interface {
	PredictRecords(ctx context.Context, records *dataset.RecordSet) ([]float64, error)
}

// Evaluate runs PredictProb and checks the result: exactly g.Len() values, each a
// number in [0, 1]. A violation is an AdapterContractError naming the model.
func Evaluate(ctx context.Context, name string, fitted Fitted, g *grid.FeatureGrid) (*grid.Surface, error) {
	values, err := fitted.PredictProb(ctx, g)
	if err != nil {
		return nil, err
	}
	if err := CheckContract(name, g, values); err != nil {
		return nil, err
	}
	return grid.NewSurface(name, g, values)
}

// CheckContract validates a prediction sequence against g.
func CheckContract(name string, g *grid.FeatureGrid, values []float64) error {
	if len(values) != g.Len() {
		return mlerrors.NewAdapterContractError(name, g.Len(), len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return mlerrors.NewAdapterContractErrorf(name, "value %v at grid point %d is outside [0, 1]", v, i)
		}
	}
	return nil
}

// design maps a grid onto the predictors a model was fitted with. Predictors that
// are not grid features are held at their typical training value.
type design struct {
	predictors []string
	fill       map[string]float64
}

func newDesign(records *dataset.RecordSet, predictors []string) (*design, error) {
	d := &design{predictors: predictors, fill: make(map[string]float64, len(predictors))}
	for _, name := range predictors {
		v, err := records.Typical(name)
		if err != nil {
			return nil, err
		}
		d.fill[name] = v
	}
	return d, nil
}

// trainingMatrix returns the records' predictor matrix and label vector.
func (d *design) trainingMatrix(records *dataset.RecordSet) (*mat.Dense, *mat.VecDense, error) {
	if len(d.predictors) == 0 {
		// intercept-only models still need one column to fix the shape
		return mat.NewDense(records.Len(), 1, nil), records.LabelVector(), nil
	}
	X, err := records.Matrix(d.predictors...)
	if err != nil {
		return nil, nil, err
	}
	return X, records.LabelVector(), nil
}

// gridMatrix builds the n_points × n_predictors matrix evaluated by the model.
func (d *design) gridMatrix(g *grid.FeatureGrid) *mat.Dense {
	if len(d.predictors) == 0 {
		return mat.NewDense(g.Len(), 1, nil)
	}
	featureA, featureB := g.Features()
	X := mat.NewDense(g.Len(), len(d.predictors), nil)
	for i := 0; i < g.Len(); i++ {
		p := g.Point(i)
		for j, name := range d.predictors {
			switch name {
			case featureA:
				X.Set(i, j, p.A)
			case featureB:
				X.Set(i, j, p.B)
			default:
				X.Set(i, j, d.fill[name])
			}
		}
	}
	return X
}

// fitted wraps a trained probability classifier.
type fitted struct {
	name      string
	estimator model.ProbabilityClassifier
	design    *design
	logger    log.Logger
}

func (f *fitted) PredictProb(ctx context.Context, g *grid.FeatureGrid) (_ []float64, err error) {
	defer mlerrors.Recover(&err, f.name+".PredictProb")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.positive(f.design.gridMatrix(g), g.Len())
}

// PredictRecords implements RecordPredictor.
func (f *fitted) PredictRecords(ctx context.Context, records *dataset.RecordSet) (_ []float64, err error) {
	defer mlerrors.Recover(&err, f.name+".PredictRecords")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	X, _, err := f.design.trainingMatrix(records)
	if err != nil {
		return nil, err
	}
	return f.positive(X, records.Len())
}

// positive returns the class-1 probability column for X.
func (f *fitted) positive(X mat.Matrix, n int) ([]float64, error) {
	startTime := time.Now()
	probas, err := f.estimator.PredictProba(X)
	if err != nil {
		return nil, mlerrors.Wrapf(err, "model '%s' failed to predict", f.name)
	}

	out := make([]float64, n)
	for j, class := range f.estimator.Classes() {
		if class == 1 {
			mat.Col(out, j, probas)
		}
	}

	f.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredictProb,
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, len(out),
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return out, nil
}

// fitEstimator runs the shared fit path of every adapter.
func fitEstimator(ctx context.Context, name string, estimator model.ProbabilityClassifier, records *dataset.RecordSet, formula Formula) (*fitted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("adapter").With(
		log.ModelNameKey, name,
		log.ComponentKey, "adapter",
	)

	resolved, err := formula.Resolve(records)
	if err != nil {
		return nil, err
	}
	d, err := newDesign(records, resolved.Predictors)
	if err != nil {
		return nil, err
	}
	X, y, err := d.trainingMatrix(records)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, records.Len(),
		log.FeaturesKey, len(resolved.Predictors),
		"formula", resolved.String(),
	)

	if err := estimator.Fit(X, y); err != nil {
		return nil, err
	}

	logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)

	return &fitted{
		name:      name,
		estimator: estimator,
		design:    d,
		logger:    logger,
	}, nil
}
