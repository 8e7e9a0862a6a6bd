// Package pipeline chains transformers in front of a probability classifier.
//
// A Pipeline is itself a model.ProbabilityClassifier: Fit fits each transformer on
// the output of the previous one and then fits the final classifier; Predict and
// PredictProba apply the fitted transformers before delegating.
//
//	p := pipeline.New(
//	    neighbors.NewKNeighborsClassifier(5),
//	    pipeline.Step{Name: "scale", Transformer: preprocessing.NewStandardScaler()},
//	)
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/core/model"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

// Step is a named transformer.
type Step struct {
	Name        string
	Transformer model.Transformer
}

// Pipeline applies Steps in order, then Final.
type Pipeline struct {
	state  *model.StateManager
	logger log.Logger

	steps []Step
	final model.ProbabilityClassifier
}

// New creates a Pipeline ending in final.
func New(final model.ProbabilityClassifier, steps ...Step) *Pipeline {
	return &Pipeline{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("pipeline").With(log.ComponentKey, "pipeline"),
		steps:  steps,
		final:  final,
	}
}

// Fit fits every step on the output of the previous one, then the final classifier.
func (p *Pipeline) Fit(X, y mat.Matrix) (err error) {
	defer mlerrors.Recover(&err, "Pipeline.Fit")
	if p.final == nil {
		return mlerrors.NewValueError("Pipeline.Fit", "final classifier cannot be nil")
	}

	startTime := time.Now()
	Xt := X
	for _, step := range p.steps {
		if Xt, err = step.Transformer.FitTransform(Xt); err != nil {
			return mlerrors.Wrapf(err, "failed to fit step '%s'", step.Name)
		}
	}
	if err := p.final.Fit(Xt, y); err != nil {
		return mlerrors.Wrap(err, "failed to fit final classifier")
	}

	rows, cols := X.Dims()
	p.state.SetDimensions(cols, rows)
	p.state.SetFitted()
	p.logger.Debug("Pipeline fitted",
		log.OperationKey, log.OperationFit,
		"steps", len(p.steps),
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return nil
}

func (p *Pipeline) transform(op string, X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", op); err != nil {
		return nil, err
	}
	Xt := X
	var err error
	for _, step := range p.steps {
		if Xt, err = step.Transformer.Transform(Xt); err != nil {
			return nil, mlerrors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
	}
	return Xt, nil
}

// Transform applies the fitted steps without the final classifier.
func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	return p.transform("Transform", X)
}

// Predict transforms X and predicts labels with the final classifier.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform("Predict", X)
	if err != nil {
		return nil, err
	}
	return p.final.Predict(Xt)
}

// PredictProba transforms X and predicts class probabilities with the final classifier.
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return p.final.PredictProba(Xt)
}

// Classes returns the final classifier's classes.
func (p *Pipeline) Classes() []int {
	return p.final.Classes()
}

// Steps returns the transformer steps.
func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Final returns the final classifier.
func (p *Pipeline) Final() model.ProbabilityClassifier {
	return p.final
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool {
	return p.state.IsFitted()
}

// String implements fmt.Stringer.
func (p *Pipeline) String() string {
	names := make([]string, 0, len(p.steps)+1)
	for _, s := range p.steps {
		names = append(names, s.Name)
	}
	names = append(names, fmt.Sprint(p.final))
	return fmt.Sprintf("Pipeline(%s)", strings.Join(names, " -> "))
}
