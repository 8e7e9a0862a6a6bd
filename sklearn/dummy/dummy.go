// Package dummy provides baseline classifiers that ignore the features.
package dummy

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/core/model"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

// PriorClassifier predicts the training class frequencies for every input row.
type PriorClassifier struct {
	state  *model.StateManager
	logger log.Logger

	classes []int
	prior   []float64
}

// NewPriorClassifier creates an unfitted PriorClassifier.
func NewPriorClassifier() *PriorClassifier {
	return &PriorClassifier{
		state: model.NewStateManager(),
		logger: log.GetLoggerWithName("dummy").With(
			log.ModelKindKey, "PriorClassifier",
			log.ComponentKey, "sklearn.dummy",
		),
	}
}

// Fit records the class frequencies of y. X only fixes the feature count.
func (p *PriorClassifier) Fit(X, y mat.Matrix) (err error) {
	defer mlerrors.Recover(&err, "PriorClassifier.Fit")

	startTime := time.Now()
	nSamples, nFeatures, err := model.ValidateXY("PriorClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	p.classes = model.ExtractClasses(y)
	counts := make(map[int]int, len(p.classes))
	for i := 0; i < nSamples; i++ {
		counts[int(y.At(i, 0))]++
	}
	p.prior = make([]float64, len(p.classes))
	for j, class := range p.classes {
		p.prior[j] = float64(counts[class]) / float64(nSamples)
	}

	p.state.SetFitted()
	p.state.SetDimensions(nFeatures, nSamples)

	p.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, nSamples,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return nil
}

// PredictProba returns the prior for every row.
func (p *PriorClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PriorClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := p.state.CheckFeatures("PriorClassifier.PredictProba", X); err != nil {
		return nil, err
	}

	r, _ := X.Dims()
	probas := mat.NewDense(r, len(p.classes), nil)
	for i := 0; i < r; i++ {
		probas.SetRow(i, p.prior)
	}
	return probas, nil
}

// Predict returns the most frequent class for every row. Ties go to the lower class.
func (p *PriorClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PriorClassifier", "Predict"); err != nil {
		return nil, err
	}
	if err := p.state.CheckFeatures("PriorClassifier.Predict", X); err != nil {
		return nil, err
	}

	best := 0
	for j, v := range p.prior {
		if v > p.prior[best] {
			best = j
		}
	}

	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(p.classes[best]))
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (p *PriorClassifier) Classes() []int {
	return append([]int(nil), p.classes...)
}

// Prior returns the class frequencies in Classes order.
func (p *PriorClassifier) Prior() []float64 {
	return append([]float64(nil), p.prior...)
}

// String implements fmt.Stringer.
func (p *PriorClassifier) String() string {
	return fmt.Sprintf("PriorClassifier(prior=%v)", p.prior)
}
