package adapter

import (
	"context"
	"fmt"

	"github.com/ezoic/mlsurface/core/model"
	"github.com/ezoic/mlsurface/dataset"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/preprocessing"
	"github.com/ezoic/mlsurface/sklearn/dummy"
	"github.com/ezoic/mlsurface/sklearn/ensemble"
	"github.com/ezoic/mlsurface/sklearn/neighbors"
	"github.com/ezoic/mlsurface/sklearn/pipeline"
	"github.com/ezoic/mlsurface/sklearn/tree"
)

// Default hyperparameters of the walkthrough run.
const (
	DefaultMinImpurityDecrease = 0.001
	DefaultMinSamplesLeaf      = 5
	DefaultNTree               = 500
	DefaultMTry                = 2
	DefaultSeed                = 1
	DefaultK                   = 5
)

// NullModel predicts the training positive rate everywhere.
type NullModel struct{}

// Name implements Adapter.
func (NullModel) Name() string { return "null" }

// Check implements Checker.
func (NullModel) Check(records *dataset.RecordSet, formula Formula) error {
	_, err := formula.Resolve(records)
	return err
}

// Fit implements Adapter.
func (m NullModel) Fit(ctx context.Context, records *dataset.RecordSet, formula Formula) (Fitted, error) {
	return fitEstimator(ctx, m.Name(), dummy.NewPriorClassifier(), records, formula)
}

// TreeModel is a single classification tree.
type TreeModel struct {
	// MinImpurityDecrease is the weighted impurity decrease a split must reach.
	MinImpurityDecrease float64
	// MinSamplesLeaf is the minimum number of records in a leaf.
	MinSamplesLeaf int
	// Criterion is "gini" (default) or "entropy".
	Criterion string
}

// NewTreeModel returns a TreeModel with the default hyperparameters.
func NewTreeModel() TreeModel {
	return TreeModel{
		MinImpurityDecrease: DefaultMinImpurityDecrease,
		MinSamplesLeaf:      DefaultMinSamplesLeaf,
		Criterion:           "gini",
	}
}

// Name implements Adapter.
func (TreeModel) Name() string { return "tree" }

// Validate checks the hyperparameters.
func (m TreeModel) Validate() error {
	if m.MinImpurityDecrease < 0 {
		return mlerrors.NewConfigError("tree.min_impurity_decrease", "must be >= 0", m.MinImpurityDecrease)
	}
	if m.MinSamplesLeaf < 1 {
		return mlerrors.NewConfigError("tree.min_samples_leaf", "must be >= 1", m.MinSamplesLeaf)
	}
	if m.Criterion != "" && m.Criterion != "gini" && m.Criterion != "entropy" {
		return mlerrors.NewConfigError("tree.criterion", "must be gini or entropy", m.Criterion)
	}
	return nil
}

// Check implements Checker.
func (m TreeModel) Check(records *dataset.RecordSet, formula Formula) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := formula.Resolve(records)
	return err
}

// Fit implements Adapter.
func (m TreeModel) Fit(ctx context.Context, records *dataset.RecordSet, formula Formula) (Fitted, error) {
	if err := m.Check(records, formula); err != nil {
		return nil, err
	}
	criterion := m.Criterion
	if criterion == "" {
		criterion = "gini"
	}
	dt := tree.NewDecisionTreeClassifier(
		tree.WithCriterion(criterion),
		tree.WithMinImpurityDecrease(m.MinImpurityDecrease),
		tree.WithMinSamplesLeaf(m.MinSamplesLeaf),
		tree.WithDTRandomState(0),
	)
	return fitEstimator(ctx, m.Name(), dt, records, formula)
}

// ForestModel is a random forest. The same Seed always yields the same predictions.
type ForestModel struct {
	NTree int
	MTry  int
	Seed  int64
	// Workers bounds concurrent tree training. Zero uses every CPU.
	Workers int
}

// NewForestModel returns a ForestModel with the default hyperparameters.
func NewForestModel() ForestModel {
	return ForestModel{NTree: DefaultNTree, MTry: DefaultMTry, Seed: DefaultSeed}
}

// Name implements Adapter.
func (ForestModel) Name() string { return "forest" }

// Validate checks the hyperparameters that do not depend on the data.
func (m ForestModel) Validate() error {
	if m.NTree < 1 {
		return mlerrors.NewConfigError("forest.ntree", "must be >= 1", m.NTree)
	}
	if m.MTry < 1 {
		return mlerrors.NewConfigError("forest.mtry", "must be >= 1", m.MTry)
	}
	return nil
}

// Check implements Checker. MTry may not exceed the number of predictors.
func (m ForestModel) Check(records *dataset.RecordSet, formula Formula) error {
	_, err := m.resolve(records, formula)
	return err
}

func (m ForestModel) resolve(records *dataset.RecordSet, formula Formula) (Formula, error) {
	if err := m.Validate(); err != nil {
		return Formula{}, err
	}
	resolved, err := formula.Resolve(records)
	if err != nil {
		return Formula{}, err
	}
	if m.MTry > len(resolved.Predictors) {
		return Formula{}, mlerrors.NewConfigError("forest.mtry",
			fmt.Sprintf("must be <= number of predictors (%d)", len(resolved.Predictors)), m.MTry)
	}
	return resolved, nil
}

// Fit implements Adapter.
func (m ForestModel) Fit(ctx context.Context, records *dataset.RecordSet, formula Formula) (Fitted, error) {
	resolved, err := m.resolve(records, formula)
	if err != nil {
		return nil, err
	}

	opts := []ensemble.Option{
		ensemble.WithNEstimators(m.NTree),
		ensemble.WithMaxFeatures(m.MTry),
		ensemble.WithRandomState(m.Seed),
	}
	if m.Workers > 0 {
		opts = append(opts, ensemble.WithNJobs(m.Workers))
	}
	return fitEstimator(ctx, m.Name(), ensemble.NewRandomForestClassifier(opts...), records, resolved)
}

// NeighborModel is k-nearest-neighbours over exactly two continuous predictors.
type NeighborModel struct {
	K int
	// Standardize scales both predictors to zero mean and unit variance before
	// measuring distance.
	Standardize bool
	// Workers bounds concurrent prediction. Zero uses every CPU.
	Workers int
}

// NewNeighborModel returns a NeighborModel with the default k.
func NewNeighborModel() NeighborModel {
	return NeighborModel{K: DefaultK}
}

// Name implements Adapter.
func (NeighborModel) Name() string { return "knn" }

// Validate checks the hyperparameters that do not depend on the data.
func (m NeighborModel) Validate() error {
	if m.K < 1 {
		return mlerrors.NewConfigError("knn.k", "must be >= 1", m.K)
	}
	return nil
}

// Check implements Checker. K may not exceed the number of records and the formula
// must name exactly two continuous predictors.
func (m NeighborModel) Check(records *dataset.RecordSet, formula Formula) error {
	_, err := m.resolve(records, formula)
	return err
}

func (m NeighborModel) resolve(records *dataset.RecordSet, formula Formula) (Formula, error) {
	if err := m.Validate(); err != nil {
		return Formula{}, err
	}
	if m.K > records.Len() {
		return Formula{}, mlerrors.NewConfigError("knn.k",
			fmt.Sprintf("must be <= number of records (%d)", records.Len()), m.K)
	}
	resolved, err := formula.Resolve(records)
	if err != nil {
		return Formula{}, err
	}
	if len(resolved.Predictors) != 2 {
		return Formula{}, mlerrors.NewConfigError("knn.formula", "needs exactly two predictors", resolved.String())
	}
	for _, name := range resolved.Predictors {
		if records.Kind(name) != dataset.Continuous {
			return Formula{}, mlerrors.NewConfigError("knn.formula", fmt.Sprintf("predictor %s is not continuous", name), resolved.String())
		}
	}
	return resolved, nil
}

// Fit implements Adapter.
func (m NeighborModel) Fit(ctx context.Context, records *dataset.RecordSet, formula Formula) (Fitted, error) {
	resolved, err := m.resolve(records, formula)
	if err != nil {
		return nil, err
	}

	var opts []neighbors.Option
	if m.Workers > 0 {
		opts = append(opts, neighbors.WithWorkers(m.Workers))
	}
	knn := neighbors.NewKNeighborsClassifier(m.K, opts...)

	var estimator model.ProbabilityClassifier = knn
	if m.Standardize {
		estimator = pipeline.New(knn, pipeline.Step{Name: "standardize", Transformer: preprocessing.NewStandardScaler()})
	}
	return fitEstimator(ctx, m.Name(), estimator, records, resolved)
}
