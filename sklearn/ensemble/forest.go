// Package ensemble implements a bagged random forest classifier on top of sklearn/tree.
package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/core/model"
	"github.com/ezoic/mlsurface/core/parallel"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
	"github.com/ezoic/mlsurface/sklearn/tree"
)

// RandomForestClassifier fits nEstimators trees on bootstrap samples, drawing maxFeatures
// candidate features at every split. The probability of a class is the fraction of trees
// voting for it.
//
// Tree seeds are drawn up front from randomState, so the fitted forest does not depend
// on how many workers trained it.
type RandomForestClassifier struct {
	state  *model.StateManager
	logger log.Logger

	nEstimators    int
	maxFeatures    int // 0 = floor(sqrt(n_features))
	minSamplesLeaf int
	maxDepth       int
	randomState    int64
	nJobs          int

	trees               []*tree.DecisionTreeClassifier
	classes             []int
	featureImportances_ []float64
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// NewRandomForestClassifier creates an unfitted forest.
//
//	rf := ensemble.NewRandomForestClassifier(
//		ensemble.WithNEstimators(500),
//		ensemble.WithMaxFeatures(2),
//		ensemble.WithRandomState(1),
//	)
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:          model.NewStateManager(),
		nEstimators:    500,
		maxFeatures:    0,
		minSamplesLeaf: 1,
		randomState:    -1,
		nJobs:          runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(rf)
	}
	if rf.logger == nil {
		rf.logger = log.GetLoggerWithName("ensemble").With(
			log.ModelKindKey, "RandomForestClassifier",
			log.ComponentKey, "sklearn.ensemble",
		)
	}
	return rf
}

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithMaxFeatures sets the number of features drawn at each split (mtry).
func WithMaxFeatures(n int) Option {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = n
	}
}

// WithMinSamplesLeaf sets the minimum records per leaf of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithMaxDepth limits the depth of every tree. Zero grows trees fully.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithRandomState sets the seed. A negative seed is replaced by the current time.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// WithNJobs sets how many trees are trained concurrently.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(rf *RandomForestClassifier) {
		rf.logger = logger
	}
}

func (rf *RandomForestClassifier) validate(nFeatures int) error {
	switch {
	case rf.nEstimators < 1:
		return mlerrors.NewConfigError("n_estimators", "must be >= 1", rf.nEstimators)
	case rf.maxFeatures < 0:
		return mlerrors.NewConfigError("max_features", "must be >= 1", rf.maxFeatures)
	case rf.maxFeatures > nFeatures:
		return mlerrors.NewConfigError("max_features",
			fmt.Sprintf("must be <= number of features (%d)", nFeatures), rf.maxFeatures)
	case rf.minSamplesLeaf < 1:
		return mlerrors.NewConfigError("min_samples_leaf", "must be >= 1", rf.minSamplesLeaf)
	}
	return nil
}

// Fit trains the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer mlerrors.Recover(&err, "RandomForestClassifier.Fit")

	startTime := time.Now()
	nSamples, nFeatures, err := model.ValidateXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate(nFeatures); err != nil {
		return err
	}

	mtry := rf.maxFeatures
	if mtry == 0 {
		mtry = int(math.Max(1, math.Floor(math.Sqrt(float64(nFeatures)))))
	}

	rf.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"n_estimators", rf.nEstimators,
		"max_features", mtry,
	)

	seed := rf.randomState
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	Xd := mat.DenseCopyOf(X)
	yv := mat.Col(nil, 0, y)

	rf.classes = model.ExtractClasses(y)
	rf.trees = make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)

	parallel.ForEach(rf.nEstimators, rf.nJobs, func(i int) {
		errs[i] = mlerrors.SafeExecute("RandomForestClassifier.fitTree", func() error {
			dt, err := rf.fitTree(Xd, yv, mtry, seeds[i])
			rf.trees[i] = dt
			return err
		})
	})
	for i, err := range errs {
		if err != nil {
			return mlerrors.Wrapf(err, "tree %d training failed", i)
		}
	}

	rf.featureImportances_ = make([]float64, nFeatures)
	for _, dt := range rf.trees {
		for j, v := range dt.GetFeatureImportances() {
			rf.featureImportances_[j] += v / float64(rf.nEstimators)
		}
	}

	rf.state.SetFitted()
	rf.state.SetDimensions(nFeatures, nSamples)

	rf.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return nil
}

// fitTree trains one tree on a bootstrap sample drawn with its own seeded source.
func (rf *RandomForestClassifier) fitTree(X *mat.Dense, y []float64, mtry int, seed int64) (*tree.DecisionTreeClassifier, error) {
	r := rand.New(rand.NewSource(seed))
	n, p := X.Dims()

	XBoot := mat.NewDense(n, p, nil)
	yBoot := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		idx := r.Intn(n)
		XBoot.SetRow(i, X.RawRowView(idx))
		yBoot.SetVec(i, y[idx])
	}

	dt := tree.NewDecisionTreeClassifier(
		tree.WithMaxFeatures(mtry),
		tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
		tree.WithMaxDepth(rf.maxDepth),
		tree.WithDTRandomState(r.Int63()),
		tree.WithLogger(rf.logger),
	)
	if err := dt.Fit(XBoot, yBoot); err != nil {
		return nil, err
	}
	return dt, nil
}

// PredictProba returns the fraction of trees voting for each class, one column per
// class in Classes order.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "RandomForestClassifier.PredictProba")
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := rf.state.CheckFeatures("RandomForestClassifier.PredictProba", X); err != nil {
		return nil, err
	}

	classIndex := make(map[int]int, len(rf.classes))
	for j, c := range rf.classes {
		classIndex[c] = j
	}

	r, _ := X.Dims()
	nClasses := len(rf.classes)
	counts := make([]int, r*nClasses)
	for _, dt := range rf.trees {
		preds, err := dt.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < r; i++ {
			counts[i*nClasses+classIndex[int(preds.At(i, 0))]]++
		}
	}

	votes := mat.NewDense(r, nClasses, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < nClasses; j++ {
			votes.Set(i, j, float64(counts[i*nClasses+j])/float64(len(rf.trees)))
		}
	}
	return votes, nil
}

// Predict returns the majority vote. Ties go to the lower class.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, c := probas.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if probas.At(i, j) > probas.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(rf.classes[best]))
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes...)
}

// NEstimators returns the number of fitted trees.
func (rf *RandomForestClassifier) NEstimators() int {
	return len(rf.trees)
}

// GetFeatureImportances returns the mean impurity importance over all trees.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// String implements fmt.Stringer.
func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_features=%d, random_state=%d)",
		rf.nEstimators, rf.maxFeatures, rf.randomState)
}
