// Package tree implements a CART decision tree classifier.
//
// Splits are binary threshold splits on a single feature chosen by Gini or entropy
// impurity decrease. Leaves keep their class counts so PredictProba returns the class
// fractions of the training records that reached the leaf.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/core/model"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

// TreeNode represents a node in the decision tree
type TreeNode struct {
	IsLeaf       bool      // Whether this is a leaf node
	Feature      int       // Feature index for split (internal nodes)
	Threshold    float64   // Threshold value for split (internal nodes)
	Left         *TreeNode // Left child (values <= threshold)
	Right        *TreeNode // Right child (values > threshold)
	ClassCounts  []int     // Class counts of the training records at this node
	PredictClass int       // Majority class index
	Impurity     float64   // Node impurity
	NSamples     int       // Number of samples at this node
	Depth        int       // Depth of this node in the tree
}

// DecisionTreeClassifier implements a decision tree for classification
type DecisionTreeClassifier struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters
	criterion           string  // Splitting criterion: "gini", "entropy"
	maxDepth            int     // Maximum depth of tree (0 = unlimited)
	minSamplesLeaf      int     // Minimum samples in a leaf
	maxFeatures         int     // Features drawn per split (0 = all)
	minImpurityDecrease float64 // Minimum weighted impurity decrease for a split
	randomState         int64   // Random seed (-1 = time based)

	// Tree structure
	tree_      *TreeNode
	nClasses_  int
	nFeatures_ int
	nSamples_  int
	classes_   []int
	rng        *rand.Rand

	featureImportances_ []float64
}

// DecisionTreeClassifierOption is a functional option
type DecisionTreeClassifierOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new decision tree classifier
//
//	dt := tree.NewDecisionTreeClassifier(
//		tree.WithMinSamplesLeaf(5),
//		tree.WithMinImpurityDecrease(0.001),
//	)
func NewDecisionTreeClassifier(opts ...DecisionTreeClassifierOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:               model.NewStateManager(),
		criterion:           "gini",
		maxDepth:            0,
		minSamplesLeaf:      1,
		maxFeatures:         0,
		minImpurityDecrease: 0.0,
		randomState:         -1,
	}

	for _, opt := range opts {
		opt(dt)
	}

	if dt.logger == nil {
		dt.logger = log.GetLoggerWithName("tree").With(
			log.ModelKindKey, "DecisionTreeClassifier",
			log.ComponentKey, "sklearn.tree",
		)
	}

	return dt
}

// WithCriterion sets the splitting criterion
func WithCriterion(criterion string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesLeaf sets minimum samples in leaf
func WithMinSamplesLeaf(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMinImpurityDecrease sets the minimum impurity decrease, weighted by the fraction
// of training records at the node, that a split must achieve.
func WithMinImpurityDecrease(v float64) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minImpurityDecrease = v
	}
}

// WithMaxFeatures sets how many randomly drawn features are searched at each split.
// Zero searches every feature. When none of the drawn features can be split, further
// features are drawn one at a time until one can or all have been tried.
func WithMaxFeatures(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithDTRandomState sets the random seed
func WithDTRandomState(seed int64) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.logger = logger
	}
}

// Validate checks the hyperparameters.
func (dt *DecisionTreeClassifier) Validate() error {
	switch {
	case dt.criterion != "gini" && dt.criterion != "entropy":
		return mlerrors.NewConfigError("criterion", "must be gini or entropy", dt.criterion)
	case dt.maxDepth < 0:
		return mlerrors.NewConfigError("max_depth", "must be >= 0", dt.maxDepth)
	case dt.minSamplesLeaf < 1:
		return mlerrors.NewConfigError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	case dt.maxFeatures < 0:
		return mlerrors.NewConfigError("max_features", "must be >= 0", dt.maxFeatures)
	case dt.minImpurityDecrease < 0 || math.IsNaN(dt.minImpurityDecrease):
		return mlerrors.NewConfigError("min_impurity_decrease", "must be >= 0", dt.minImpurityDecrease)
	}
	return nil
}

// Fit trains the decision tree
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer mlerrors.Recover(&err, "DecisionTreeClassifier.Fit")

	startTime := time.Now()

	if err := dt.Validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.ValidateXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if dt.maxFeatures > nFeatures {
		return mlerrors.NewConfigError("max_features",
			fmt.Sprintf("must be <= number of features (%d)", nFeatures), dt.maxFeatures)
	}

	dt.logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
	)

	dt.classes_ = model.ExtractClasses(y)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures
	dt.nSamples_ = nSamples
	dt.featureImportances_ = make([]float64, nFeatures)

	seed := dt.randomState
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	dt.rng = rand.New(rand.NewSource(seed))

	classIndex := make(map[int]int, dt.nClasses_)
	for j, class := range dt.classes_ {
		classIndex[class] = j
	}

	data := &trainingData{
		x:         mat.DenseCopyOf(X).RawMatrix().Data,
		y:         make([]int, nSamples),
		nFeatures: nFeatures,
	}
	for i := 0; i < nSamples; i++ {
		data.y[i] = classIndex[int(y.At(i, 0))]
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	dt.tree_ = dt.buildTree(data, indices, 0)
	dt.normalizeFeatureImportances()

	dt.state.SetFitted()
	dt.state.SetDimensions(nFeatures, nSamples)

	dt.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		"leaves", dt.GetNLeaves(),
		"depth", dt.GetDepth(),
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)

	return nil
}

// trainingData is a row-major copy of X with y mapped to class indices.
type trainingData struct {
	x         []float64
	y         []int
	nFeatures int
}

func (d *trainingData) at(i, j int) float64 {
	return d.x[i*d.nFeatures+j]
}

// buildTree recursively builds the decision tree over the given sample indices
func (dt *DecisionTreeClassifier) buildTree(data *trainingData, indices []int, depth int) *TreeNode {
	nSamples := len(indices)

	classCounts := make([]int, dt.nClasses_)
	for _, i := range indices {
		classCounts[data.y[i]]++
	}

	// Majority class; ties go to the lower class
	predictClass := 0
	for i, count := range classCounts {
		if count > classCounts[predictClass] {
			predictClass = i
		}
	}

	impurity := dt.calculateImpurity(classCounts)

	node := &TreeNode{
		ClassCounts:  classCounts,
		PredictClass: predictClass,
		Impurity:     impurity,
		NSamples:     nSamples,
		Depth:        depth,
	}

	if dt.shouldStop(nSamples, impurity, depth) {
		node.IsLeaf = true
		return node
	}

	bestFeature, bestThreshold, bestDecrease := dt.findBestSplit(data, indices, classCounts, impurity)

	weightedDecrease := bestDecrease * float64(nSamples) / float64(dt.nSamples_)
	if bestFeature == -1 || weightedDecrease < dt.minImpurityDecrease {
		node.IsLeaf = true
		return node
	}

	leftIndices, rightIndices := splitIndices(data, indices, bestFeature, bestThreshold)

	node.Feature = bestFeature
	node.Threshold = bestThreshold

	dt.featureImportances_[bestFeature] += bestDecrease * float64(nSamples)

	node.Left = dt.buildTree(data, leftIndices, depth+1)
	node.Right = dt.buildTree(data, rightIndices, depth+1)

	return node
}

// shouldStop checks stopping criteria
func (dt *DecisionTreeClassifier) shouldStop(nSamples int, impurity float64, depth int) bool {
	if dt.maxDepth > 0 && depth >= dt.maxDepth {
		return true
	}
	if nSamples < 2 || nSamples < 2*dt.minSamplesLeaf {
		return true
	}
	return impurity == 0.0
}

// calculateImpurity calculates node impurity using Gini or Entropy
func (dt *DecisionTreeClassifier) calculateImpurity(classCounts []int) float64 {
	total := 0
	for _, count := range classCounts {
		total += count
	}
	if total == 0 {
		return 0.0
	}

	impurity := 0.0
	switch dt.criterion {
	case "entropy":
		// -sum(p_i * log2(p_i))
		for _, count := range classCounts {
			if count > 0 {
				p := float64(count) / float64(total)
				impurity -= p * math.Log2(p)
			}
		}
	default:
		// 1 - sum(p_i^2)
		sumSquared := 0.0
		for _, count := range classCounts {
			if count > 0 {
				p := float64(count) / float64(total)
				sumSquared += p * p
			}
		}
		impurity = 1.0 - sumSquared
	}
	return impurity
}

// candidateFeatures returns the features searched at one split as batches. The first
// batch holds maxFeatures drawn features in ascending order; each later batch holds one
// more feature in draw order, searched only while no split has been found.
func (dt *DecisionTreeClassifier) candidateFeatures() [][]int {
	if dt.maxFeatures == 0 || dt.maxFeatures >= dt.nFeatures_ {
		all := make([]int, dt.nFeatures_)
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}
	perm := dt.rng.Perm(dt.nFeatures_)
	first := append([]int(nil), perm[:dt.maxFeatures]...)
	sort.Ints(first)
	batches := [][]int{first}
	for _, f := range perm[dt.maxFeatures:] {
		batches = append(batches, []int{f})
	}
	return batches
}

// findBestSplit sweeps every candidate feature in sorted order, keeping running class
// counts on each side. The first best (feature, threshold) found wins ties.
func (dt *DecisionTreeClassifier) findBestSplit(data *trainingData, indices []int, parentCounts []int, parentImpurity float64) (int, float64, float64) {
	bestFeature := -1
	bestThreshold := 0.0
	bestDecrease := 0.0

	s := &splitter{
		data:        data,
		sorted:      make([]int, len(indices)),
		leftCounts:  make([]int, dt.nClasses_),
		rightCounts: make([]int, dt.nClasses_),
	}
	for _, batch := range dt.candidateFeatures() {
		if bestFeature != -1 {
			break
		}
		for _, feature := range batch {
			threshold, decrease := dt.sweep(s, indices, feature, parentCounts, parentImpurity)
			if decrease > bestDecrease {
				bestFeature, bestThreshold, bestDecrease = feature, threshold, decrease
			}
		}
	}

	return bestFeature, bestThreshold, bestDecrease
}

// splitter holds the scratch buffers reused across features at one node.
type splitter struct {
	data        *trainingData
	sorted      []int
	leftCounts  []int
	rightCounts []int
}

// sweep returns the best threshold on one feature and its impurity decrease. A zero
// decrease means the feature has no usable split.
func (dt *DecisionTreeClassifier) sweep(s *splitter, indices []int, feature int, parentCounts []int, parentImpurity float64) (float64, float64) {
	data, sorted := s.data, s.sorted
	nSamples := len(indices)
	bestThreshold := 0.0
	bestDecrease := 0.0

	copy(sorted, indices)
	sort.SliceStable(sorted, func(a, b int) bool {
		return data.at(sorted[a], feature) < data.at(sorted[b], feature)
	})

	for c := range s.leftCounts {
		s.leftCounts[c] = 0
		s.rightCounts[c] = parentCounts[c]
	}

	for i := 0; i < nSamples-1; i++ {
		cls := data.y[sorted[i]]
		s.leftCounts[cls]++
		s.rightCounts[cls]--

		v1 := data.at(sorted[i], feature)
		v2 := data.at(sorted[i+1], feature)
		if v1 == v2 {
			continue
		}

		nLeft := i + 1
		nRight := nSamples - nLeft
		if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
			continue
		}

		leftImpurity := dt.calculateImpurity(s.leftCounts)
		rightImpurity := dt.calculateImpurity(s.rightCounts)
		weighted := (float64(nLeft)*leftImpurity + float64(nRight)*rightImpurity) / float64(nSamples)
		decrease := parentImpurity - weighted

		if decrease > bestDecrease {
			bestDecrease = decrease
			// the midpoint of adjacent floats can round up to v2
			bestThreshold = (v1 + v2) / 2.0
			if bestThreshold == v2 {
				bestThreshold = v1
			}
		}
	}

	return bestThreshold, bestDecrease
}

// splitIndices partitions indices on feature <= threshold, keeping their order.
func splitIndices(data *trainingData, indices []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, i := range indices {
		if data.at(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// normalizeFeatureImportances normalizes feature importance scores
func (dt *DecisionTreeClassifier) normalizeFeatureImportances() {
	sum := 0.0
	for _, imp := range dt.featureImportances_ {
		sum += imp
	}
	if sum > 0 {
		for i := range dt.featureImportances_ {
			dt.featureImportances_[i] /= sum
		}
	}
}

// leaf walks the tree for row i of X.
func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *TreeNode {
	node := dt.tree_
	for !node.IsLeaf {
		if X.At(i, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// Predict makes predictions for input data
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "DecisionTreeClassifier.Predict")
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "Predict"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.Predict", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, float64(dt.classes_[dt.leaf(X, i).PredictClass]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class, one column per class in
// Classes order.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "DecisionTreeClassifier.PredictProba")
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.PredictProba", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		node := dt.leaf(X, i)
		for j, count := range node.ClassCounts {
			probas.Set(i, j, float64(count)/float64(node.NSamples))
		}
	}
	return probas, nil
}

// Classes returns the sorted class labels seen during Fit
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// Score returns the mean accuracy on the given test data
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// IsFitted reports whether Fit has completed
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// Root returns the root node, or nil before Fit
func (dt *DecisionTreeClassifier) Root() *TreeNode {
	return dt.tree_
}

// GetFeatureImportances returns feature importance scores
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.featureImportances_ == nil {
		return nil
	}
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the tree
func (dt *DecisionTreeClassifier) GetDepth() int {
	return maxDepth(dt.tree_)
}

func maxDepth(node *TreeNode) int {
	if node == nil {
		return 0
	}
	if node.IsLeaf {
		return node.Depth
	}
	left, right := maxDepth(node.Left), maxDepth(node.Right)
	if left > right {
		return left
	}
	return right
}

// GetNLeaves returns the number of leaf nodes
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return countLeaves(dt.tree_)
}

func countLeaves(node *TreeNode) int {
	if node == nil {
		return 0
	}
	if node.IsLeaf {
		return 1
	}
	return countLeaves(node.Left) + countLeaves(node.Right)
}

// String implements fmt.Stringer
func (dt *DecisionTreeClassifier) String() string {
	if !dt.state.IsFitted() {
		return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, min_samples_leaf=%d)", dt.criterion, dt.minSamplesLeaf)
	}
	return fmt.Sprintf("DecisionTreeClassifier(leaves=%d, depth=%d)", dt.GetNLeaves(), dt.GetDepth())
}
