// Package neighbors implements a k-nearest-neighbours classifier.
package neighbors

import (
	"fmt"
	"runtime"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/mlsurface/core/model"
	"github.com/ezoic/mlsurface/core/parallel"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

// KNeighborsClassifier votes among the k training records closest in Euclidean
// distance. Records at equal distance are ranked by their position in the training
// data, so the earlier record is kept when the k-th place is tied.
type KNeighborsClassifier struct {
	state  *model.StateManager
	logger log.Logger

	k       int
	workers int

	x       []float64 // row-major training features
	y       []int     // class index per training record
	classes []int
}

// sequentialRows is the query count at or below which PredictProba stays on the
// calling goroutine.
const sequentialRows = 32

// Option configures a KNeighborsClassifier.
type Option func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates an unfitted classifier with k neighbours.
func NewKNeighborsClassifier(k int, opts ...Option) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:   model.NewStateManager(),
		k:       k,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(knn)
	}
	if knn.logger == nil {
		knn.logger = log.GetLoggerWithName("neighbors").With(
			log.ModelKindKey, "KNeighborsClassifier",
			log.ComponentKey, "sklearn.neighbors",
		)
	}
	return knn
}

// WithWorkers sets how many goroutines share PredictProba rows. Zero or less uses
// every CPU.
func WithWorkers(n int) Option {
	return func(knn *KNeighborsClassifier) {
		knn.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(knn *KNeighborsClassifier) {
		knn.logger = logger
	}
}

// Fit stores the training records. k must lie in [1, n_samples].
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) (err error) {
	defer mlerrors.Recover(&err, "KNeighborsClassifier.Fit")

	nSamples, nFeatures, err := model.ValidateXY("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if knn.k < 1 {
		return mlerrors.NewConfigError("k", "must be >= 1", knn.k)
	}
	if knn.k > nSamples {
		return mlerrors.NewConfigError("k",
			fmt.Sprintf("must be <= number of training records (%d)", nSamples), knn.k)
	}

	knn.classes = model.ExtractClasses(y)
	classIndex := make(map[int]int, len(knn.classes))
	for j, c := range knn.classes {
		classIndex[c] = j
	}

	knn.x = mat.DenseCopyOf(X).RawMatrix().Data
	knn.y = make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		knn.y[i] = classIndex[int(y.At(i, 0))]
	}

	knn.state.SetFitted()
	knn.state.SetDimensions(nFeatures, nSamples)

	knn.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"k", knn.k,
	)
	return nil
}

type neighbor struct {
	d     float64
	index int
}

// nearest returns the k closest training records to q, ordered by (distance, index).
func (knn *KNeighborsClassifier) nearest(q []float64, nbrs []neighbor) []neighbor {
	nFeatures := len(q)
	nbrs = nbrs[:0]
	for i := range knn.y {
		row := knn.x[i*nFeatures : (i+1)*nFeatures]
		d := euclidSquared(q, row)

		if len(nbrs) == knn.k {
			// strict comparison keeps the earlier record on ties
			if d >= nbrs[knn.k-1].d {
				continue
			}
			nbrs = nbrs[:knn.k-1]
		}

		// insert after every neighbour at distance <= d
		pos := len(nbrs)
		for pos > 0 && nbrs[pos-1].d > d {
			pos--
		}
		nbrs = append(nbrs, neighbor{})
		copy(nbrs[pos+1:], nbrs[pos:])
		nbrs[pos] = neighbor{d: d, index: i}
	}
	return nbrs
}

// Neighbors returns the training indices of the k records nearest to each row of X.
func (knn *KNeighborsClassifier) Neighbors(X mat.Matrix) ([][]int, error) {
	if err := knn.state.RequireFitted("KNeighborsClassifier", "Neighbors"); err != nil {
		return nil, err
	}
	if err := knn.state.CheckFeatures("KNeighborsClassifier.Neighbors", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	out := make([][]int, r)
	q := make([]float64, c)
	buf := make([]neighbor, 0, knn.k)
	for i := 0; i < r; i++ {
		mat.Row(q, i, X)
		nbrs := knn.nearest(q, buf)
		out[i] = make([]int, len(nbrs))
		for j, nb := range nbrs {
			out[i][j] = nb.index
		}
	}
	return out, nil
}

// PredictProba returns, per row, the fraction of the k neighbours in each class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer mlerrors.Recover(&err, "KNeighborsClassifier.PredictProba")
	if err := knn.state.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := knn.state.CheckFeatures("KNeighborsClassifier.PredictProba", X); err != nil {
		return nil, err
	}

	startTime := time.Now()
	r, c := X.Dims()
	nClasses := len(knn.classes)
	counts := make([]int, r*nClasses)
	Xd := mat.DenseCopyOf(X)

	parallel.ParallelizeWithThreshold(r, sequentialRows, knn.workers, func(start, end int) {
		q := make([]float64, c)
		buf := make([]neighbor, 0, knn.k)
		for i := start; i < end; i++ {
			copy(q, Xd.RawRowView(i))
			for _, nb := range knn.nearest(q, buf) {
				counts[i*nClasses+knn.y[nb.index]]++
			}
		}
	})

	out := make([]float64, len(counts))
	for i, n := range counts {
		out[i] = float64(n) / float64(knn.k)
	}

	knn.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredictProb,
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, r,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return mat.NewDense(r, nClasses, out), nil
}

// Predict returns the majority class among the neighbours. Ties go to the lower class.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := knn.PredictProba(X)
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
		out.Set(i, 0, float64(knn.classes[best]))
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (knn *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), knn.classes...)
}

// K returns the neighbour count.
func (knn *KNeighborsClassifier) K() int {
	return knn.k
}

// String implements fmt.Stringer.
func (knn *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(k=%d)", knn.k)
}

// euclidSquared avoids the square root; it preserves the neighbour order.
func euclidSquared(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
