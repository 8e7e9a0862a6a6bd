// Package metrics scores positive-class probabilities against binary labels.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

// Summary collects the scores reported for one model.
type Summary struct {
	Accuracy float64 `json:"accuracy"`
	AUC      float64 `json:"auc"`
	LogLoss  float64 `json:"log_loss"`
	Brier    float64 `json:"brier"`
}

// Score computes every Summary field. Accuracy thresholds yProb at 0.5.
func Score(yTrue, yProb *mat.VecDense) (Summary, error) {
	var s Summary
	var err error
	if s.Accuracy, err = AccuracyAt(yTrue, yProb, 0.5); err != nil {
		return Summary{}, err
	}
	if s.AUC, err = AUC(yTrue, yProb); err != nil {
		return Summary{}, err
	}
	if s.LogLoss, err = BinaryLogLoss(yTrue, yProb); err != nil {
		return Summary{}, err
	}
	if s.Brier, err = Brier(yTrue, yProb); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// ScoreSlice is Score for integer labels and a probability slice.
func ScoreSlice(labels []int, probs []float64) (Summary, error) {
	if len(labels) != len(probs) {
		return Summary{}, mlerrors.NewDimensionError("ScoreSlice", len(labels), len(probs), 0)
	}
	if len(labels) == 0 {
		return Summary{}, mlerrors.NewValueError("ScoreSlice", "input vectors cannot be empty")
	}
	yTrue := mat.NewVecDense(len(labels), nil)
	for i, l := range labels {
		yTrue.SetVec(i, float64(l))
	}
	yProb := mat.NewVecDense(len(probs), append([]float64(nil), probs...))
	return Score(yTrue, yProb)
}

func checkBinary(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, mlerrors.NewValueError(op, "input vectors cannot be nil")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, mlerrors.NewValueError(op, "input vectors cannot be empty")
	}
	if n != yPred.Len() {
		return 0, mlerrors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	for i := 0; i < n; i++ {
		if v := yTrue.AtVec(i); v != 0.0 && v != 1.0 {
			return 0, mlerrors.NewValueError(op,
				fmt.Sprintf("yTrue must contain only binary values (0 or 1), found %v at index %d", v, i))
		}
	}
	return n, nil
}

// AUC calculates the area under the ROC curve with the trapezoid rule. Tied scores
// form a single ROC step. When yTrue holds only one class the AUC is undefined and
// 0.5 is returned.
//
//	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
//	yPred := mat.NewVecDense(4, []float64{0.1, 0.4, 0.35, 0.8})
//	auc, _ := metrics.AUC(yTrue, yPred) // 0.75
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkBinary("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	type pair struct {
		score float64
		label float64
	}
	pairs := make([]pair, n)
	totalPos, totalNeg := 0.0, 0.0
	for i := 0; i < n; i++ {
		pairs[i] = pair{score: yPred.AtVec(i), label: yTrue.AtVec(i)}
		if pairs[i].label == 1.0 {
			totalPos++
		} else {
			totalNeg++
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		return 0.5, nil
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	tprs := []float64{0}
	fprs := []float64{0}
	tp, fp := 0.0, 0.0
	prevScore := math.Inf(1)
	for _, p := range pairs {
		if p.score != prevScore {
			tprs = append(tprs, tp/totalPos)
			fprs = append(fprs, fp/totalNeg)
			prevScore = p.score
		}
		if p.label == 1.0 {
			tp++
		} else {
			fp++
		}
	}
	tprs = append(tprs, 1)
	fprs = append(fprs, 1)

	auc := 0.0
	for i := 1; i < len(fprs); i++ {
		auc += (fprs[i] - fprs[i-1]) * (tprs[i] + tprs[i-1]) / 2
	}
	return auc, nil
}

// BinaryLogLoss calculates the mean binary cross-entropy. Probabilities are clipped
// to [1e-15, 1-1e-15].
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkBinary("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	const epsilon = 1e-15
	loss := 0.0
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), epsilon), 1-epsilon)
		if yTrue.AtVec(i) == 1.0 {
			loss -= math.Log(p)
		} else {
			loss -= math.Log(1 - p)
		}
	}
	return loss / float64(n), nil
}

// Brier calculates the mean squared difference between probability and label.
func Brier(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkBinary("Brier", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var diff mat.VecDense
	diff.SubVec(yPred, yTrue)
	return mat.Dot(&diff, &diff) / float64(n), nil
}

// ClassificationError calculates the fraction of labels that differ.
//
//	yTrue := mat.NewVecDense(5, []float64{0, 1, 2, 1, 0})
//	yPred := mat.NewVecDense(5, []float64{0, 1, 1, 1, 0})
//	rate, _ := metrics.ClassificationError(yTrue, yPred) // 0.2
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, mlerrors.NewValueError("ClassificationError", "input vectors cannot be nil")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, mlerrors.NewValueError("ClassificationError", "input vectors cannot be empty")
	}
	if n != yPred.Len() {
		return 0, mlerrors.NewDimensionError("ClassificationError", n, yPred.Len(), 0)
	}

	wrong := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) != yPred.AtVec(i) {
			wrong++
		}
	}
	return float64(wrong) / float64(n), nil
}

// Accuracy calculates the fraction of labels that match.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	errorRate, err := ClassificationError(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1.0 - errorRate, nil
}

// AccuracyAt labels a record positive when its probability is at least threshold and
// returns the resulting accuracy.
func AccuracyAt(yTrue, yProb *mat.VecDense, threshold float64) (float64, error) {
	n, err := checkBinary("AccuracyAt", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	labels := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if yProb.AtVec(i) >= threshold {
			labels.SetVec(i, 1)
		}
	}
	return Accuracy(yTrue, labels)
}
