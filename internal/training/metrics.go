package training

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/funil-digital/leadscore/internal/ml"
)

// Metrics is the full evaluation record for one fine-tuned model, captured on
// both the validation and test splits. Validation metrics feed the tie-break;
// test metrics are audit-only.
type Metrics struct {
	Model string `json:"model"`

	ValROCAUC    float64 `json:"val_roc_auc"`
	ValPRAUC     float64 `json:"val_pr_auc"`
	ValBrier     float64 `json:"val_brier"`
	ValF1        float64 `json:"val_f1"`
	ValPrecision float64 `json:"val_precision"`
	ValRecall    float64 `json:"val_recall"`
	ValLatencyMS float64 `json:"val_latency_ms"`

	TestROCAUC    float64 `json:"test_roc_auc"`
	TestPRAUC     float64 `json:"test_pr_auc"`
	TestBrier     float64 `json:"test_brier"`
	TestF1        float64 `json:"test_f1"`
	TestPrecision float64 `json:"test_precision"`
	TestRecall    float64 `json:"test_recall"`
	TestLatencyMS float64 `json:"test_latency_ms"`
}

// Evaluate scores an artifact against the validation and test splits,
// including per-record inference latency, which the tie-break uses as its
// final criterion.
func Evaluate(name string, art *ml.Artifact, valid, test []Example) (Metrics, error) {
	valProbs, valLatency, err := predictAll(art, valid)
	if err != nil {
		return Metrics{}, eris.Wrapf(err, "training: evaluate %s on validation", name)
	}
	testProbs, testLatency, err := predictAll(art, test)
	if err != nil {
		return Metrics{}, eris.Wrapf(err, "training: evaluate %s on test", name)
	}

	valY := labels(valid)
	testY := labels(test)

	valF1, valPrec, valRec := classificationAt(valY, valProbs, 0.5)
	testF1, testPrec, testRec := classificationAt(testY, testProbs, 0.5)

	return Metrics{
		Model: name,

		ValROCAUC:    rocAUC(valY, valProbs),
		ValPRAUC:     prAUC(valY, valProbs),
		ValBrier:     brier(valY, valProbs),
		ValF1:        valF1,
		ValPrecision: valPrec,
		ValRecall:    valRec,
		ValLatencyMS: valLatency,

		TestROCAUC:    rocAUC(testY, testProbs),
		TestPRAUC:     prAUC(testY, testProbs),
		TestBrier:     brier(testY, testProbs),
		TestF1:        testF1,
		TestPrecision: testPrec,
		TestRecall:    testRec,
		TestLatencyMS: testLatency,
	}, nil
}

func predictAll(art *ml.Artifact, examples []Example) (probs []float64, latencyMS float64, err error) {
	probs = make([]float64, len(examples))
	start := time.Now()
	for i, ex := range examples {
		p, err := art.PredictProba(ex.Row)
		if err != nil {
			return nil, 0, err
		}
		probs[i] = p
	}
	elapsed := time.Since(start)

	n := len(examples)
	if n == 0 {
		n = 1
	}
	return probs, float64(elapsed.Microseconds()) / 1000 / float64(n), nil
}

func labels(examples []Example) []int {
	y := make([]int, len(examples))
	for i, ex := range examples {
		y[i] = ex.Label
	}
	return y
}

// rocAUC computes the area under the ROC curve via gonum's curve construction
// and trapezoidal integration.
func rocAUC(y []int, probs []float64) float64 {
	scores := append([]float64(nil), probs...)
	classes := make([]bool, len(y))
	for i, label := range y {
		classes[i] = label == 1
	}

	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// prAUC computes average precision: precision summed at each positive hit,
// walking the ranking from the highest score down.
func prAUC(y []int, probs []float64) float64 {
	type pair struct {
		p float64
		y int
	}
	pairs := make([]pair, len(y))
	var nPos int
	for i := range y {
		pairs[i] = pair{probs[i], y[i]}
		nPos += y[i]
	}
	if nPos == 0 {
		return 0
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].p > pairs[j].p })

	var sum float64
	var tp int
	for i, pr := range pairs {
		if pr.y == 1 {
			tp++
			sum += float64(tp) / float64(i+1)
		}
	}
	return sum / float64(nPos)
}

// brier is the mean squared error between predicted probability and outcome.
func brier(y []int, probs []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i := range y {
		d := probs[i] - float64(y[i])
		sum += d * d
	}
	return sum / float64(len(y))
}

// classificationAt computes F1, precision, and recall at a probability cutoff,
// reporting 0 instead of dividing by zero.
func classificationAt(y []int, probs []float64, cutoff float64) (f1, precision, recall float64) {
	var tp, fp, fn int
	for i := range y {
		predicted := probs[i] >= cutoff
		switch {
		case predicted && y[i] == 1:
			tp++
		case predicted && y[i] == 0:
			fp++
		case !predicted && y[i] == 1:
			fn++
		}
	}

	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return f1, precision, recall
}
