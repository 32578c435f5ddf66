package ml

import (
	"math"

	"github.com/rotisserie/eris"
)

// LogisticRegression is a binary logistic classifier with l1 or l2
// regularization, trained by full-batch proximal gradient descent. Training is
// deterministic: weights start at zero and the step size is derived from the
// data, so no random state is involved.
type LogisticRegression struct {
	C        float64
	Penalty  string // "l1" or "l2"
	Balanced bool
	MaxIter  int
	Tol      float64

	Weights []float64
	Bias    float64
}

// Fit trains the classifier on preprocessed vectors and binary labels.
func (lr *LogisticRegression) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return eris.New("logit: empty or mismatched training data")
	}
	if lr.Penalty != "l1" && lr.Penalty != "l2" {
		return eris.Errorf("logit: unsupported penalty %q", lr.Penalty)
	}
	if lr.C <= 0 {
		return eris.Errorf("logit: C must be positive, got %g", lr.C)
	}

	w0, w1, err := classWeights(y, lr.Balanced)
	if err != nil {
		return eris.Wrap(err, "logit: fit")
	}

	n := len(x)
	d := len(x[0])
	lr.Weights = make([]float64, d)
	lr.Bias = 0

	maxIter := lr.MaxIter
	if maxIter <= 0 {
		maxIter = 500
	}
	tol := lr.Tol
	if tol <= 0 {
		tol = 1e-6
	}

	// Per-sample penalty strength, matching the sklearn C convention.
	lambda := 1.0 / (lr.C * float64(n))

	// Step size from a Lipschitz bound on the logistic loss gradient.
	var maxNormSq float64
	for _, xi := range x {
		var s float64
		for _, v := range xi {
			s += v * v
		}
		if s > maxNormSq {
			maxNormSq = s
		}
	}
	step := 1.0 / (0.25*maxNormSq + lambda + 1e-12)

	grad := make([]float64, d)
	for iter := 0; iter < maxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64

		for i, xi := range x {
			p := sigmoid(dot(lr.Weights, xi) + lr.Bias)
			sw := w0
			if y[i] == 1 {
				sw = w1
			}
			residual := sw * (p - float64(y[i])) / float64(n)
			for j, v := range xi {
				grad[j] += residual * v
			}
			gradBias += residual
		}

		var maxDelta float64
		for j := range lr.Weights {
			g := grad[j]
			if lr.Penalty == "l2" {
				g += lambda * lr.Weights[j]
			}
			next := lr.Weights[j] - step*g
			if lr.Penalty == "l1" {
				next = softThreshold(next, step*lambda)
			}
			if delta := math.Abs(next - lr.Weights[j]); delta > maxDelta {
				maxDelta = delta
			}
			lr.Weights[j] = next
		}
		lr.Bias -= step * gradBias
		if step*math.Abs(gradBias) > maxDelta {
			maxDelta = step * math.Abs(gradBias)
		}

		if maxDelta < tol {
			break
		}
	}

	return nil
}

// PredictProba returns P(qualified) for one preprocessed vector.
func (lr *LogisticRegression) PredictProba(x []float64) float64 {
	return sigmoid(dot(lr.Weights, x) + lr.Bias)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}
