package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableData returns points where x[0] > 0 implies label 1.
func separableData() (x [][]float64, y []int) {
	for i := 0; i < 20; i++ {
		v := float64(i%5+1) / 5
		x = append(x, []float64{v, 1})
		y = append(y, 1)
		x = append(x, []float64{-v, 1})
		y = append(y, 0)
	}
	return x, y
}

func TestLogitLearnsSeparableData(t *testing.T) {
	x, y := separableData()

	lr := &LogisticRegression{C: 1.0, Penalty: "l2", MaxIter: 2500}
	require.NoError(t, lr.Fit(x, y))

	assert.Greater(t, lr.PredictProba([]float64{1, 1}), 0.5)
	assert.Less(t, lr.PredictProba([]float64{-1, 1}), 0.5)
}

func TestLogitL1ShrinksNoiseFeature(t *testing.T) {
	x, y := separableData()
	// Append a constant noise feature that carries no signal.
	for i := range x {
		x[i] = append(x[i], 0.001)
	}

	lr := &LogisticRegression{C: 0.1, Penalty: "l1", MaxIter: 2500}
	require.NoError(t, lr.Fit(x, y))
	assert.InDelta(t, 0, lr.Weights[2], 1e-3)
}

func TestLogitDeterministic(t *testing.T) {
	x, y := separableData()

	a := &LogisticRegression{C: 2.0, Penalty: "l2", MaxIter: 200}
	b := &LogisticRegression{C: 2.0, Penalty: "l2", MaxIter: 200}
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))

	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
}

func TestLogitRejectsBadConfig(t *testing.T) {
	x, y := separableData()

	assert.Error(t, (&LogisticRegression{C: 1, Penalty: "elasticnet"}).Fit(x, y))
	assert.Error(t, (&LogisticRegression{C: 0, Penalty: "l2"}).Fit(x, y))
	assert.Error(t, (&LogisticRegression{C: 1, Penalty: "l2"}).Fit(nil, nil))
	assert.Error(t, (&LogisticRegression{C: 1, Penalty: "l2"}).Fit([][]float64{{1}, {2}}, []int{1, 1}))
}

func TestLogitBalancedWeights(t *testing.T) {
	// Imbalanced data: 2 positives, 18 negatives, all separable on x[0].
	var x [][]float64
	var y []int
	for i := 0; i < 18; i++ {
		x = append(x, []float64{-1 - float64(i%3)})
		y = append(y, 0)
	}
	x = append(x, []float64{2}, []float64{3})
	y = append(y, 1, 1)

	lr := &LogisticRegression{C: 1.0, Penalty: "l2", Balanced: true, MaxIter: 2500}
	require.NoError(t, lr.Fit(x, y))
	assert.Greater(t, lr.PredictProba([]float64{2.5}), 0.5)
}
