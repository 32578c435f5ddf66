package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name  string
		y     []int
		probs []float64
		want  float64
	}{
		{"perfect ranking", []int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, 1.0},
		{"inverted ranking", []int{0, 0, 1, 1}, []float64{0.9, 0.8, 0.2, 0.1}, 0.0},
		{"coin flip", []int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, rocAUC(tt.y, tt.probs), 1e-9)
		})
	}
}

func TestPRAUC(t *testing.T) {
	// Perfect ranking: precision is 1 at every positive hit.
	assert.InDelta(t, 1.0, prAUC([]int{0, 1, 1}, []float64{0.1, 0.8, 0.9}), 1e-9)

	// Single positive ranked second: AP = 1/2.
	assert.InDelta(t, 0.5, prAUC([]int{1, 0}, []float64{0.3, 0.7}), 1e-9)

	// No positives degrade to zero rather than dividing by zero.
	assert.Zero(t, prAUC([]int{0, 0}, []float64{0.2, 0.4}))
}

func TestBrier(t *testing.T) {
	assert.Zero(t, brier([]int{1, 0}, []float64{1, 0}))
	assert.InDelta(t, 0.25, brier([]int{1, 0}, []float64{0.5, 0.5}), 1e-9)
	assert.InDelta(t, 1.0, brier([]int{1, 0}, []float64{0, 1}), 1e-9)
}

func TestClassificationAt(t *testing.T) {
	y := []int{1, 1, 0, 0}
	probs := []float64{0.9, 0.4, 0.6, 0.1}

	f1, precision, recall := classificationAt(y, probs, 0.5)
	// Predictions: TP=1 (0.9), FN=1 (0.4), FP=1 (0.6), TN=1 (0.1).
	assert.InDelta(t, 0.5, precision, 1e-9)
	assert.InDelta(t, 0.5, recall, 1e-9)
	assert.InDelta(t, 0.5, f1, 1e-9)
}

func TestClassificationAtZeroDivision(t *testing.T) {
	f1, precision, recall := classificationAt([]int{0, 0}, []float64{0.1, 0.2}, 0.5)
	assert.Zero(t, f1)
	assert.Zero(t, precision)
	assert.Zero(t, recall)
}
