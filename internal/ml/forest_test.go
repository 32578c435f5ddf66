package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forestData() (x [][]float64, y []int) {
	// Label is 1 when both coordinates are high.
	grid := []float64{0, 0.25, 0.5, 0.75, 1}
	for _, a := range grid {
		for _, b := range grid {
			x = append(x, []float64{a, b})
			if a >= 0.5 && b >= 0.5 {
				y = append(y, 1)
			} else {
				y = append(y, 0)
			}
		}
	}
	return x, y
}

func TestForestLearnsInteraction(t *testing.T) {
	x, y := forestData()

	rf := &RandomForest{NEstimators: 50, MaxDepth: 6, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 42}
	require.NoError(t, rf.Fit(x, y))

	assert.Greater(t, rf.PredictProba([]float64{0.9, 0.9}), 0.5)
	assert.Less(t, rf.PredictProba([]float64{0.1, 0.1}), 0.5)
	assert.Less(t, rf.PredictProba([]float64{0.9, 0.1}), 0.5)
}

func TestForestSeedReproducible(t *testing.T) {
	x, y := forestData()

	a := &RandomForest{NEstimators: 20, MaxDepth: 4, Seed: 7}
	b := &RandomForest{NEstimators: 20, MaxDepth: 4, Seed: 7}
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))

	probe := []float64{0.6, 0.4}
	assert.Equal(t, a.PredictProba(probe), b.PredictProba(probe))
	assert.Equal(t, a.Trees, b.Trees)
}

func TestForestProbabilityRange(t *testing.T) {
	x, y := forestData()
	rf := &RandomForest{NEstimators: 10, Seed: 1, ClassWeight: "balanced"}
	require.NoError(t, rf.Fit(x, y))

	for _, probe := range x {
		p := rf.PredictProba(probe)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestForestMinLeafProducesShallowTrees(t *testing.T) {
	x, y := forestData()
	rf := &RandomForest{NEstimators: 5, MinSamplesLeaf: 10, Seed: 3}
	require.NoError(t, rf.Fit(x, y))

	for _, tree := range rf.Trees {
		assert.NotEmpty(t, tree.Nodes)
	}
}

func TestForestRejectsBadConfig(t *testing.T) {
	x, y := forestData()
	assert.Error(t, (&RandomForest{ClassWeight: "bogus"}).Fit(x, y))
	assert.Error(t, (&RandomForest{}).Fit(nil, nil))
	assert.Error(t, (&RandomForest{}).Fit([][]float64{{1}}, []int{1}))
}
