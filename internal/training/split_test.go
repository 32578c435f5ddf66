package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funil-digital/leadscore/internal/feature"
)

func syntheticExamples(pos, neg int) []Example {
	var out []Example
	for i := 0; i < pos; i++ {
		out = append(out, Example{Row: feature.Row{EventCount: float64(i), Segment: "CAVALOS"}, Label: 1})
	}
	for i := 0; i < neg; i++ {
		out = append(out, Example{Row: feature.Row{EventCount: float64(100 + i), Segment: "EVENTOS"}, Label: 0})
	}
	return out
}

func countLabels(examples []Example) (pos, neg int) {
	for _, ex := range examples {
		if ex.Label == 1 {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

func TestNewSplitProportionsAndStratification(t *testing.T) {
	examples := syntheticExamples(40, 60)
	split := NewSplit(examples, 42)

	assert.Len(t, split.Train, 70)
	assert.Len(t, split.Valid, 15)
	assert.Len(t, split.Test, 15)

	pos, neg := countLabels(split.Train)
	assert.Equal(t, 28, pos)
	assert.Equal(t, 42, neg)

	pos, neg = countLabels(split.Valid)
	assert.Equal(t, 6, pos)
	assert.Equal(t, 9, neg)
}

func TestNewSplitReproducible(t *testing.T) {
	examples := syntheticExamples(20, 30)
	first := NewSplit(examples, 7)
	second := NewSplit(examples, 7)
	assert.Equal(t, first, second)
}

func TestNewSplitTinyDatasetKeepsBothClasses(t *testing.T) {
	examples := syntheticExamples(3, 3)
	split := NewSplit(examples, 1)

	pos, neg := countLabels(split.Train)
	assert.Positive(t, pos)
	assert.Positive(t, neg)
}

func TestAdaptiveFolds(t *testing.T) {
	tests := []struct {
		pos, neg int
		want     int
	}{
		{50, 50, 5},
		{3, 50, 3},
		{1, 50, 2},
		{8, 4, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AdaptiveFolds(syntheticExamples(tt.pos, tt.neg)), "pos=%d neg=%d", tt.pos, tt.neg)
	}
}

func TestStratifiedKFold(t *testing.T) {
	examples := syntheticExamples(10, 15)
	folds := StratifiedKFold(examples, 5, 42)

	require.Len(t, folds, 5)

	seen := map[int]int{}
	for _, fold := range folds {
		assert.Len(t, fold, 5)

		pos := 0
		for _, ix := range fold {
			seen[ix]++
			if examples[ix].Label == 1 {
				pos++
			}
		}
		assert.Equal(t, 2, pos, "each fold holds two positives")
	}

	// Every index appears exactly once across folds.
	assert.Len(t, seen, len(examples))
	for ix, n := range seen {
		assert.Equal(t, 1, n, "index %d", ix)
	}
}
