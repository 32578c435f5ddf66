package training

import (
	"math"
	"math/rand"
)

// Split holds the three stratified partitions of the dataset.
type Split struct {
	Train []Example
	Valid []Example
	Test  []Example
}

// NewSplit partitions examples 70/15/15, stratified on the label so class
// balance is preserved across partitions. The seed makes the split
// reproducible end to end.
func NewSplit(examples []Example, seed int64) Split {
	train, temp := stratifiedTwoWay(examples, 0.30, rand.New(rand.NewSource(seed)))
	valid, test := stratifiedTwoWay(temp, 0.50, rand.New(rand.NewSource(seed)))
	return Split{Train: train, Valid: valid, Test: test}
}

// stratifiedTwoWay shuffles each class independently and moves secondFrac of
// every class into the second partition.
func stratifiedTwoWay(examples []Example, secondFrac float64, rng *rand.Rand) (first, second []Example) {
	byClass := map[int][]int{}
	for i, ex := range examples {
		byClass[ex.Label] = append(byClass[ex.Label], i)
	}

	for _, label := range []int{0, 1} {
		idx := byClass[label]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nSecond := int(math.Round(secondFrac * float64(len(idx))))
		// Keep at least one example per class on each side when possible.
		if nSecond == len(idx) && len(idx) > 1 {
			nSecond--
		}
		if nSecond == 0 && len(idx) > 1 && secondFrac > 0 {
			nSecond = 1
		}

		for i, ix := range idx {
			if i < nSecond {
				second = append(second, examples[ix])
			} else {
				first = append(first, examples[ix])
			}
		}
	}

	return first, second
}

// AdaptiveFolds picks the cross-validation fold count: the minority class
// size, floored at 2 and capped at 5, so small datasets still stratify.
func AdaptiveFolds(examples []Example) int {
	var pos, neg int
	for _, ex := range examples {
		if ex.Label == 1 {
			pos++
		} else {
			neg++
		}
	}
	minority := pos
	if neg < minority {
		minority = neg
	}

	k := minority
	if k > 5 {
		k = 5
	}
	if k < 2 {
		k = 2
	}
	return k
}

// StratifiedKFold deals each class round-robin into k shuffled folds and
// returns the held-out index set per fold.
func StratifiedKFold(examples []Example, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)

	for _, label := range []int{0, 1} {
		var idx []int
		for i, ex := range examples {
			if ex.Label == label {
				idx = append(idx, i)
			}
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for i, ix := range idx {
			folds[i%k] = append(folds[i%k], ix)
		}
	}

	return folds
}
