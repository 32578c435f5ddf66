package ml

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
)

// RandomForest is a bagged ensemble of CART trees with per-split feature
// subsampling (sqrt of the vector width). The configured seed plus the tree
// index drives every bootstrap and feature draw, so a fit is reproducible.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int // 0 = unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	ClassWeight     string // "", "balanced", "balanced_subsample"
	Seed            int64

	Trees []Tree
}

// Tree is a flattened decision tree. Node 0 is the root.
type Tree struct {
	Nodes []TreeNode
}

// TreeNode is either an internal split (Feature/Threshold/Left/Right) or a
// leaf carrying the weighted positive-class fraction.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Leaf      bool
	Prob      float64
}

// Fit trains the forest on preprocessed vectors and binary labels.
func (rf *RandomForest) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return eris.New("forest: empty or mismatched training data")
	}
	switch rf.ClassWeight {
	case "", "balanced", "balanced_subsample":
	default:
		return eris.Errorf("forest: unsupported class weight %q", rf.ClassWeight)
	}

	nTrees := rf.NEstimators
	if nTrees <= 0 {
		nTrees = 100
	}
	minSplit := rf.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	minLeaf := rf.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	// Balanced weights from the full training labels; balanced_subsample
	// recomputes per bootstrap draw.
	w0, w1, err := classWeights(y, rf.ClassWeight == "balanced")
	if err != nil {
		return eris.Wrap(err, "forest: fit")
	}

	n := len(x)
	d := len(x[0])
	mtry := int(math.Sqrt(float64(d)))
	if mtry < 1 {
		mtry = 1
	}

	rf.Trees = make([]Tree, nTrees)
	for b := 0; b < nTrees; b++ {
		rng := rand.New(rand.NewSource(rf.Seed + int64(b)))

		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}

		bw0, bw1 := w0, w1
		if rf.ClassWeight == "balanced_subsample" {
			sub := make([]int, n)
			for i, ix := range idx {
				sub[i] = y[ix]
			}
			if bw0, bw1, err = classWeights(sub, true); err != nil {
				// Degenerate bootstrap draw: fall back to unweighted.
				bw0, bw1 = 1, 1
			}
		}

		builder := &treeBuilder{
			x: x, y: y,
			w0: bw0, w1: bw1,
			maxDepth: rf.MaxDepth,
			minSplit: minSplit,
			minLeaf:  minLeaf,
			mtry:     mtry,
			rng:      rng,
		}
		builder.grow(idx, 0)
		rf.Trees[b] = Tree{Nodes: builder.nodes}
	}

	return nil
}

// PredictProba returns the mean leaf probability across all trees.
func (rf *RandomForest) PredictProba(x []float64) float64 {
	if len(rf.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range rf.Trees {
		sum += rf.Trees[i].predict(x)
	}
	return sum / float64(len(rf.Trees))
}

func (t *Tree) predict(x []float64) float64 {
	node := 0
	for !t.Nodes[node].Leaf {
		if x[t.Nodes[node].Feature] <= t.Nodes[node].Threshold {
			node = t.Nodes[node].Left
		} else {
			node = t.Nodes[node].Right
		}
	}
	return t.Nodes[node].Prob
}

type treeBuilder struct {
	x        [][]float64
	y        []int
	w0, w1   float64
	maxDepth int
	minSplit int
	minLeaf  int
	mtry     int
	rng      *rand.Rand

	nodes []TreeNode
}

// grow appends the subtree for idx and returns its root node index.
func (tb *treeBuilder) grow(idx []int, depth int) int {
	node := len(tb.nodes)
	tb.nodes = append(tb.nodes, TreeNode{})

	pos, neg := tb.weightedCounts(idx)
	prob := 0.5
	if pos+neg > 0 {
		prob = pos / (pos + neg)
	}

	if tb.isLeaf(idx, pos, neg, depth) {
		tb.nodes[node] = TreeNode{Leaf: true, Prob: prob}
		return node
	}

	bestFeature, bestThreshold, ok := tb.bestSplit(idx)
	if !ok {
		tb.nodes[node] = TreeNode{Leaf: true, Prob: prob}
		return node
	}

	var left, right []int
	for _, i := range idx {
		if tb.x[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < tb.minLeaf || len(right) < tb.minLeaf {
		tb.nodes[node] = TreeNode{Leaf: true, Prob: prob}
		return node
	}

	leftIdx := tb.grow(left, depth+1)
	rightIdx := tb.grow(right, depth+1)
	tb.nodes[node] = TreeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      leftIdx,
		Right:     rightIdx,
	}
	return node
}

func (tb *treeBuilder) isLeaf(idx []int, pos, neg float64, depth int) bool {
	if len(idx) < tb.minSplit {
		return true
	}
	if tb.maxDepth > 0 && depth >= tb.maxDepth {
		return true
	}
	return pos == 0 || neg == 0
}

func (tb *treeBuilder) weightedCounts(idx []int) (pos, neg float64) {
	for _, i := range idx {
		if tb.y[i] == 1 {
			pos += tb.w1
		} else {
			neg += tb.w0
		}
	}
	return pos, neg
}

// bestSplit evaluates midpoints between consecutive distinct values on a
// random feature subset and returns the split with the lowest weighted Gini.
func (tb *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	d := len(tb.x[0])
	features := tb.rng.Perm(d)[:tb.mtry]

	bestGini := math.Inf(1)
	for _, f := range features {
		vals := make([]float64, len(idx))
		for i, ix := range idx {
			vals[i] = tb.x[ix][f]
		}
		sort.Float64s(vals)

		for i := 1; i < len(vals); i++ {
			if vals[i] == vals[i-1] {
				continue
			}
			thr := (vals[i] + vals[i-1]) / 2
			gini, valid := tb.splitGini(idx, f, thr)
			if valid && gini < bestGini {
				bestGini = gini
				feature, threshold, ok = f, thr, true
			}
		}
	}
	return feature, threshold, ok
}

func (tb *treeBuilder) splitGini(idx []int, f int, thr float64) (float64, bool) {
	var lp, ln, rp, rn float64
	var lCount, rCount int
	for _, i := range idx {
		if tb.x[i][f] <= thr {
			lCount++
			if tb.y[i] == 1 {
				lp += tb.w1
			} else {
				ln += tb.w0
			}
		} else {
			rCount++
			if tb.y[i] == 1 {
				rp += tb.w1
			} else {
				rn += tb.w0
			}
		}
	}
	if lCount < tb.minLeaf || rCount < tb.minLeaf {
		return 0, false
	}

	total := lp + ln + rp + rn
	gini := (lp+ln)/total*giniImpurity(lp, ln) + (rp+rn)/total*giniImpurity(rp, rn)
	return gini, true
}

func giniImpurity(pos, neg float64) float64 {
	total := pos + neg
	if total == 0 {
		return 0
	}
	p := pos / total
	return 2 * p * (1 - p)
}
