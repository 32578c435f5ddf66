package training

import (
	"context"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/funil-digital/leadscore/internal/feature"
	"github.com/funil-digital/leadscore/internal/ml"
)

// LogitParams are the tunable logistic-regression hyperparameters.
type LogitParams struct {
	C        float64 `json:"C"`
	Penalty  string  `json:"penalty"`
	Balanced bool    `json:"balanced"`
}

// ForestParams are the tunable random-forest hyperparameters. MaxDepth 0
// means unlimited.
type ForestParams struct {
	NEstimators     int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	ClassWeight     string `json:"class_weight"`
}

// fitPredictor is the common surface of both classifier families during
// cross-validation.
type fitPredictor interface {
	Fit(x [][]float64, y []int) error
	PredictProba(x []float64) float64
}

// CoarseLogitGrid is round 1 of the logistic-regression search.
func CoarseLogitGrid() []LogitParams {
	var grid []LogitParams
	for _, c := range []float64{0.1, 0.5, 1.0, 2.0, 5.0} {
		for _, penalty := range []string{"l1", "l2"} {
			for _, balanced := range []bool{false, true} {
				grid = append(grid, LogitParams{C: c, Penalty: penalty, Balanced: balanced})
			}
		}
	}
	return grid
}

// CoarseForestGrid is round 1 of the random-forest search.
func CoarseForestGrid() []ForestParams {
	var grid []ForestParams
	for _, n := range []int{200, 400, 700} {
		for _, depth := range []int{0, 8, 16} {
			for _, split := range []int{2, 5, 10} {
				for _, leaf := range []int{1, 2, 4} {
					for _, weight := range []string{"", "balanced", "balanced_subsample"} {
						grid = append(grid, ForestParams{
							NEstimators:     n,
							MaxDepth:        depth,
							MinSamplesSplit: split,
							MinSamplesLeaf:  leaf,
							ClassWeight:     weight,
						})
					}
				}
			}
		}
	}
	return grid
}

// FineLogitGrid builds the round-2 grid: C neighbors around the round-1
// winner plus the balanced class-weight variant.
func FineLogitGrid(best LogitParams) []LogitParams {
	seen := map[float64]bool{}
	var cs []float64
	for _, mul := range []float64{0.5, 0.75, 1.0, 1.25, 1.5} {
		c := best.C * mul
		if c < 1e-4 {
			c = 1e-4
		}
		if !seen[c] {
			seen[c] = true
			cs = append(cs, c)
		}
	}
	sort.Float64s(cs)

	balancedOpts := []bool{best.Balanced}
	if !best.Balanced {
		balancedOpts = append(balancedOpts, true)
	}

	var grid []LogitParams
	for _, c := range cs {
		for _, balanced := range balancedOpts {
			grid = append(grid, LogitParams{C: c, Penalty: best.Penalty, Balanced: balanced})
		}
	}
	return grid
}

// FineForestGrid builds the round-2 grid: immediate neighbors around each
// round-1 winning value plus the balanced_subsample variant.
func FineForestGrid(best ForestParams) []ForestParams {
	trees := uniqueInts(maxInt(100, best.NEstimators-150), best.NEstimators, best.NEstimators+150)

	depths := []int{best.MaxDepth}
	if best.MaxDepth > 0 {
		depths = uniqueInts(maxInt(3, best.MaxDepth-4), best.MaxDepth, best.MaxDepth+4)
	}

	splits := uniqueInts(maxInt(2, best.MinSamplesSplit-1), best.MinSamplesSplit, best.MinSamplesSplit+1)
	leaves := uniqueInts(maxInt(1, best.MinSamplesLeaf-1), best.MinSamplesLeaf, best.MinSamplesLeaf+1)

	weights := []string{best.ClassWeight}
	if best.ClassWeight != "balanced_subsample" {
		weights = append(weights, "balanced_subsample")
	}

	var grid []ForestParams
	for _, n := range trees {
		for _, depth := range depths {
			for _, split := range splits {
				for _, leaf := range leaves {
					for _, weight := range weights {
						grid = append(grid, ForestParams{
							NEstimators:     n,
							MaxDepth:        depth,
							MinSamplesSplit: split,
							MinSamplesLeaf:  leaf,
							ClassWeight:     weight,
						})
					}
				}
			}
		}
	}
	return grid
}

// SearchLogit cross-validates every candidate and returns the best parameters
// with their mean ROC-AUC.
func SearchLogit(ctx context.Context, train []Example, folds [][]int, grid []LogitParams) (LogitParams, float64, error) {
	aucs, err := searchGrid(ctx, train, folds, len(grid), func(i int) (bool, func() fitPredictor) {
		params := grid[i]
		return true, func() fitPredictor {
			return &ml.LogisticRegression{C: params.C, Penalty: params.Penalty, Balanced: params.Balanced}
		}
	})
	if err != nil {
		return LogitParams{}, 0, eris.Wrap(err, "training: logit grid search")
	}

	best := argmax(aucs)
	zap.L().Info("training: logit search complete",
		zap.Int("candidates", len(grid)),
		zap.Float64("best_cv_roc_auc", aucs[best]),
	)
	return grid[best], aucs[best], nil
}

// SearchForest cross-validates every candidate and returns the best parameters
// with their mean ROC-AUC. The seed keeps every candidate's bootstrap draws
// reproducible.
func SearchForest(ctx context.Context, train []Example, folds [][]int, grid []ForestParams, seed int64) (ForestParams, float64, error) {
	aucs, err := searchGrid(ctx, train, folds, len(grid), func(i int) (bool, func() fitPredictor) {
		params := grid[i]
		return false, func() fitPredictor {
			return &ml.RandomForest{
				NEstimators:     params.NEstimators,
				MaxDepth:        params.MaxDepth,
				MinSamplesSplit: params.MinSamplesSplit,
				MinSamplesLeaf:  params.MinSamplesLeaf,
				ClassWeight:     params.ClassWeight,
				Seed:            seed,
			}
		}
	})
	if err != nil {
		return ForestParams{}, 0, eris.Wrap(err, "training: forest grid search")
	}

	best := argmax(aucs)
	zap.L().Info("training: forest search complete",
		zap.Int("candidates", len(grid)),
		zap.Float64("best_cv_roc_auc", aucs[best]),
	)
	return grid[best], aucs[best], nil
}

// searchGrid evaluates candidates in parallel across available cores. Each
// candidate's score is its mean held-out ROC-AUC over the folds.
func searchGrid(ctx context.Context, train []Example, folds [][]int, n int, candidate func(int) (scale bool, build func() fitPredictor)) ([]float64, error) {
	aucs := make([]float64, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scale, build := candidate(i)
			auc, err := crossValAUC(train, folds, scale, build)
			if err != nil {
				return err
			}
			aucs[i] = auc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return aucs, nil
}

// crossValAUC fits the preprocessor and model on each fold's training portion
// and averages ROC-AUC on the held-out portion.
func crossValAUC(train []Example, folds [][]int, scale bool, build func() fitPredictor) (float64, error) {
	held := make([]bool, len(train))
	var total float64

	for _, holdout := range folds {
		for i := range held {
			held[i] = false
		}
		for _, ix := range holdout {
			held[ix] = true
		}

		var fitRows []feature.Row
		var fitY []int
		for i, ex := range train {
			if !held[i] {
				fitRows = append(fitRows, ex.Row)
				fitY = append(fitY, ex.Label)
			}
		}

		pre := ml.FitPreprocessor(fitRows, scale)
		clf := build()
		if err := clf.Fit(pre.TransformAll(fitRows), fitY); err != nil {
			return 0, err
		}

		probs := make([]float64, len(holdout))
		y := make([]int, len(holdout))
		for i, ix := range holdout {
			probs[i] = clf.PredictProba(pre.Transform(train[ix].Row))
			y[i] = train[ix].Label
		}
		total += rocAUC(y, probs)
	}

	return total / float64(len(folds)), nil
}

func argmax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}

func uniqueInts(vals ...int) []int {
	seen := map[int]bool{}
	var out []int
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
