package training

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/funil-digital/leadscore/internal/feature"
	"github.com/funil-digital/leadscore/internal/ml"
	"github.com/funil-digital/leadscore/internal/model"
)

// Default artifact file names under the output directory.
const (
	BestModelFile = "lead_scoring_best_model.gob"
	RunnerUpFile  = "lead_scoring_runner_up_model.gob"
	ReportFile    = "model_selection_report.json"
	DefaultSeed   = 42
)

// Config drives one training run. Artifact paths default to OutputDir plus the
// standard file names when unset.
type Config struct {
	DatasetPath   string
	OutputDir     string
	BestModelPath string
	RunnerUpPath  string
	ReportPath    string
	Seed          int64
	Tiebreak      Thresholds
}

// Result summarizes a completed run.
type Result struct {
	Report        Report
	BestModelPath string
	RunnerUpPath  string
	ReportPath    string
}

// Run executes the full pipeline: load and validate the dataset, split it,
// run both families through coarse and fine grid search, evaluate the
// finalists, elect a winner, and persist both artifacts plus the audit report.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = withDefaults(cfg)

	examples, target, err := LoadDataset(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	zap.L().Info("training: dataset loaded",
		zap.Int("rows", len(examples)),
		zap.String("target_column", target),
	)

	split := NewSplit(examples, cfg.Seed)
	k := AdaptiveFolds(split.Train)
	folds := StratifiedKFold(split.Train, k, cfg.Seed)
	zap.L().Info("training: split ready",
		zap.Int("train", len(split.Train)),
		zap.Int("valid", len(split.Valid)),
		zap.Int("test", len(split.Test)),
		zap.Int("cv_folds", k),
	)

	// Round 1: coarse search per family.
	coarseLogit, _, err := SearchLogit(ctx, split.Train, folds, CoarseLogitGrid())
	if err != nil {
		return nil, err
	}
	coarseForest, _, err := SearchForest(ctx, split.Train, folds, CoarseForestGrid(), cfg.Seed)
	if err != nil {
		return nil, err
	}

	// Round 2: fine search in the neighborhood of the round-1 winners.
	fineLogit, logitAUC, err := SearchLogit(ctx, split.Train, folds, FineLogitGrid(coarseLogit))
	if err != nil {
		return nil, err
	}
	fineForest, forestAUC, err := SearchForest(ctx, split.Train, folds, FineForestGrid(coarseForest), cfg.Seed)
	if err != nil {
		return nil, err
	}
	zap.L().Info("training: fine tuning complete",
		zap.Float64("logit_cv_roc_auc", logitAUC),
		zap.Float64("forest_cv_roc_auc", forestAUC),
	)

	// Refit the finalists on the full training split.
	logitArt, err := fitLogitArtifact(split.Train, fineLogit)
	if err != nil {
		return nil, err
	}
	forestArt, err := fitForestArtifact(split.Train, fineForest, cfg.Seed)
	if err != nil {
		return nil, err
	}

	logitMetrics, err := Evaluate(model.ModelIDLogit, logitArt, split.Valid, split.Test)
	if err != nil {
		return nil, err
	}
	forestMetrics, err := Evaluate(model.ModelIDForest, forestArt, split.Valid, split.Test)
	if err != nil {
		return nil, err
	}

	results := []Metrics{logitMetrics, forestMetrics}
	winner, runnerUp, reasons := SelectWinner(results, cfg.Tiebreak)

	artifacts := map[string]*ml.Artifact{
		model.ModelIDLogit:  logitArt,
		model.ModelIDForest: forestArt,
	}
	if err := ml.Save(artifacts[winner], cfg.BestModelPath); err != nil {
		return nil, err
	}
	if err := ml.Save(artifacts[runnerUp], cfg.RunnerUpPath); err != nil {
		return nil, err
	}

	report := Report{
		Winner:           winner,
		RunnerUp:         runnerUp,
		SelectionReasons: reasons,
		Metrics:          results,
		BestParams:       BestParams{Logit: fineLogit, Forest: fineForest},
		TargetColumn:     target,
		FeatureColumns:   logitArt.FeatureColumns,
		RandomSeed:       cfg.Seed,
	}
	if err := WriteReport(&report, cfg.ReportPath); err != nil {
		return nil, err
	}

	zap.L().Info("training: run complete",
		zap.String("winner", winner),
		zap.String("runner_up", runnerUp),
		zap.Strings("selection_reasons", reasons),
	)

	return &Result{
		Report:        report,
		BestModelPath: cfg.BestModelPath,
		RunnerUpPath:  cfg.RunnerUpPath,
		ReportPath:    cfg.ReportPath,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "data/ml/artifacts"
	}
	if cfg.BestModelPath == "" {
		cfg.BestModelPath = filepath.Join(cfg.OutputDir, BestModelFile)
	}
	if cfg.RunnerUpPath == "" {
		cfg.RunnerUpPath = filepath.Join(cfg.OutputDir, RunnerUpFile)
	}
	if cfg.ReportPath == "" {
		cfg.ReportPath = filepath.Join(cfg.OutputDir, ReportFile)
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	if cfg.Tiebreak == (Thresholds{}) {
		cfg.Tiebreak = DefaultThresholds()
	}
	return cfg
}

func fitLogitArtifact(train []Example, params LogitParams) (*ml.Artifact, error) {
	pre, x, y := prepare(train, true)
	clf := &ml.LogisticRegression{C: params.C, Penalty: params.Penalty, Balanced: params.Balanced}
	if err := clf.Fit(x, y); err != nil {
		return nil, eris.Wrap(err, "training: refit logit")
	}
	return ml.NewArtifact(model.ModelIDLogit, pre, clf, nil), nil
}

func fitForestArtifact(train []Example, params ForestParams, seed int64) (*ml.Artifact, error) {
	pre, x, y := prepare(train, false)
	clf := &ml.RandomForest{
		NEstimators:     params.NEstimators,
		MaxDepth:        params.MaxDepth,
		MinSamplesSplit: params.MinSamplesSplit,
		MinSamplesLeaf:  params.MinSamplesLeaf,
		ClassWeight:     params.ClassWeight,
		Seed:            seed,
	}
	if err := clf.Fit(x, y); err != nil {
		return nil, eris.Wrap(err, "training: refit forest")
	}
	return ml.NewArtifact(model.ModelIDForest, pre, nil, clf), nil
}

func prepare(train []Example, scale bool) (*ml.Preprocessor, [][]float64, []int) {
	rows := make([]feature.Row, len(train))
	y := make([]int, len(train))
	for i, ex := range train {
		rows[i] = ex.Row
		y[i] = ex.Label
	}
	pre := ml.FitPreprocessor(rows, scale)
	return pre, pre.TransformAll(rows), y
}
