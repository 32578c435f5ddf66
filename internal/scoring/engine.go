// Package scoring orchestrates the champion/challenger/rules inference
// cascade. The cascade has no failure mode that surfaces to the caller: every
// ML error is logged and advances to the next stage, and the rule engine
// terminates the chain unconditionally.
package scoring

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/funil-digital/leadscore/internal/feature"
	"github.com/funil-digital/leadscore/internal/model"
	"github.com/funil-digital/leadscore/internal/rules"
)

// Predictor is one trained scoring pipeline. A failed prediction is an error
// return, not a panic; the cascade treats it as "try the next stage".
type Predictor interface {
	PredictProba(row feature.Row) (float64, error)
}

// attempt pairs a stable model name with its predictor. The cascade is an
// ordered list of attempts tried front to back.
type attempt struct {
	name  string
	model Predictor
}

// Engine scores leads. It is immutable after construction and safe for
// concurrent use: artifacts are loaded once at startup and never mutated.
type Engine struct {
	attempts []attempt
	now      func() time.Time
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the clock used for recency computation. Tests freeze it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds the cascade from the loaded artifacts. Either predictor may
// be nil; with both nil every request is served by the rule engine.
func NewEngine(champion, challenger Predictor, opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	if champion != nil {
		e.attempts = append(e.attempts, attempt{name: model.ModelChampion, model: champion})
	}
	if challenger != nil {
		e.attempts = append(e.attempts, attempt{name: model.ModelRunnerUp, model: challenger})
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MLAvailable reports whether at least one ML stage is loaded.
func (e *Engine) MLAvailable() bool {
	return len(e.attempts) > 0
}

// Score runs the cascade for one lead. The feature row is built once and
// shared by every stage; the result always carries a usable score, status,
// reasons, and diagnostics naming the engine that produced it.
func (e *Engine) Score(lead model.Lead, events []model.Event) model.ScoreResult {
	row := feature.Extract(lead, events, e.now())

	for _, att := range e.attempts {
		proba, err := att.model.PredictProba(row)
		if err != nil {
			zap.L().Warn("scoring: model inference failed, trying next stage",
				zap.String("model", att.name),
				zap.Error(err),
			)
			continue
		}

		proba = clamp01(proba)
		score := int(math.Round(proba * 100))
		return model.ScoreResult{
			Score:   score,
			Status:  model.StatusForScore(score),
			Reasons: buildMLReasons(att.name, proba, row),
			Meta: model.Diagnostics{
				Engine:      model.EngineML,
				ModelName:   att.name,
				Probability: proba,
			},
		}
	}

	return rules.Score(lead, events)
}

func clamp01(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
