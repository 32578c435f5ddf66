package model

// Qualification tiers, ordered. StatusSent is assigned only by the external
// CRM handoff action; the scoring engines never produce it.
type Status string

const (
	StatusCurious   Status = "curious"
	StatusWarming   Status = "warming"
	StatusQualified Status = "qualified"
	StatusSent      Status = "sent"
)

// Engines reported in score diagnostics.
const (
	EngineML    = "ml"
	EngineRules = "rules"
)

// Stable model identities used by artifacts, diagnostics, and the health surface.
const (
	ModelChampion = "best_model"
	ModelRunnerUp = "runner_up_model"
	ModelIDLogit  = "logit_fine"
	ModelIDForest = "rf_fine"
)

// StatusForScore maps a 0-100 score to its qualification tier. Shared by every
// scoring engine so tier boundaries cannot drift between paths.
func StatusForScore(score int) Status {
	switch {
	case score >= 70:
		return StatusQualified
	case score >= 40:
		return StatusWarming
	default:
		return StatusCurious
	}
}

// Reason is one human-readable explanation entry with a signed point impact.
type Reason struct {
	Factor string `json:"factor"`
	Impact int    `json:"impact"`
	Detail string `json:"detail,omitempty"`
}

// Diagnostics records which engine produced a result and, for ML, which model
// and its raw predicted probability.
type Diagnostics struct {
	Engine      string  `json:"engine"`
	ModelName   string  `json:"model_name,omitempty"`
	Probability float64 `json:"probability_qualified,omitempty"`
}

// ScoreResult is the output of one scoring pass.
type ScoreResult struct {
	Score   int         `json:"score"`
	Status  Status      `json:"status"`
	Reasons []Reason    `json:"reasons"`
	Meta    Diagnostics `json:"meta"`
}
