package scoring

import (
	"fmt"
	"math"

	"github.com/funil-digital/leadscore/internal/feature"
	"github.com/funil-digital/leadscore/internal/model"
	"github.com/funil-digital/leadscore/internal/rules"
)

// maxReasons caps every explanation list, preserving insertion order.
const maxReasons = 5

// Illustrative impacts for ML-path secondary reasons. These are presentation
// heuristics reusing the rule engine's trigger thresholds; they are decoupled
// from the model's actual probability and do not sum to the score.
const (
	hookImpact     = 12
	ctaImpact      = 14
	browsingImpact = 8
	regionImpact   = 4
	budgetImpact   = 6
)

// buildMLReasons synthesizes the explanation for an ML-path result: a primary
// reason centered on the 50-point decision boundary, then up to four secondary
// signals.
func buildMLReasons(modelName string, proba float64, row feature.Row) []model.Reason {
	score := int(math.Round(proba * 100))

	reasons := []model.Reason{{
		Factor: "ML model",
		Impact: score - 50,
		Detail: fmt.Sprintf("%s: predicted qualification probability = %d%%", modelName, score),
	}}

	if row.HookCompletes > 0 {
		reasons = append(reasons, model.Reason{Factor: "Hook completed", Impact: hookImpact, Detail: "Strong intent signal"})
	}
	if row.CTAClicks > 0 {
		reasons = append(reasons, model.Reason{Factor: "CTA/WhatsApp", Impact: ctaImpact, Detail: "Lead showed active interest"})
	}
	if row.PageViews >= 3 {
		reasons = append(reasons, model.Reason{Factor: "Navigation", Impact: browsingImpact, Detail: "Consistent funnel engagement"})
	}
	if rules.InFocusRegion(row.State) {
		reasons = append(reasons, model.Reason{Factor: "Focus region", Impact: regionImpact, Detail: "Lead in priority territory"})
	}
	if row.Budget != "" {
		reasons = append(reasons, model.Reason{Factor: "Budget informed", Impact: budgetImpact, Detail: row.Budget})
	}

	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	return reasons
}
