// Package rules implements the deterministic point-additive scoring engine.
// It is the last line of defense in the inference cascade: it has no
// dependencies, no failure modes, and always produces a usable result.
package rules

import (
	"strings"

	"github.com/funil-digital/leadscore/internal/feature"
	"github.com/funil-digital/leadscore/internal/model"
)

// Point values per rule. Budget and horizon contribute tiers; the event and
// region rules contribute fixed bonuses.
const (
	budgetTopPoints  = 30
	budgetMidPoints  = 20
	budgetLowPoints  = 10
	budgetBasePoints = 5

	horizonUrgentPoints = 20
	horizonMidPoints    = 12
	horizonLongPoints   = 6
	horizonBasePoints   = 4

	hookPoints     = 15
	ctaPoints      = 20
	browsingPoints = 10
	regionPoints   = 5

	browsingThreshold = 3
)

// FocusRegions are the prioritized sales territories.
var FocusRegions = map[string]bool{"MG": true, "SP": true, "GO": true}

// Score computes the heuristic 0-100 score for a lead and its event history.
// Each contributing rule appends one reason entry; the final score is clamped
// to [0, 100].
func Score(lead model.Lead, events []model.Event) model.ScoreResult {
	var reasons []model.Reason
	score := 0

	if pts := BudgetPoints(lead.Budget); pts > 0 {
		score += pts
		reasons = append(reasons, model.Reason{Factor: "Budget range", Impact: pts, Detail: lead.Budget})
	}

	if pts := HorizonPoints(lead.Horizon); pts > 0 {
		score += pts
		reasons = append(reasons, model.Reason{Factor: "Purchase horizon", Impact: pts, Detail: lead.Horizon})
	}

	var hooks, ctas, pageViews int
	for _, ev := range events {
		switch feature.NormalizeEventType(ev.Type) {
		case "hook_complete":
			hooks++
		case "cta_click":
			ctas++
		case "page_view":
			pageViews++
		}
	}

	if hooks > 0 {
		score += hookPoints
		reasons = append(reasons, model.Reason{Factor: "Completed hook (quiz/calculator)", Impact: hookPoints})
	}
	if ctas > 0 {
		score += ctaPoints
		reasons = append(reasons, model.Reason{Factor: "CTA/WhatsApp click", Impact: ctaPoints})
	}
	if pageViews >= browsingThreshold {
		score += browsingPoints
		reasons = append(reasons, model.Reason{Factor: "High navigation (>=3 pages)", Impact: browsingPoints})
	}
	if InFocusRegion(lead.State) {
		score += regionPoints
		reasons = append(reasons, model.Reason{Factor: "Focus region (MG/SP/GO)", Impact: regionPoints})
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return model.ScoreResult{
		Score:   score,
		Status:  model.StatusForScore(score),
		Reasons: reasons,
		Meta:    model.Diagnostics{Engine: model.EngineRules},
	}
}

// BudgetPoints maps a raw budget bucket string to its point tier by substring
// match. Strings with a "+" or a 60k-style figure land in the top tier.
func BudgetPoints(budget string) int {
	b := strings.ToLower(strings.TrimSpace(budget))
	if b == "" {
		return 0
	}
	switch {
	case strings.Contains(b, "60") || strings.Contains(b, "+"):
		return budgetTopPoints
	case strings.Contains(b, "20") || strings.Contains(b, "30") ||
		strings.Contains(b, "40") || strings.Contains(b, "50"):
		return budgetMidPoints
	case strings.Contains(b, "5") || strings.Contains(b, "10"):
		return budgetLowPoints
	default:
		return budgetBasePoints
	}
}

// HorizonPoints maps a raw purchase-horizon string to its urgency tier.
func HorizonPoints(horizon string) int {
	h := strings.ToLower(strings.TrimSpace(horizon))
	if h == "" {
		return 0
	}
	switch {
	case strings.Contains(h, "7") || strings.Contains(h, "imediat") || strings.Contains(h, "immediat"):
		return horizonUrgentPoints
	case strings.Contains(h, "30"):
		return horizonMidPoints
	case strings.Contains(h, "90"):
		return horizonLongPoints
	default:
		return horizonBasePoints
	}
}

// InFocusRegion reports whether the state code is a prioritized territory.
func InFocusRegion(state string) bool {
	return FocusRegions[strings.ToUpper(strings.TrimSpace(state))]
}
