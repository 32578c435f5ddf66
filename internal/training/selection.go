package training

import "sort"

// Thresholds are the "technical tie" epsilons for the winner-selection
// cascade. They encode a business judgment call, not a mathematical necessity,
// so they are configurable with the historical constants as defaults.
type Thresholds struct {
	ROCAUC float64
	PRAUC  float64
	Brier  float64
}

// DefaultThresholds returns the historical tie-break epsilons.
func DefaultThresholds() Thresholds {
	return Thresholds{ROCAUC: 0.005, PRAUC: 0.003, Brier: 0.002}
}

// SelectWinner elects the champion from the evaluated models via a cascading
// tie-break on validation metrics: ROC-AUC, then PR-AUC, then Brier score,
// then inference latency (always decisive). Every evaluated step appends a
// human-readable reason to the audit trail, including steps that tie through.
func SelectWinner(results []Metrics, th Thresholds) (winner, runnerUp string, reasons []string) {
	ranked := append([]Metrics(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ValROCAUC != ranked[j].ValROCAUC {
			return ranked[i].ValROCAUC > ranked[j].ValROCAUC
		}
		return ranked[i].ValPRAUC > ranked[j].ValPRAUC
	})
	first, second := ranked[0], ranked[1]

	if first.ValROCAUC-second.ValROCAUC > th.ROCAUC {
		reasons = append(reasons, "Winner by ROC-AUC without technical tie.")
		return first.Model, second.Model, reasons
	}

	reasons = append(reasons, "Technical tie on ROC-AUC; applying PR-AUC tie-break.")
	if first.ValPRAUC-second.ValPRAUC > th.PRAUC {
		reasons = append(reasons, "Winner by PR-AUC.")
		return first.Model, second.Model, reasons
	}

	reasons = append(reasons, "Technical tie on PR-AUC; applying Brier tie-break.")
	if second.ValBrier-first.ValBrier > th.Brier {
		reasons = append(reasons, "Winner by lower Brier score.")
		return first.Model, second.Model, reasons
	}

	reasons = append(reasons, "Technical tie on Brier score; applying inference latency tie-break.")
	if first.ValLatencyMS <= second.ValLatencyMS {
		reasons = append(reasons, "Winner by lower latency.")
		return first.Model, second.Model, reasons
	}

	reasons = append(reasons, "Winner by lower latency (second model).")
	return second.Model, first.Model, reasons
}
