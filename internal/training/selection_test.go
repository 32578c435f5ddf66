package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsPair(a, b Metrics) []Metrics {
	a.Model = "logit_fine"
	b.Model = "rf_fine"
	return []Metrics{a, b}
}

func TestSelectWinnerByROCAUC(t *testing.T) {
	results := metricsPair(
		Metrics{ValROCAUC: 0.92, ValPRAUC: 0.80},
		Metrics{ValROCAUC: 0.90, ValPRAUC: 0.85},
	)

	winner, runnerUp, reasons := SelectWinner(results, DefaultThresholds())

	assert.Equal(t, "logit_fine", winner)
	assert.Equal(t, "rf_fine", runnerUp)
	require.Len(t, reasons, 1)
	assert.Equal(t, "Winner by ROC-AUC without technical tie.", reasons[0])
}

func TestSelectWinnerTieThroughToPRAUC(t *testing.T) {
	// ROC-AUC gap 0.003 < 0.005 epsilon, PR-AUC gap 0.01 > 0.003 epsilon.
	results := metricsPair(
		Metrics{ValROCAUC: 0.903, ValPRAUC: 0.86},
		Metrics{ValROCAUC: 0.900, ValPRAUC: 0.85},
	)

	winner, _, reasons := SelectWinner(results, DefaultThresholds())

	assert.Equal(t, "logit_fine", winner)
	require.Len(t, reasons, 2)
	assert.Equal(t, "Technical tie on ROC-AUC; applying PR-AUC tie-break.", reasons[0])
	assert.Equal(t, "Winner by PR-AUC.", reasons[1])
}

func TestSelectWinnerByBrier(t *testing.T) {
	results := metricsPair(
		Metrics{ValROCAUC: 0.901, ValPRAUC: 0.851, ValBrier: 0.10},
		Metrics{ValROCAUC: 0.900, ValPRAUC: 0.850, ValBrier: 0.15},
	)

	winner, _, reasons := SelectWinner(results, DefaultThresholds())

	assert.Equal(t, "logit_fine", winner)
	require.Len(t, reasons, 3)
	assert.Equal(t, "Winner by lower Brier score.", reasons[2])
}

func TestSelectWinnerByLatency(t *testing.T) {
	results := metricsPair(
		Metrics{ValROCAUC: 0.901, ValPRAUC: 0.851, ValBrier: 0.101, ValLatencyMS: 0.8},
		Metrics{ValROCAUC: 0.900, ValPRAUC: 0.850, ValBrier: 0.100, ValLatencyMS: 0.2},
	)

	winner, runnerUp, reasons := SelectWinner(results, DefaultThresholds())

	// The top-ranked model is slower, so the second model wins the final step.
	assert.Equal(t, "rf_fine", winner)
	assert.Equal(t, "logit_fine", runnerUp)
	require.Len(t, reasons, 4)
	assert.Equal(t, "Winner by lower latency (second model).", reasons[3])
}

func TestSelectWinnerRankingOrderIndependent(t *testing.T) {
	// The clearly better model wins regardless of input order.
	strong := Metrics{Model: "rf_fine", ValROCAUC: 0.95, ValPRAUC: 0.9}
	weak := Metrics{Model: "logit_fine", ValROCAUC: 0.80, ValPRAUC: 0.7}

	winner, _, _ := SelectWinner([]Metrics{weak, strong}, DefaultThresholds())
	assert.Equal(t, "rf_fine", winner)

	winner, _, _ = SelectWinner([]Metrics{strong, weak}, DefaultThresholds())
	assert.Equal(t, "rf_fine", winner)
}

func TestSelectWinnerConfigurableThresholds(t *testing.T) {
	// With a huge ROC epsilon the same inputs fall through to PR-AUC.
	results := metricsPair(
		Metrics{ValROCAUC: 0.92, ValPRAUC: 0.90},
		Metrics{ValROCAUC: 0.90, ValPRAUC: 0.80},
	)

	th := Thresholds{ROCAUC: 0.05, PRAUC: 0.003, Brier: 0.002}
	winner, _, reasons := SelectWinner(results, th)

	assert.Equal(t, "logit_fine", winner)
	require.Len(t, reasons, 2)
	assert.Equal(t, "Winner by PR-AUC.", reasons[1])
}
