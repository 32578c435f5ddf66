// Package training implements the offline model-selection pipeline: dataset
// validation, stratified splitting, two-round grid search over both classifier
// families, metric evaluation, and the cascading tie-break that elects the
// champion. Unlike the serving path, this package fails fast: data-integrity
// problems abort the run before any compute-intensive search starts.
package training

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/funil-digital/leadscore/internal/feature"
)

// TargetColumn is the explicit binary label column. When absent, the label is
// derived from the categorical status column instead.
const (
	TargetColumn = "label_qualified"
	StatusColumn = "status"
)

// qualifiedStatuses map to a positive label when the dataset carries a status
// column instead of an explicit label. Legacy exports use the Portuguese tier
// names, so both spellings are accepted.
var qualifiedStatuses = map[string]bool{
	"QUALIFIED":   true,
	"SENT":        true,
	"QUALIFICADO": true,
	"ENVIADO":     true,
}

// Example is one labeled feature row.
type Example struct {
	Row   feature.Row
	Label int
}

// datasetRecord mirrors the training CSV layout. Numeric fields decode as
// strings so invalid values can degrade to NaN for imputation instead of
// failing the whole row.
type datasetRecord struct {
	NEvents       string `csv:"n_events"`
	NPageView     string `csv:"n_page_view"`
	NHookComplete string `csv:"n_hook_complete"`
	NCTAClick     string `csv:"n_cta_click"`
	Recency       string `csv:"recency_last_event_hours"`
	State         string `csv:"state"`
	City          string `csv:"city"`
	Segment       string `csv:"segment_of_interest"`
	Budget        string `csv:"budget_range"`
	Horizon       string `csv:"purchase_horizon"`
	Label         string `csv:"label_qualified"`
	Status        string `csv:"status"`
}

// LoadDataset reads and validates the labeled dataset. It returns the examples
// and the name of the column the label came from. Missing feature columns, a
// missing label source, or a single-class label are hard errors.
func LoadDataset(path string) ([]Example, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "training: open dataset %s", path)
	}
	defer f.Close()

	examples, target, err := decodeDataset(f)
	if err != nil {
		return nil, "", eris.Wrapf(err, "training: dataset %s", path)
	}
	return examples, target, nil
}

func decodeDataset(r io.Reader) ([]Example, string, error) {
	csvReader := csv.NewReader(r)
	dec, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		return nil, "", eris.Wrap(err, "read header")
	}

	header := make(map[string]bool, len(dec.Header()))
	for _, col := range dec.Header() {
		header[strings.TrimSpace(col)] = true
	}

	var missing []string
	for _, col := range feature.Columns() {
		if !header[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, "", eris.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	target := TargetColumn
	if !header[TargetColumn] {
		if !header[StatusColumn] {
			return nil, "", eris.Errorf("missing target %q and fallback %q column", TargetColumn, StatusColumn)
		}
		target = StatusColumn
	}

	var examples []Example
	for {
		var rec datasetRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, "", eris.Wrap(err, "decode row")
		}

		label, ok := deriveLabel(rec, target)
		if !ok {
			// Rows without a usable label are dropped, mirroring how the
			// dataset export leaves unlabeled leads in place.
			continue
		}
		examples = append(examples, Example{Row: recordRow(rec), Label: label})
	}

	if len(examples) == 0 {
		return nil, "", eris.New("dataset has no labeled rows")
	}

	var positives int
	for _, ex := range examples {
		positives += ex.Label
	}
	if positives == 0 || positives == len(examples) {
		return nil, "", eris.New("target has one class only; training needs both positive and negative labels")
	}

	return examples, target, nil
}

func deriveLabel(rec datasetRecord, target string) (int, bool) {
	if target == TargetColumn {
		raw := strings.TrimSpace(rec.Label)
		if raw == "" {
			return 0, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		if v >= 0.5 {
			return 1, true
		}
		return 0, true
	}

	status := strings.ToUpper(strings.TrimSpace(rec.Status))
	if status == "" {
		return 0, false
	}
	if qualifiedStatuses[status] {
		return 1, true
	}
	return 0, true
}

// recordRow normalizes a CSV record into a feature row using the same text
// conventions as serving-time extraction.
func recordRow(rec datasetRecord) feature.Row {
	return feature.Row{
		EventCount:    parseNumeric(rec.NEvents),
		PageViews:     parseNumeric(rec.NPageView),
		HookCompletes: parseNumeric(rec.NHookComplete),
		CTAClicks:     parseNumeric(rec.NCTAClick),
		RecencyHours:  parseNumeric(rec.Recency),

		State:   strings.ToUpper(strings.TrimSpace(rec.State)),
		City:    strings.TrimSpace(rec.City),
		Segment: strings.ToUpper(strings.TrimSpace(rec.Segment)),
		Budget:  strings.TrimSpace(rec.Budget),
		Horizon: strings.TrimSpace(rec.Horizon),
	}
}

// parseNumeric coerces a CSV cell to float64; invalid values become NaN and
// are imputed downstream.
func parseNumeric(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
