package training

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// BestParams records the winning hyperparameters per family.
type BestParams struct {
	Logit  LogitParams  `json:"logit_fine"`
	Forest ForestParams `json:"rf_fine"`
}

// Report is the immutable audit record of one training run, consumed by the
// model_info surface and by operators reviewing a selection decision.
type Report struct {
	Winner           string     `json:"winner"`
	RunnerUp         string     `json:"runner_up"`
	SelectionReasons []string   `json:"selection_reasons"`
	Metrics          []Metrics  `json:"metrics"`
	BestParams       BestParams `json:"best_params"`
	TargetColumn     string     `json:"target_col"`
	FeatureColumns   []string   `json:"feature_cols"`
	RandomSeed       int64      `json:"random_state"`
}

// WriteReport persists the report atomically (temp file, then rename).
func WriteReport(r *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "training: mkdir %s", filepath.Dir(path))
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return eris.Wrap(err, "training: marshal report")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "training: create temp report")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "training: write report %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "training: close temp report for %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "training: publish report %s", path)
	}
	return nil
}

// LoadReport reads a persisted selection report.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "training: read report %s", path)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrapf(err, "training: parse report %s", path)
	}
	return &r, nil
}
