package ml

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/funil-digital/leadscore/internal/feature"
)

// SchemaVersion is bumped whenever the artifact layout or the feature column
// contract changes; loading rejects artifacts from a different schema.
const SchemaVersion = 2

// Artifact is an immutable trained pipeline: fitted preprocessing plus exactly
// one classifier, tagged with the feature column order it expects. Artifacts
// are produced by the training pipeline, loaded once at service start, and
// replaced only by redeploying new files.
type Artifact struct {
	SchemaVersion  int
	ModelID        string
	TrainedAt      time.Time
	FeatureColumns []string

	Pre    *Preprocessor
	Logit  *LogisticRegression
	Forest *RandomForest
}

// NewArtifact wraps a fitted preprocessor and classifier. Exactly one of logit
// and forest must be non-nil.
func NewArtifact(modelID string, pre *Preprocessor, logit *LogisticRegression, forest *RandomForest) *Artifact {
	return &Artifact{
		SchemaVersion:  SchemaVersion,
		ModelID:        modelID,
		TrainedAt:      time.Now().UTC(),
		FeatureColumns: feature.Columns(),
		Pre:            pre,
		Logit:          logit,
		Forest:         forest,
	}
}

// PredictProba runs the full pipeline on one feature row and returns the
// clamped probability of qualification. An inconsistent artifact yields an
// error so the cascade can advance to its next stage.
func (a *Artifact) PredictProba(row feature.Row) (float64, error) {
	if a.Pre == nil {
		return 0, eris.New("artifact: missing preprocessor")
	}
	if len(a.FeatureColumns) != len(feature.Columns()) {
		return 0, eris.Errorf("artifact: expects %d feature columns, serving contract has %d",
			len(a.FeatureColumns), len(feature.Columns()))
	}

	vec := a.Pre.Transform(row)
	switch {
	case a.Logit != nil:
		return clampProb(a.Logit.PredictProba(vec)), nil
	case a.Forest != nil:
		return clampProb(a.Forest.PredictProba(vec)), nil
	default:
		return 0, eris.New("artifact: no classifier present")
	}
}

// Save writes the artifact atomically: encode to a temp file in the target
// directory, then rename into place so a concurrently starting server never
// observes a partial file.
func Save(a *Artifact, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "artifact: mkdir %s", filepath.Dir(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "artifact: create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(a); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "artifact: encode %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "artifact: close temp file for %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "artifact: publish %s", path)
	}
	return nil
}

// Load reads an artifact from disk. It never returns an error: a missing or
// unreadable file yields a nil artifact and a status string for the health
// surface, because serving must degrade to the next cascade stage rather than
// crash.
//
// Status strings: "loaded:<path>", "missing:<path>", "error:<path>:<cause>".
func Load(path string) (*Artifact, string) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Sprintf("missing:%s", path)
		}
		return nil, fmt.Sprintf("error:%s:%v", path, err)
	}
	defer f.Close()

	var a Artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Sprintf("error:%s:%v", path, err)
	}
	if a.SchemaVersion != SchemaVersion {
		return nil, fmt.Sprintf("error:%s:schema version %d, want %d", path, a.SchemaVersion, SchemaVersion)
	}
	return &a, fmt.Sprintf("loaded:%s", path)
}
