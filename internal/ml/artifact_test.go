package ml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funil-digital/leadscore/internal/feature"
)

func trainedArtifact(t *testing.T) *Artifact {
	t.Helper()

	rows := sampleRows()
	y := []int{1, 0, 1}

	pre := FitPreprocessor(rows, true)
	lr := &LogisticRegression{C: 1.0, Penalty: "l2", MaxIter: 200}
	require.NoError(t, lr.Fit(pre.TransformAll(rows), y))

	return NewArtifact("logit_fine", pre, lr, nil)
}

func TestArtifactRoundTrip(t *testing.T) {
	art := trainedArtifact(t)
	path := filepath.Join(t.TempDir(), "nested", "best_model.gob")

	require.NoError(t, Save(art, path))

	loaded, status := Load(path)
	require.NotNil(t, loaded)
	assert.Equal(t, "loaded:"+path, status)
	assert.Equal(t, art.ModelID, loaded.ModelID)
	assert.Equal(t, feature.Columns(), loaded.FeatureColumns)

	row := sampleRows()[0]
	want, err := art.PredictProba(row)
	require.NoError(t, err)
	got, err := loaded.PredictProba(row)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.gob")
	art, status := Load(path)
	assert.Nil(t, art)
	assert.Equal(t, "missing:"+path, status)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.gob")
	require.NoError(t, os.WriteFile(path, []byte("not a gob payload"), 0o644))

	art, status := Load(path)
	assert.Nil(t, art)
	assert.True(t, strings.HasPrefix(status, "error:"+path+":"), status)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gob")
	require.NoError(t, Save(trainedArtifact(t), path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model.gob", entries[0].Name())
}

func TestPredictProbaIncompleteArtifact(t *testing.T) {
	_, err := (&Artifact{}).PredictProba(feature.Row{})
	assert.Error(t, err)

	pre := FitPreprocessor(sampleRows(), false)
	_, err = (&Artifact{Pre: pre, FeatureColumns: feature.Columns()}).PredictProba(feature.Row{})
	assert.Error(t, err, "artifact without a classifier must fail, not panic")
}
