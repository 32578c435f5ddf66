package training

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datasetHeader = "n_events,n_page_view,n_hook_complete,n_cta_click,recency_last_event_hours,state,city,segment_of_interest,budget_range,purchase_horizon"

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDatasetExplicitLabel(t *testing.T) {
	csv := datasetHeader + ",label_qualified\n" +
		"4,3,1,1,2.5,mg,Uberaba,cavalos,60k+,7d,1\n" +
		"1,1,0,0,500,RJ,Rio,eventos,,90d,0\n" +
		"2,0,0,1,abc,SP,,CAVALOS,20-50k,,1\n"

	examples, target, err := LoadDataset(writeDataset(t, csv))
	require.NoError(t, err)
	assert.Equal(t, TargetColumn, target)
	require.Len(t, examples, 3)

	assert.Equal(t, "MG", examples[0].Row.State)
	assert.Equal(t, "CAVALOS", examples[0].Row.Segment)
	assert.Equal(t, 1, examples[0].Label)
	assert.Equal(t, 0, examples[1].Label)
	assert.True(t, math.IsNaN(examples[2].Row.RecencyHours), "invalid numeric coerces to NaN")
}

func TestLoadDatasetStatusFallback(t *testing.T) {
	csv := datasetHeader + ",status\n" +
		"4,3,1,1,2.5,MG,Uberaba,CAVALOS,60k+,7d,qualified\n" +
		"1,1,0,0,500,RJ,Rio,EVENTOS,,90d,curious\n" +
		"3,2,1,0,10,SP,Campinas,CAVALOS,30k,30d,ENVIADO\n" +
		"2,1,0,0,50,GO,Goiania,EVENTOS,,90d,AQUECENDO\n"

	examples, target, err := LoadDataset(writeDataset(t, csv))
	require.NoError(t, err)
	assert.Equal(t, StatusColumn, target)
	require.Len(t, examples, 4)

	labels := []int{examples[0].Label, examples[1].Label, examples[2].Label, examples[3].Label}
	assert.Equal(t, []int{1, 0, 1, 0}, labels)
}

func TestLoadDatasetMissingColumns(t *testing.T) {
	csv := "n_events,state,label_qualified\n1,MG,1\n"

	_, _, err := LoadDataset(writeDataset(t, csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "n_page_view")
}

func TestLoadDatasetMissingLabelSource(t *testing.T) {
	csv := datasetHeader + "\n4,3,1,1,2.5,MG,Uberaba,CAVALOS,60k+,7d\n"

	_, _, err := LoadDataset(writeDataset(t, csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label_qualified")
	assert.Contains(t, err.Error(), "status")
}

func TestLoadDatasetSingleClass(t *testing.T) {
	csv := datasetHeader + ",label_qualified\n" +
		"4,3,1,1,2.5,MG,Uberaba,CAVALOS,60k+,7d,1\n" +
		"3,2,1,0,10,SP,Campinas,CAVALOS,30k,30d,1\n"

	_, _, err := LoadDataset(writeDataset(t, csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one class")
}

func TestLoadDatasetDropsUnlabeledRows(t *testing.T) {
	csv := datasetHeader + ",label_qualified\n" +
		"4,3,1,1,2.5,MG,Uberaba,CAVALOS,60k+,7d,1\n" +
		"1,1,0,0,500,RJ,Rio,EVENTOS,,90d,\n" +
		"2,1,0,0,50,GO,Goiania,EVENTOS,,90d,0\n"

	examples, _, err := LoadDataset(writeDataset(t, csv))
	require.NoError(t, err)
	assert.Len(t, examples, 2)
}

func TestLoadDatasetFileMissing(t *testing.T) {
	_, _, err := LoadDataset(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "absent.csv"))
}
