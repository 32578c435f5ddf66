package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funil-digital/leadscore/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLead(id string) model.Lead {
	return model.Lead{
		ID:      id,
		Name:    "Maria",
		State:   "MG",
		City:    "Uberaba",
		Segment: "CAVALOS",
		Budget:  "60k+",
		Horizon: "7d",
	}
}

// --- Leads ---

func TestSQLite_Lead_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLead(ctx, testLead("lead-1")))

	got, err := st.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, testLead("lead-1"), got.Lead)
	assert.Nil(t, got.Score)
	assert.Nil(t, got.ScoredAt)
}

func TestSQLite_Lead_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLead(ctx, testLead("lead-1")))

	updated := testLead("lead-1")
	updated.Budget = "20-50k"
	require.NoError(t, st.UpsertLead(ctx, updated))

	got, err := st.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "20-50k", got.Lead.Budget)
}

func TestSQLite_Lead_IDRequired(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpsertLead(context.Background(), model.Lead{Segment: "CAVALOS"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead id required")
}

func TestSQLite_Lead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetLead(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
}

func TestSQLite_UpdateLeadScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLead(ctx, testLead("lead-1")))

	result := model.ScoreResult{
		Score:  85,
		Status: model.StatusQualified,
		Meta: model.Diagnostics{
			Engine:      model.EngineML,
			ModelName:   model.ModelIDForest,
			Probability: 0.85,
		},
	}
	require.NoError(t, st.UpdateLeadScore(ctx, "lead-1", result))

	got, err := st.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, 85, *got.Score)
	assert.Equal(t, model.StatusQualified, got.Status)
	assert.Equal(t, model.EngineML, got.Engine)
	assert.Equal(t, model.ModelIDForest, got.ModelName)
	require.NotNil(t, got.Probability)
	assert.InDelta(t, 0.85, *got.Probability, 1e-9)
	assert.NotNil(t, got.ScoredAt)
}

func TestSQLite_UpdateLeadScore_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateLeadScore(context.Background(), "missing", model.ScoreResult{Score: 50})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
}

func TestSQLite_ListLeads_OnlyMissingScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLead(ctx, testLead("scored")))
	require.NoError(t, st.UpsertLead(ctx, testLead("unscored")))
	require.NoError(t, st.UpdateLeadScore(ctx, "scored", model.ScoreResult{
		Score: 40, Status: model.StatusWarming, Meta: model.Diagnostics{Engine: model.EngineRules},
	}))

	leads, err := st.ListLeads(ctx, LeadFilter{OnlyMissingScore: true})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "unscored", leads[0].Lead.ID)
}

func TestSQLite_ListLeads_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.UpsertLead(ctx, testLead(id)))
	}

	leads, err := st.ListLeads(ctx, LeadFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}

// --- Events ---

func TestSQLite_Events_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertLead(ctx, testLead("lead-1")))
	require.NoError(t, st.AppendEvent(ctx, "lead-1", model.Event{
		Type:      "page_view",
		Timestamp: "2026-08-01T10:00:00Z",
	}))
	require.NoError(t, st.AppendEvent(ctx, "lead-1", model.Event{
		Type:     "cta_click",
		Metadata: map[string]any{"button": "whatsapp"},
	}))

	events, err := st.ListEvents(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "page_view", events[0].Type)
	assert.Equal(t, "2026-08-01T10:00:00Z", events[0].Timestamp)
	assert.Equal(t, "whatsapp", events[1].Metadata["button"])
}

func TestSQLite_Events_EmptyForUnknownLead(t *testing.T) {
	st := newTestSQLiteStore(t)

	events, err := st.ListEvents(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

// --- Partners ---

func TestSQLite_Partners_UpsertAndCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	partners := []model.Partner{
		{CNPJ: "11222333000181", State: "MG", PrimaryCNAE: "0142300", Segment: "CAVALOS", Priority: 1},
		{CNPJ: "22333444000192", State: "SP", PrimaryCNAE: "7731400", Segment: "EVENTOS", Priority: 2},
	}

	n, err := st.UpsertPartners(ctx, partners)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := st.CountPartners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-upserting the same CNPJs does not duplicate rows.
	partners[0].TradeName = "Haras Boa Vista"
	_, err = st.UpsertPartners(ctx, partners)
	require.NoError(t, err)

	count, err = st.CountPartners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLite_Partners_EmptySlice(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.UpsertPartners(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
