package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funil-digital/leadscore/internal/model"
)

var frozenNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestExtractCounts(t *testing.T) {
	lead := model.Lead{Segment: "cavalos", State: " mg ", City: "  Uberaba "}
	events := []model.Event{
		{Type: "page_view"},
		{Type: "PAGE_VIEW "},
		{Type: "hook_complete"},
		{Type: "whatsapp_click"},
		{Type: "cta_click"},
		{Type: "form_submit"},
	}

	row := Extract(lead, events, frozenNow)

	assert.Equal(t, 6.0, row.EventCount)
	assert.Equal(t, 2.0, row.PageViews)
	assert.Equal(t, 1.0, row.HookCompletes)
	assert.Equal(t, 2.0, row.CTAClicks, "whatsapp_click aliases to cta_click")
	assert.Equal(t, "MG", row.State)
	assert.Equal(t, "Uberaba", row.City)
	assert.Equal(t, "CAVALOS", row.Segment)
}

func TestExtractRecency(t *testing.T) {
	tests := []struct {
		name   string
		events []model.Event
		want   float64
	}{
		{"no events", nil, RecencySentinel},
		{"no timestamps", []model.Event{{Type: "page_view"}}, RecencySentinel},
		{"invalid timestamps only", []model.Event{{Type: "page_view", Timestamp: "not-a-date"}}, RecencySentinel},
		{"two hours ago", []model.Event{{Type: "page_view", Timestamp: "2026-03-15T10:00:00Z"}}, 2.0},
		{"latest wins", []model.Event{
			{Type: "page_view", Timestamp: "2026-03-14T12:00:00Z"},
			{Type: "cta_click", Timestamp: "2026-03-15T11:00:00Z"},
		}, 1.0},
		{"naive timestamp treated as UTC", []model.Event{{Type: "page_view", Timestamp: "2026-03-15T09:00:00"}}, 3.0},
		{"future event clamps to zero", []model.Event{{Type: "page_view", Timestamp: "2026-03-15T13:00:00Z"}}, 0.0},
		{"invalid mixed with valid", []model.Event{
			{Type: "page_view", Timestamp: "garbage"},
			{Type: "page_view", Timestamp: "2026-03-15T06:00:00Z"},
		}, 6.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Extract(model.Lead{Segment: "EVENTOS"}, tt.events, frozenNow)
			assert.InDelta(t, tt.want, row.RecencyHours, 1e-9)
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	lead := model.Lead{Segment: "CAVALOS", State: "MG", Budget: "60k+", Horizon: "7d"}
	events := []model.Event{
		{Type: "hook_complete", Timestamp: "2026-03-15T08:30:00Z"},
		{Type: "page_view", Timestamp: "2026-03-15T08:31:00Z"},
	}

	first := Extract(lead, events, frozenNow)
	second := Extract(lead, events, frozenNow)
	assert.Equal(t, first, second)
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("2026-03-15T10:00:00-03:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 15, 13, 0, 0, 0, time.UTC), ts)

	_, ok = ParseTimestamp("")
	assert.False(t, ok)
	_, ok = ParseTimestamp("   ")
	assert.False(t, ok)
	_, ok = ParseTimestamp("15/03/2026")
	assert.False(t, ok)
}

func TestColumnsOrderStable(t *testing.T) {
	want := []string{
		"n_events", "n_page_view", "n_hook_complete", "n_cta_click", "recency_last_event_hours",
		"state", "city", "segment_of_interest", "budget_range", "purchase_horizon",
	}
	assert.Equal(t, want, Columns())

	row := Row{EventCount: 1, PageViews: 2, HookCompletes: 3, CTAClicks: 4, RecencyHours: 5}
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, row.Numeric())
}
