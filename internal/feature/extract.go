// Package feature derives the fixed-schema feature row consumed by both the
// serving cascade and the offline training pipeline. Extraction is a pure
// function: malformed input degrades to defaults, never to an error.
package feature

import (
	"strings"
	"time"

	"github.com/funil-digital/leadscore/internal/model"
)

// RecencySentinel is the recency value reported when no event carries a valid
// timestamp. Serialized models were trained against this exact value.
const RecencySentinel = 9999.0

// Canonical event types. Alternate literal strings alias to the same signal.
const (
	eventPageView     = "page_view"
	eventHookComplete = "hook_complete"
	eventCTAClick     = "cta_click"
	eventWhatsAppClk  = "whatsapp_click"
)

// NumericColumns and CategoricalColumns define the canonical column order.
// Serialized model artifacts are order-sensitive; changing either list
// invalidates every trained artifact.
var (
	NumericColumns = []string{
		"n_events",
		"n_page_view",
		"n_hook_complete",
		"n_cta_click",
		"recency_last_event_hours",
	}
	CategoricalColumns = []string{
		"state",
		"city",
		"segment_of_interest",
		"budget_range",
		"purchase_horizon",
	}
)

// Columns returns the full feature column order: numeric then categorical.
func Columns() []string {
	cols := make([]string, 0, len(NumericColumns)+len(CategoricalColumns))
	cols = append(cols, NumericColumns...)
	cols = append(cols, CategoricalColumns...)
	return cols
}

// Row is the ML-ready representation of one (lead, events) pair.
type Row struct {
	EventCount    float64
	PageViews     float64
	HookCompletes float64
	CTAClicks     float64
	RecencyHours  float64

	State   string
	City    string
	Segment string
	Budget  string
	Horizon string
}

// Numeric returns the numeric features in NumericColumns order.
func (r Row) Numeric() []float64 {
	return []float64{r.EventCount, r.PageViews, r.HookCompletes, r.CTAClicks, r.RecencyHours}
}

// Categorical returns the categorical features in CategoricalColumns order.
func (r Row) Categorical() []string {
	return []string{r.State, r.City, r.Segment, r.Budget, r.Horizon}
}

// Extract builds the feature row for a lead and its event history as of now.
// It is total: it never fails, and identical inputs with a frozen clock yield
// identical rows.
func Extract(lead model.Lead, events []model.Event, now time.Time) Row {
	row := Row{
		State:   strings.ToUpper(strings.TrimSpace(lead.State)),
		City:    strings.TrimSpace(lead.City),
		Segment: strings.ToUpper(strings.TrimSpace(lead.Segment)),
		Budget:  strings.TrimSpace(lead.Budget),
		Horizon: strings.TrimSpace(lead.Horizon),

		EventCount:   float64(len(events)),
		RecencyHours: RecencySentinel,
	}

	var latest time.Time
	for _, ev := range events {
		switch NormalizeEventType(ev.Type) {
		case eventPageView:
			row.PageViews++
		case eventHookComplete:
			row.HookCompletes++
		case eventCTAClick:
			row.CTAClicks++
		}
		if ts, ok := ParseTimestamp(ev.Timestamp); ok && ts.After(latest) {
			latest = ts
		}
	}

	if !latest.IsZero() {
		hours := now.UTC().Sub(latest).Hours()
		if hours < 0 {
			hours = 0
		}
		row.RecencyHours = hours
	}

	return row
}

// NormalizeEventType lowercases, trims, and collapses alias event types onto
// their canonical scoring signal.
func NormalizeEventType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == eventWhatsAppClk {
		return eventCTAClick
	}
	return t
}

// timestampLayouts are tried in order after RFC3339. Layouts without an
// explicit zone are interpreted as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp string. Invalid or empty values
// report ok=false and are silently dropped from recency consideration.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), true
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
