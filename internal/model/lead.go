package model

// Lead is a prospective customer entering the sales funnel.
// Segment is the only required funnel attribute; every other field may be
// empty and is treated as zero-signal by the scoring engines.
type Lead struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Email    string `json:"email,omitempty"`
	State    string `json:"state,omitempty"`
	City     string `json:"city,omitempty"`
	Segment  string `json:"segment_of_interest"`
	Budget   string `json:"budget_range,omitempty"`
	Horizon  string `json:"purchase_horizon,omitempty"`
}

// Event is a timestamped behavioral signal tied to a lead. Timestamp is an
// ISO-8601 string; when absent or unparsable the event is excluded from
// recency computation but still counted by type.
type Event struct {
	Type      string         `json:"event_type"`
	Timestamp string         `json:"ts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
