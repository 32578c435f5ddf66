package store

import (
	"context"
	"time"

	"github.com/funil-digital/leadscore/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	OnlyMissingScore bool   `json:"only_missing_score,omitempty"`
	State            string `json:"state,omitempty"`
	Limit            int    `json:"limit,omitempty"`
	Offset           int    `json:"offset,omitempty"`
}

// StoredLead is a lead row plus its most recent scoring outcome. Score and
// Probability are nil for leads never scored.
type StoredLead struct {
	Lead        model.Lead   `json:"lead"`
	Score       *int         `json:"score,omitempty"`
	Status      model.Status `json:"status,omitempty"`
	Engine      string       `json:"engine,omitempty"`
	ModelName   string       `json:"model_name,omitempty"`
	Probability *float64     `json:"probability_qualified,omitempty"`
	ScoredAt    *time.Time   `json:"scored_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Store defines the persistence interface shared by the batch jobs. The
// serve path never touches it; scoring requests carry their own payload.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, lead model.Lead) error
	GetLead(ctx context.Context, leadID string) (*StoredLead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]StoredLead, error)
	UpdateLeadScore(ctx context.Context, leadID string, result model.ScoreResult) error

	// Events
	AppendEvent(ctx context.Context, leadID string, event model.Event) error
	ListEvents(ctx context.Context, leadID string) ([]model.Event, error)

	// Partners
	UpsertPartners(ctx context.Context, partners []model.Partner) (int64, error)
	CountPartners(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
