package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/funil-digital/leadscore/internal/db"
	"github.com/funil-digital/leadscore/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"upsert_lead": `INSERT INTO leads (id, name, whatsapp, email, state, city, segment, budget_range, purchase_horizon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
		  name = EXCLUDED.name, whatsapp = EXCLUDED.whatsapp, email = EXCLUDED.email,
		  state = EXCLUDED.state, city = EXCLUDED.city, segment = EXCLUDED.segment,
		  budget_range = EXCLUDED.budget_range, purchase_horizon = EXCLUDED.purchase_horizon,
		  updated_at = EXCLUDED.updated_at`,
	"get_lead":          `SELECT id, name, whatsapp, email, state, city, segment, budget_range, purchase_horizon, score, status, engine, model_name, probability, scored_at, created_at, updated_at FROM leads WHERE id = $1`,
	"update_lead_score": `UPDATE leads SET score = $1, status = $2, engine = $3, model_name = $4, probability = $5, scored_at = $6, updated_at = $7 WHERE id = $8`,
	"append_event":      `INSERT INTO lead_events (id, lead_id, event_type, ts, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"list_events":       `SELECT event_type, ts, metadata FROM lead_events WHERE lead_id = $1 ORDER BY created_at ASC`,
	"count_partners":    `SELECT COUNT(*) FROM partners`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	whatsapp         TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	segment          TEXT NOT NULL,
	budget_range     TEXT NOT NULL DEFAULT '',
	purchase_horizon TEXT NOT NULL DEFAULT '',
	score            INTEGER,
	status           TEXT,
	engine           TEXT,
	model_name       TEXT,
	probability      DOUBLE PRECISION,
	scored_at        TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lead_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	event_type TEXT NOT NULL,
	ts         TEXT,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS partners (
	cnpj                TEXT PRIMARY KEY,
	legal_name          TEXT NOT NULL DEFAULT '',
	trade_name          TEXT NOT NULL DEFAULT '',
	state               TEXT NOT NULL DEFAULT '',
	city_code           TEXT NOT NULL DEFAULT '',
	city_name           TEXT NOT NULL DEFAULT '',
	primary_cnae        TEXT NOT NULL DEFAULT '',
	secondary_cnaes     TEXT NOT NULL DEFAULT '',
	segment             TEXT NOT NULL DEFAULT '',
	priority            INTEGER NOT NULL DEFAULT 0,
	registration_status TEXT NOT NULL DEFAULT '',
	activity_start      TEXT NOT NULL DEFAULT '',
	email               TEXT NOT NULL DEFAULT '',
	postal_code         TEXT NOT NULL DEFAULT '',
	cnae_description    TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_state ON leads(state);
CREATE INDEX IF NOT EXISTS idx_leads_missing_score ON leads(created_at) WHERE score IS NULL;
CREATE INDEX IF NOT EXISTS idx_lead_events_lead_id ON lead_events(lead_id);
CREATE INDEX IF NOT EXISTS idx_partners_state ON partners(state);
CREATE INDEX IF NOT EXISTS idx_partners_primary_cnae ON partners(primary_cnae);
`

// partnerColumns is the column order used for bulk partner upserts.
var partnerColumns = []string{
	"cnpj", "legal_name", "trade_name", "state", "city_code", "city_name",
	"primary_cnae", "secondary_cnaes", "segment", "priority",
	"registration_status", "activity_start", "email", "postal_code",
	"cnae_description", "created_at", "updated_at",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertLead(ctx context.Context, lead model.Lead) error {
	if lead.ID == "" {
		return eris.New("postgres: lead id required")
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, name, whatsapp, email, state, city, segment, budget_range, purchase_horizon, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, whatsapp = EXCLUDED.whatsapp, email = EXCLUDED.email,
		   state = EXCLUDED.state, city = EXCLUDED.city, segment = EXCLUDED.segment,
		   budget_range = EXCLUDED.budget_range, purchase_horizon = EXCLUDED.purchase_horizon,
		   updated_at = EXCLUDED.updated_at`,
		lead.ID, lead.Name, lead.WhatsApp, lead.Email, lead.State, lead.City,
		lead.Segment, lead.Budget, lead.Horizon, now, now,
	)
	return eris.Wrapf(err, "postgres: upsert lead %s", lead.ID)
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*StoredLead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, whatsapp, email, state, city, segment, budget_range, purchase_horizon,
		        score, status, engine, model_name, probability, scored_at, created_at, updated_at
		 FROM leads WHERE id = $1`,
		leadID,
	)
	l, err := scanPgLead(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", leadID)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]StoredLead, error) {
	query := `SELECT id, name, whatsapp, email, state, city, segment, budget_range, purchase_horizon,
	                 score, status, engine, model_name, probability, scored_at, created_at, updated_at
	          FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.OnlyMissingScore {
		query += ` AND score IS NULL`
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []StoredLead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadScore(ctx context.Context, leadID string, result model.ScoreResult) error {
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET score = $1, status = $2, engine = $3, model_name = $4, probability = $5, scored_at = $6, updated_at = $7
		 WHERE id = $8`,
		result.Score, string(result.Status), result.Meta.Engine, result.Meta.ModelName,
		result.Meta.Probability, now, now, leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead score %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", leadID)
	}
	return nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, leadID string, event model.Event) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal event metadata")
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_events (id, lead_id, event_type, ts, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, leadID, event.Type, event.Timestamp, metadataJSON, now,
	)
	return eris.Wrapf(err, "postgres: append event for lead %s", leadID)
}

func (s *PostgresStore) ListEvents(ctx context.Context, leadID string) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_type, ts, metadata FROM lead_events WHERE lead_id = $1 ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list events for lead %s", leadID)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var ts *string
		var metadataJSON []byte
		if err := rows.Scan(&ev.Type, &ts, &metadataJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		if ts != nil {
			ev.Timestamp = *ts
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &ev.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal event metadata")
			}
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) UpsertPartners(ctx context.Context, partners []model.Partner) (int64, error) {
	if len(partners) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	rows := make([][]any, 0, len(partners))
	for _, p := range partners {
		rows = append(rows, []any{
			p.CNPJ, p.LegalName, p.TradeName, p.State, p.CityCode, p.CityName,
			p.PrimaryCNAE, p.SecondaryCNAEs, p.Segment, p.Priority,
			p.Registration, p.ActivityStart, p.Email, p.PostalCode,
			p.CNAEDescription, now, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "partners",
		Columns:      partnerColumns,
		ConflictKeys: []string{"cnpj"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert partners")
}

func (s *PostgresStore) CountPartners(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM partners`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count partners")
}

func scanPgLead(row pgx.Row) (*StoredLead, error) {
	var l StoredLead
	var score *int
	var status, engine, modelName *string
	var probability *float64
	var scoredAt *time.Time

	err := row.Scan(
		&l.Lead.ID, &l.Lead.Name, &l.Lead.WhatsApp, &l.Lead.Email, &l.Lead.State,
		&l.Lead.City, &l.Lead.Segment, &l.Lead.Budget, &l.Lead.Horizon,
		&score, &status, &engine, &modelName, &probability, &scoredAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("lead not found")
	}
	if err != nil {
		return nil, err
	}

	l.Score = score
	if status != nil {
		l.Status = model.Status(*status)
	}
	if engine != nil {
		l.Engine = *engine
	}
	if modelName != nil {
		l.ModelName = *modelName
	}
	l.Probability = probability
	l.ScoredAt = scoredAt
	return &l, nil
}
