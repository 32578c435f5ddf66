package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/funil-digital/leadscore/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	probability      REAL,
	scored_at        DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lead_events (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	event_type TEXT NOT NULL,
	ts         TEXT,
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_state ON leads(state);
CREATE INDEX IF NOT EXISTS idx_lead_events_lead_id ON lead_events(lead_id);
CREATE INDEX IF NOT EXISTS idx_partners_state ON partners(state);
CREATE INDEX IF NOT EXISTS idx_partners_primary_cnae ON partners(primary_cnae);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.Lead) error {
	if lead.ID == "" {
		return eris.New("sqlite: lead id required")
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, whatsapp, email, state, city, segment, budget_range, purchase_horizon, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, whatsapp = excluded.whatsapp, email = excluded.email,
		   state = excluded.state, city = excluded.city, segment = excluded.segment,
		   budget_range = excluded.budget_range, purchase_horizon = excluded.purchase_horizon,
		   updated_at = excluded.updated_at`,
		lead.ID, lead.Name, lead.WhatsApp, lead.Email, lead.State, lead.City,
		lead.Segment, lead.Budget, lead.Horizon, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert lead %s", lead.ID)
}

const leadColumns = `id, name, whatsapp, email, state, city, segment, budget_range, purchase_horizon,
	score, status, engine, model_name, probability, scored_at, created_at, updated_at`

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*StoredLead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`,
		leadID,
	)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]StoredLead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.OnlyMissingScore {
		query += ` AND score IS NULL`
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []StoredLead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadScore(ctx context.Context, leadID string, result model.ScoreResult) error {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET score = ?, status = ?, engine = ?, model_name = ?, probability = ?, scored_at = ?, updated_at = ?
		 WHERE id = ?`,
		result.Score, string(result.Status), result.Meta.Engine, result.Meta.ModelName,
		result.Meta.Probability, now, now, leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead score %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, leadID string, event model.Event) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal event metadata")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_events (id, lead_id, event_type, ts, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, leadID, event.Type, event.Timestamp, nullString(metadataJSON), now,
	)
	return eris.Wrapf(err, "sqlite: append event for lead %s", leadID)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, leadID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, ts, metadata FROM lead_events WHERE lead_id = ? ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list events for lead %s", leadID)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var ts, metadataJSON sql.NullString
		if err := rows.Scan(&ev.Type, &ts, &metadataJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		ev.Timestamp = ts.String
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &ev.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal event metadata")
			}
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) UpsertPartners(ctx context.Context, partners []model.Partner) (int64, error) {
	if len(partners) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin partners tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO partners (cnpj, legal_name, trade_name, state, city_code, city_name, primary_cnae,
		   secondary_cnaes, segment, priority, registration_status, activity_start, email, postal_code,
		   cnae_description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (cnpj) DO UPDATE SET
		   legal_name = excluded.legal_name, trade_name = excluded.trade_name, state = excluded.state,
		   city_code = excluded.city_code, city_name = excluded.city_name, primary_cnae = excluded.primary_cnae,
		   secondary_cnaes = excluded.secondary_cnaes, segment = excluded.segment, priority = excluded.priority,
		   registration_status = excluded.registration_status, activity_start = excluded.activity_start,
		   email = excluded.email, postal_code = excluded.postal_code, cnae_description = excluded.cnae_description,
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare partners upsert")
	}
	defer stmt.Close()

	var n int64
	for _, p := range partners {
		if _, err := stmt.ExecContext(ctx,
			p.CNPJ, p.LegalName, p.TradeName, p.State, p.CityCode, p.CityName, p.PrimaryCNAE,
			p.SecondaryCNAEs, p.Segment, p.Priority, p.Registration, p.ActivityStart, p.Email,
			p.PostalCode, p.CNAEDescription, now, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert partner %s", p.CNPJ)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit partners tx")
	}
	return n, nil
}

func (s *SQLiteStore) CountPartners(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM partners`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count partners")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*StoredLead, error) {
	var l StoredLead
	var score sql.NullInt64
	var status, engine, modelName sql.NullString
	var probability sql.NullFloat64
	var scoredAt sql.NullTime

	err := row.Scan(
		&l.Lead.ID, &l.Lead.Name, &l.Lead.WhatsApp, &l.Lead.Email, &l.Lead.State,
		&l.Lead.City, &l.Lead.Segment, &l.Lead.Budget, &l.Lead.Horizon,
		&score, &status, &engine, &modelName, &probability, &scoredAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.New("lead not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}

	if score.Valid {
		v := int(score.Int64)
		l.Score = &v
	}
	l.Status = model.Status(status.String)
	l.Engine = engine.String
	l.ModelName = modelName.String
	if probability.Valid {
		l.Probability = &probability.Float64
	}
	if scoredAt.Valid {
		t := scoredAt.Time
		l.ScoredAt = &t
	}
	return &l, nil
}
