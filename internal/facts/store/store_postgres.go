package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"complyflow/internal/facts/models"
	"complyflow/pkg/platform/sentinel"
)

// PostgresStore persists entity facts in the entity_* tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *models.EntityProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_profiles
			(entity_id, legal_name, entity_type, incorporation_date, state,
			 annual_turnover, employee_count, gst_registered, pf_registered,
			 esi_registered, has_foreign_transactions, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (entity_id) DO UPDATE SET
			legal_name = EXCLUDED.legal_name,
			entity_type = EXCLUDED.entity_type,
			incorporation_date = EXCLUDED.incorporation_date,
			state = EXCLUDED.state,
			annual_turnover = EXCLUDED.annual_turnover,
			employee_count = EXCLUDED.employee_count,
			gst_registered = EXCLUDED.gst_registered,
			pf_registered = EXCLUDED.pf_registered,
			esi_registered = EXCLUDED.esi_registered,
			has_foreign_transactions = EXCLUDED.has_foreign_transactions,
			updated_at = now()`,
		p.EntityID, p.LegalName, p.EntityType, p.IncorporationDate, p.State,
		decimalOrNil(p.AnnualTurnover), p.EmployeeCount, p.GSTRegistered,
		p.PFRegistered, p.ESIRegistered, p.HasForeignTransactions)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, entityID string) (*models.EntityProfile, error) {
	var p models.EntityProfile
	var turnover sql.NullString
	var employees sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT entity_id, legal_name, entity_type, incorporation_date, state,
		       annual_turnover, employee_count, gst_registered, pf_registered,
		       esi_registered, has_foreign_transactions, updated_at
		FROM entity_profiles WHERE entity_id = $1`, entityID).Scan(
		&p.EntityID, &p.LegalName, &p.EntityType, &p.IncorporationDate, &p.State,
		&turnover, &employees, &p.GSTRegistered, &p.PFRegistered,
		&p.ESIRegistered, &p.HasForeignTransactions, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if turnover.Valid {
		d, err := parseDecimal(turnover.String)
		if err != nil {
			return nil, fmt.Errorf("get profile: %w", err)
		}
		p.AnnualTurnover = d
	}
	if employees.Valid {
		n := int(employees.Int64)
		p.EmployeeCount = &n
	}
	return &p, nil
}

func (s *PostgresStore) ListEntityIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id FROM entity_profiles ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) UpsertService(ctx context.Context, svc *models.ServiceStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_services (entity_id, service_key, status, due_date, last_completed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_id, service_key) DO UPDATE SET
			status = EXCLUDED.status,
			due_date = EXCLUDED.due_date,
			last_completed = EXCLUDED.last_completed`,
		svc.EntityID, svc.ServiceKey, svc.Status, svc.DueDate, svc.LastCompleted)
	if err != nil {
		return fmt.Errorf("upsert service: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListServices(ctx context.Context, entityID string) ([]models.ServiceStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, service_key, status, due_date, last_completed
		FROM entity_services WHERE entity_id = $1 ORDER BY service_key`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []models.ServiceStatus
	for rows.Next() {
		var svc models.ServiceStatus
		if err := rows.Scan(&svc.EntityID, &svc.ServiceKey, &svc.Status, &svc.DueDate, &svc.LastCompleted); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertDocument(ctx context.Context, doc *models.DocumentStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_documents (entity_id, doc_type, uploaded, approved, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_id, doc_type) DO UPDATE SET
			uploaded = EXCLUDED.uploaded,
			approved = EXCLUDED.approved,
			expires_at = EXCLUDED.expires_at`,
		doc.EntityID, doc.Type, doc.Uploaded, doc.Approved, doc.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, entityID string) ([]models.DocumentStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, doc_type, uploaded, approved, expires_at
		FROM entity_documents WHERE entity_id = $1 ORDER BY doc_type`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentStatus
	for rows.Next() {
		var doc models.DocumentStatus
		if err := rows.Scan(&doc.EntityID, &doc.Type, &doc.Uploaded, &doc.Approved, &doc.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddFiling(ctx context.Context, filing *models.FilingRecord) error {
	id := filing.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_filings (id, entity_id, filing_type, filed_at, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, filing.EntityID, filing.Type, filing.FiledAt, filing.PeriodStart, filing.PeriodEnd)
	if err != nil {
		return fmt.Errorf("add filing: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFilings(ctx context.Context, entityID string) ([]models.FilingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, filing_type, filed_at, period_start, period_end
		FROM entity_filings WHERE entity_id = $1 ORDER BY filing_type, period_end`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list filings: %w", err)
	}
	defer rows.Close()

	var out []models.FilingRecord
	for rows.Next() {
		var f models.FilingRecord
		if err := rows.Scan(&f.ID, &f.EntityID, &f.Type, &f.FiledAt, &f.PeriodStart, &f.PeriodEnd); err != nil {
			return nil, fmt.Errorf("scan filing: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func decimalOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDecimal(s string) (*decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return &d, nil
}
