package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"complyflow/internal/alerts/models"
	"complyflow/pkg/platform/sentinel"
)

// PostgresStore persists alerts in compliance_alerts. The partial unique
// index on (entity_id, rule_id, alert_type) WHERE status = 'ACTIVE' is what
// makes Upsert idempotent.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, alert *models.Alert) error {
	id := alert.ID
	if id == "" {
		id = uuid.NewString()
	}
	// Try to refresh an existing ACTIVE alert first; insert when none.
	err := s.db.QueryRowContext(ctx, `
		UPDATE compliance_alerts SET
			severity = $4, title = $5, message = $6, triggered_at = $7
		WHERE entity_id = $1 AND rule_id = $2 AND alert_type = $3 AND status = 'ACTIVE'
		RETURNING id`,
		alert.EntityID, alert.RuleID, alert.Type,
		alert.Severity, alert.Title, alert.Message, alert.TriggeredAt).Scan(&alert.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("refresh alert: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compliance_alerts
			(id, entity_id, rule_id, alert_type, severity, title, message,
			 status, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, alert.EntityID, alert.RuleID, alert.Type, alert.Severity,
		alert.Title, alert.Message, models.StatusActive, alert.TriggeredAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			// Raced with a concurrent upsert for the same key; the other
			// writer's refresh stands.
			return nil
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	alert.ID = id
	return nil
}

func (s *PostgresStore) List(ctx context.Context, entityID string, f Filter) ([]models.Alert, error) {
	q := `SELECT id, entity_id, rule_id, alert_type, severity, title, message,
		       status, triggered_at, acknowledged_at, acknowledged_by
		FROM compliance_alerts WHERE entity_id = $1`
	args := []any{entityID}
	if f.Severity != "" {
		args = append(args, f.Severity)
		q += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY triggered_at DESC, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, entity_id, rule_id, alert_type, severity, title, message,
		       status, triggered_at, acknowledged_at, acknowledged_by
		FROM compliance_alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *PostgresStore) Acknowledge(ctx context.Context, id, actor string) (*models.Alert, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE compliance_alerts SET
			status = $2, acknowledged_at = $3, acknowledged_by = $4
		WHERE id = $1 AND status = 'ACTIVE'`,
		id, models.StatusAcknowledged, now, actor)
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, sentinel.ErrInvalidState
	}
	return s.Get(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var ackAt sql.NullTime
	if err := row.Scan(&a.ID, &a.EntityID, &a.RuleID, &a.Type, &a.Severity,
		&a.Title, &a.Message, &a.Status, &a.TriggeredAt, &ackAt, &a.AcknowledgedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	if ackAt.Valid {
		t := ackAt.Time
		a.AcknowledgedAt = &t
	}
	return &a, nil
}
