package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"complyflow/internal/catalog/models"
	"complyflow/pkg/platform/sentinel"
)

// PostgresStore persists the catalog in compliance_state_rules. Rule
// definitions are stored as JSONB alongside the columns queries filter on;
// the structured Go type remains the single schema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, rule *models.ComplianceRule) error {
	definition, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Retire the prior version in the same transaction.
	if rule.Version > 1 {
		res, err := tx.ExecContext(ctx, `
			UPDATE compliance_state_rules
			SET is_active = FALSE,
			    effective_until = $3,
			    updated_at = now()
			WHERE rule_id = $1 AND version = $2`,
			rule.RuleID, rule.Version-1, rule.EffectiveFrom)
		if err != nil {
			return fmt.Errorf("retire previous version: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("previous version %d missing: %w", rule.Version-1, sentinel.ErrConflict)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO compliance_state_rules
			(rule_id, version, domain, is_active, effective_from, effective_until, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rule.RuleID, rule.Version, rule.Domain, rule.IsActive,
		rule.EffectiveFrom, rule.EffectiveUntil, definition, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert rule version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE catalog_meta SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump catalog version: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) GetLatest(ctx context.Context, ruleID string) (*models.ComplianceRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT definition FROM compliance_state_rules
		WHERE rule_id = $1
		ORDER BY version DESC
		LIMIT 1`, ruleID)
	return scanRule(row)
}

func (s *PostgresStore) GetVersion(ctx context.Context, ruleID string, version int) (*models.ComplianceRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT definition FROM compliance_state_rules
		WHERE rule_id = $1 AND version = $2`, ruleID, version)
	return scanRule(row)
}

func (s *PostgresStore) ListActive(ctx context.Context, at time.Time) ([]*models.ComplianceRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (rule_id) definition
		FROM compliance_state_rules
		WHERE is_active
		  AND effective_from <= $1
		  AND (effective_until IS NULL OR effective_until > $1)
		ORDER BY rule_id, version DESC`, at)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var out []*models.ComplianceRule
	for rows.Next() {
		var definition []byte
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var rule models.ComplianceRule
		if err := json.Unmarshal(definition, &rule); err != nil {
			return nil, fmt.Errorf("unmarshal rule: %w", err)
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Deactivate(ctx context.Context, ruleID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE compliance_state_rules
		SET is_active = FALSE,
		    effective_until = $2,
		    definition = jsonb_set(definition, '{isActive}', 'false'),
		    updated_at = now()
		WHERE rule_id = $1
		  AND version = (SELECT max(version) FROM compliance_state_rules WHERE rule_id = $1)`,
		ruleID, at)
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `UPDATE catalog_meta SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump catalog version: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) CatalogVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM catalog_meta WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("catalog version: %w", err)
	}
	return v, nil
}

func scanRule(row *sql.Row) (*models.ComplianceRule, error) {
	var definition []byte
	if err := row.Scan(&definition); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	var rule models.ComplianceRule
	if err := json.Unmarshal(definition, &rule); err != nil {
		return nil, fmt.Errorf("unmarshal rule: %w", err)
	}
	return &rule, nil
}
