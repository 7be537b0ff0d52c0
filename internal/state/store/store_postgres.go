package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"complyflow/internal/state/models"
	"complyflow/pkg/platform/sentinel"
)

// PostgresCurrentStore persists the live state in compliance_states. The
// full engine result travels as one JSONB document; the summary columns
// exist for dashboard queries only.
type PostgresCurrentStore struct {
	db *sql.DB
}

func NewPostgresCurrentStore(db *sql.DB) *PostgresCurrentStore {
	return &PostgresCurrentStore{db: db}
}

func (s *PostgresCurrentStore) Get(ctx context.Context, entityID string) (*models.EntityComplianceState, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM compliance_states WHERE entity_id = $1`, entityID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get state: %w", err)
	}
	var st models.EntityComplianceState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

func (s *PostgresCurrentStore) Put(ctx context.Context, state *models.EntityComplianceState, expectedVersion int64) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if expectedVersion == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO compliance_states
				(entity_id, schema_version, overall_state, overall_risk_score,
				 total_penalty_exposure, next_critical_deadline, result,
				 catalog_version, input_hash, calculated_at, calculation_version,
				 triggered_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (entity_id) DO NOTHING`,
			state.EntityID, state.SchemaVersion, state.Result.OverallState,
			state.Result.OverallRiskScore, state.Result.TotalPenaltyExposure,
			state.Result.NextCriticalDeadline, raw, state.CatalogVersion,
			state.InputHash, state.CalculatedAt, state.CalculationVersion,
			state.Trigger)
		if err != nil {
			return fmt.Errorf("insert state: %w", err)
		}
		return staleUnlessOneRow(res)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE compliance_states SET
			schema_version = $2,
			overall_state = $3,
			overall_risk_score = $4,
			total_penalty_exposure = $5,
			next_critical_deadline = $6,
			result = $7,
			catalog_version = $8,
			input_hash = $9,
			calculated_at = $10,
			calculation_version = $11,
			triggered_by = $12
		WHERE entity_id = $1 AND calculation_version = $13`,
		state.EntityID, state.SchemaVersion, state.Result.OverallState,
		state.Result.OverallRiskScore, state.Result.TotalPenaltyExposure,
		state.Result.NextCriticalDeadline, raw, state.CatalogVersion,
		state.InputHash, state.CalculatedAt, state.CalculationVersion,
		state.Trigger, expectedVersion)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	return staleUnlessOneRow(res)
}

func staleUnlessOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrStale
	}
	return nil
}

// PostgresHistoryStore appends to compliance_state_history.
type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (s *PostgresHistoryStore) Append(ctx context.Context, rec *models.HistoryRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	snapshot, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compliance_state_history
			(id, entity_id, recorded_at, overall_state, overall_risk_score,
			 total_penalty_exposure, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, rec.EntityID, rec.RecordedAt, rec.State.Result.OverallState,
		rec.State.Result.OverallRiskScore, rec.State.Result.TotalPenaltyExposure,
		snapshot)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *PostgresHistoryStore) List(ctx context.Context, entityID string, from, to time.Time, limit int) ([]models.HistoryRecord, error) {
	q := `SELECT id, entity_id, recorded_at, snapshot
		FROM compliance_state_history
		WHERE entity_id = $1`
	args := []any{entityID}
	if !from.IsZero() {
		args = append(args, from)
		q += fmt.Sprintf(" AND recorded_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		q += fmt.Sprintf(" AND recorded_at <= $%d", len(args))
	}
	q += " ORDER BY recorded_at DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		var snapshot []byte
		if err := rows.Scan(&rec.ID, &rec.EntityID, &rec.RecordedAt, &snapshot); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal(snapshot, &rec.State); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PostgresLogStore appends to state_calculation_log.
type PostgresLogStore struct {
	db *sql.DB
}

func NewPostgresLogStore(db *sql.DB) *PostgresLogStore {
	return &PostgresLogStore{db: db}
}

func (s *PostgresLogStore) Append(ctx context.Context, entry *models.CalculationLog) error {
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state_calculation_log
			(id, entity_id, triggered_by, outcome, catalog_version, input_hash,
			 calculation_version, rules_applied, warning_count, error_count,
			 detail, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, entry.EntityID, entry.Trigger, entry.Outcome, entry.CatalogVersion,
		entry.InputHash, entry.CalculationVersion, entry.RulesApplied,
		entry.WarningCount, entry.ErrorCount, entry.Detail, entry.DurationMS,
		entry.StartedAt)
	if err != nil {
		return fmt.Errorf("append calculation log: %w", err)
	}
	return nil
}

func (s *PostgresLogStore) List(ctx context.Context, entityID string, limit int) ([]models.CalculationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, triggered_by, outcome, catalog_version, input_hash,
		       calculation_version, rules_applied, warning_count, error_count,
		       detail, duration_ms, started_at
		FROM state_calculation_log
		WHERE entity_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list calculation log: %w", err)
	}
	defer rows.Close()

	var out []models.CalculationLog
	for rows.Next() {
		var e models.CalculationLog
		if err := rows.Scan(&e.ID, &e.EntityID, &e.Trigger, &e.Outcome,
			&e.CatalogVersion, &e.InputHash, &e.CalculationVersion,
			&e.RulesApplied, &e.WarningCount, &e.ErrorCount, &e.Detail,
			&e.DurationMS, &e.StartedAt); err != nil {
			return nil, fmt.Errorf("scan calculation log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
