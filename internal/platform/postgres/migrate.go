package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the persisted layout if it does not exist yet. The
// statements are idempotent so startup can run them unconditionally.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS compliance_state_rules (
		rule_id          TEXT        NOT NULL,
		version          INT         NOT NULL,
		domain           TEXT        NOT NULL,
		is_active        BOOLEAN     NOT NULL DEFAULT TRUE,
		effective_from   TIMESTAMPTZ NOT NULL,
		effective_until  TIMESTAMPTZ,
		definition       JSONB       NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (rule_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rules_active ON compliance_state_rules (domain) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS catalog_meta (
		id      INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		version BIGINT NOT NULL DEFAULT 0
	)`,
	`INSERT INTO catalog_meta (id, version) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS compliance_states (
		entity_id               TEXT PRIMARY KEY,
		schema_version          INT           NOT NULL,
		overall_state           TEXT          NOT NULL,
		overall_risk_score      NUMERIC(7,2)  NOT NULL,
		total_penalty_exposure  NUMERIC(16,2) NOT NULL,
		next_critical_deadline  TIMESTAMPTZ,
		result                  JSONB         NOT NULL,
		catalog_version         BIGINT        NOT NULL,
		input_hash              TEXT          NOT NULL,
		calculated_at           TIMESTAMPTZ   NOT NULL,
		calculation_version     BIGINT        NOT NULL,
		triggered_by            TEXT          NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS compliance_state_history (
		id                     UUID PRIMARY KEY,
		entity_id              TEXT          NOT NULL,
		recorded_at            TIMESTAMPTZ   NOT NULL,
		overall_state          TEXT          NOT NULL,
		overall_risk_score     NUMERIC(7,2)  NOT NULL,
		total_penalty_exposure NUMERIC(16,2) NOT NULL,
		snapshot               JSONB         NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_entity_time ON compliance_state_history (entity_id, recorded_at)`,

	`CREATE TABLE IF NOT EXISTS compliance_alerts (
		id              UUID PRIMARY KEY,
		entity_id       TEXT        NOT NULL,
		rule_id         TEXT        NOT NULL,
		alert_type      TEXT        NOT NULL,
		severity        TEXT        NOT NULL,
		title           TEXT        NOT NULL,
		message         TEXT        NOT NULL,
		status          TEXT        NOT NULL,
		triggered_at    TIMESTAMPTZ NOT NULL,
		acknowledged_at TIMESTAMPTZ,
		acknowledged_by TEXT        NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active_unique
		ON compliance_alerts (entity_id, rule_id, alert_type) WHERE status = 'ACTIVE'`,

	`CREATE TABLE IF NOT EXISTS state_calculation_log (
		id                  UUID PRIMARY KEY,
		entity_id           TEXT        NOT NULL,
		triggered_by        TEXT        NOT NULL,
		outcome             TEXT        NOT NULL,
		catalog_version     BIGINT      NOT NULL,
		input_hash          TEXT        NOT NULL DEFAULT '',
		calculation_version BIGINT      NOT NULL DEFAULT 0,
		rules_applied       INT         NOT NULL,
		warning_count       INT         NOT NULL,
		error_count         INT         NOT NULL,
		detail              TEXT        NOT NULL DEFAULT '',
		duration_ms         BIGINT      NOT NULL,
		started_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calc_log_entity_time ON state_calculation_log (entity_id, started_at)`,

	`CREATE TABLE IF NOT EXISTS entity_profiles (
		entity_id                TEXT PRIMARY KEY,
		legal_name               TEXT        NOT NULL,
		entity_type              TEXT        NOT NULL,
		incorporation_date       TIMESTAMPTZ NOT NULL,
		state                    TEXT        NOT NULL,
		annual_turnover          NUMERIC(18,2),
		employee_count           INT,
		gst_registered           BOOLEAN     NOT NULL DEFAULT FALSE,
		pf_registered            BOOLEAN     NOT NULL DEFAULT FALSE,
		esi_registered           BOOLEAN     NOT NULL DEFAULT FALSE,
		has_foreign_transactions BOOLEAN     NOT NULL DEFAULT FALSE,
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS entity_services (
		entity_id      TEXT NOT NULL,
		service_key    TEXT NOT NULL,
		status         TEXT NOT NULL,
		due_date       TIMESTAMPTZ,
		last_completed TIMESTAMPTZ,
		PRIMARY KEY (entity_id, service_key)
	)`,

	`CREATE TABLE IF NOT EXISTS entity_documents (
		entity_id  TEXT    NOT NULL,
		doc_type   TEXT    NOT NULL,
		uploaded   BOOLEAN NOT NULL,
		approved   BOOLEAN NOT NULL,
		expires_at TIMESTAMPTZ,
		PRIMARY KEY (entity_id, doc_type)
	)`,

	`CREATE TABLE IF NOT EXISTS entity_filings (
		id           UUID PRIMARY KEY,
		entity_id    TEXT        NOT NULL,
		filing_type  TEXT        NOT NULL,
		filed_at     TIMESTAMPTZ NOT NULL,
		period_start TIMESTAMPTZ NOT NULL,
		period_end   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_filings_entity_type ON entity_filings (entity_id, filing_type, period_end)`,
}
