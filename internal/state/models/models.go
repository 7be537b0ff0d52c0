package models

import (
	"fmt"
	"time"

	"complyflow/internal/engine"
)

// SchemaVersion is stamped on every persisted state so readers can detect
// payloads written by an older shape of the engine output.
const SchemaVersion = 1

// Trigger identifies what started a calculation.
type Trigger string

const (
	TriggerAuto    Trigger = "AUTO"
	TriggerManual  Trigger = "MANUAL"
	TriggerWebhook Trigger = "WEBHOOK"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerAuto, TriggerManual, TriggerWebhook:
		return true
	}
	return false
}

// EntityComplianceState is the current materialized state of one entity.
// Exactly one row exists per entity; every recalculation replaces it whole.
type EntityComplianceState struct {
	EntityID      string `json:"entityId"`
	SchemaVersion int    `json:"schemaVersion"`

	Result engine.Result `json:"result"`

	CatalogVersion     int64     `json:"catalogVersion"`
	InputHash          string    `json:"inputHash"`
	CalculatedAt       time.Time `json:"calculatedAt"`
	CalculationVersion int64     `json:"calculationVersion"`
	Trigger            Trigger   `json:"trigger"`
}

// HistoryRecord is one immutable point-in-time copy of an entity's state,
// appended on every committed calculation.
type HistoryRecord struct {
	ID         string                `json:"id"`
	EntityID   string                `json:"entityId"`
	State      EntityComplianceState `json:"state"`
	RecordedAt time.Time             `json:"recordedAt"`
}

// CalculationLog is the audit trail entry for one run, committed or not.
type CalculationLog struct {
	ID                 string    `json:"id"`
	EntityID           string    `json:"entityId"`
	Trigger            Trigger   `json:"trigger"`
	Outcome            Outcome   `json:"outcome"`
	CatalogVersion     int64     `json:"catalogVersion"`
	InputHash          string    `json:"inputHash,omitempty"`
	CalculationVersion int64     `json:"calculationVersion,omitempty"`
	RulesApplied       int       `json:"rulesApplied"`
	WarningCount       int       `json:"warningCount"`
	ErrorCount         int       `json:"errorCount"`
	Detail             string    `json:"detail,omitempty"`
	DurationMS         int64     `json:"durationMs"`
	StartedAt          time.Time `json:"startedAt"`
}

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeCommitted Outcome = "COMMITTED"
	OutcomeSkipped   Outcome = "SKIPPED"
	OutcomeFailed    Outcome = "FAILED"
)

func (s *EntityComplianceState) Validate() error {
	if s.EntityID == "" {
		return fmt.Errorf("entityId is required")
	}
	if s.CalculationVersion < 1 {
		return fmt.Errorf("calculationVersion must be positive, got %d", s.CalculationVersion)
	}
	if !s.Trigger.Valid() {
		return fmt.Errorf("unknown trigger %q", s.Trigger)
	}
	return nil
}
