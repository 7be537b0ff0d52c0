package models

import "time"

// AlertType classifies what a calculation diff detected.
type AlertType string

const (
	TypeUpcoming    AlertType = "UPCOMING"
	TypeOverdue     AlertType = "OVERDUE"
	TypePenaltyRisk AlertType = "PENALTY_RISK"
	TypeStateChange AlertType = "STATE_CHANGE"
)

// Severity ranks an alert for triage.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var Severities = map[Severity]bool{
	SeverityCritical: true,
	SeverityHigh:     true,
	SeverityMedium:   true,
	SeverityLow:      true,
}

// Status is the alert lifecycle. Alerts start ACTIVE and stay unique per
// (entityId, ruleId, alertType) until acknowledged.
type Status string

const (
	StatusActive       Status = "ACTIVE"
	StatusAcknowledged Status = "ACKNOWLEDGED"
)

// Alert is one derived compliance event.
type Alert struct {
	ID             string     `json:"id"`
	EntityID       string     `json:"entityId"`
	RuleID         string     `json:"ruleId"`
	Type           AlertType  `json:"type"`
	Severity       Severity   `json:"severity"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Status         Status     `json:"status"`
	TriggeredAt    time.Time  `json:"triggeredAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
}
