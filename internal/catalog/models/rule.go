package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Domain is a regulatory area. The enumeration is fixed; rules outside it are
// rejected at validation.
type Domain string

const (
	DomainCorporate Domain = "CORPORATE"
	DomainTaxGST    Domain = "TAX_GST"
	DomainTaxIncome Domain = "TAX_INCOME"
	DomainLabour    Domain = "LABOUR"
	DomainFEMA      Domain = "FEMA"
	DomainLicenses  Domain = "LICENSES"
	DomainStatutory Domain = "STATUTORY"
)

// Domains lists every regulatory domain in stable order.
var Domains = []Domain{
	DomainCorporate, DomainTaxGST, DomainTaxIncome, DomainLabour,
	DomainFEMA, DomainLicenses, DomainStatutory,
}

func (d Domain) Valid() bool {
	switch d {
	case DomainCorporate, DomainTaxGST, DomainTaxIncome, DomainLabour,
		DomainFEMA, DomainLicenses, DomainStatutory:
		return true
	}
	return false
}

// Frequency describes how often an obligation recurs.
type Frequency string

const (
	FrequencyOneTime    Frequency = "ONE_TIME"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencyAnnual     Frequency = "ANNUAL"
	FrequencyEventBased Frequency = "EVENT_BASED"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOneTime, FrequencyMonthly, FrequencyQuarterly,
		FrequencyAnnual, FrequencyEventBased:
		return true
	}
	return false
}

// DueDateStrategy names a closed date-computation strategy. Due dates are
// derived by code selected on this enum, never by evaluating stored
// expressions.
type DueDateStrategy string

const (
	// StrategyDaysAfterPeriodEnd: due OffsetDays after the end of the
	// frequency period (e.g. GSTR-3B on the 20th after month end).
	StrategyDaysAfterPeriodEnd DueDateStrategy = "DAYS_AFTER_PERIOD_END"
	// StrategyFixedDate: due on a fixed calendar date each year
	// (e.g. income tax return on 31 July).
	StrategyFixedDate DueDateStrategy = "FIXED_DATE"
	// StrategyDaysAfterEvent: due OffsetDays after the anchoring event. For
	// ONE_TIME rules the event is incorporation; for EVENT_BASED rules it is
	// the linked service's due date.
	StrategyDaysAfterEvent DueDateStrategy = "DAYS_AFTER_EVENT"
	// StrategyServiceDue: due exactly on the linked service's own due date.
	StrategyServiceDue DueDateStrategy = "SERVICE_DUE"
)

// DueDateLogic parameterizes a strategy. Only the fields the strategy reads
// are meaningful.
type DueDateLogic struct {
	Strategy   DueDateStrategy `json:"strategy"`
	OffsetDays int             `json:"offsetDays,omitempty"`
	Month      time.Month      `json:"month,omitempty"`
	Day        int             `json:"day,omitempty"`
}

func (l DueDateLogic) validate() error {
	switch l.Strategy {
	case StrategyDaysAfterPeriodEnd, StrategyDaysAfterEvent:
		if l.OffsetDays < 0 {
			return fmt.Errorf("offsetDays must be >= 0")
		}
	case StrategyFixedDate:
		if l.Month < time.January || l.Month > time.December {
			return fmt.Errorf("fixed date month out of range")
		}
		if l.Day < 1 || l.Day > 31 {
			return fmt.Errorf("fixed date day out of range")
		}
	case StrategyServiceDue:
	default:
		return fmt.Errorf("unknown due date strategy %q", l.Strategy)
	}
	return nil
}

// Applicability is the multi-criteria predicate deciding whether a rule
// applies to an entity. Nil pointer fields mean "no constraint".
type Applicability struct {
	EntityTypes   []string         `json:"entityTypes"`
	TurnoverMin   *decimal.Decimal `json:"turnoverMin,omitempty"`
	TurnoverMax   *decimal.Decimal `json:"turnoverMax,omitempty"`
	MinEmployees  *int             `json:"minEmployees,omitempty"`
	RequiresGST   bool             `json:"requiresGst"`
	RequiresPF    bool             `json:"requiresPf"`
	RequiresESI   bool             `json:"requiresEsi"`
	// RequiresForeign limits the rule to entities with foreign transactions
	// (FEMA filings).
	RequiresForeign bool `json:"requiresForeign"`
	StateSpecific bool             `json:"stateSpecific"`
	States        []string         `json:"states,omitempty"`
}

// RedTriggers are the explicit conditions that force a requirement RED.
type RedTriggers struct {
	// DaysOverdue is the lateness threshold beyond grace; 0 means any overdue
	// day is RED.
	DaysOverdue int `json:"daysOverdue"`
	// MissingDocuments lists document types whose absence (or pending
	// approval) is RED on its own.
	MissingDocuments []string `json:"missingDocuments,omitempty"`
	// Dependencies lists rule IDs that must be met; an unmet dependency is
	// RED. A dependency is unmet when it is RED, unevaluated, or not
	// applicable to the entity.
	Dependencies []string `json:"dependencies,omitempty"`
}

// ComplianceRule is one versioned obligation definition. A rule never mutates
// in place: administrative edits retire the current version and insert the
// next one, so calculations recorded against an old version stay reproducible.
type ComplianceRule struct {
	RuleID      string `json:"ruleId"`
	Version     int    `json:"version"`
	Domain      Domain `json:"domain"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Applicability Applicability `json:"applicability"`

	Frequency Frequency    `json:"frequency"`
	DueDate   DueDateLogic `json:"dueDate"`
	GraceDays int          `json:"graceDays"`

	PenaltyPerDay decimal.Decimal `json:"penaltyPerDay"`
	MaxPenalty    decimal.Decimal `json:"maxPenalty"`

	// CriticalityScore weights this rule in risk aggregation, 1..10.
	CriticalityScore   int         `json:"criticalityScore"`
	AmberThresholdDays int         `json:"amberThresholdDays"`
	RedTriggers        RedTriggers `json:"redTriggers"`

	RequiredDocuments []string `json:"requiredDocuments,omitempty"`
	DependsOnRules    []string `json:"dependsOnRules,omitempty"`

	// FilingType links filing history records to this rule for period
	// anchoring. Empty means the rule has no filing trail.
	FilingType string `json:"filingType,omitempty"`
	// ServiceKey links an active service to EVENT_BASED rules.
	ServiceKey string `json:"serviceKey,omitempty"`

	// RecommendedAction is the remediation text surfaced to callers.
	RecommendedAction string `json:"recommendedAction"`

	EffectiveFrom  time.Time  `json:"effectiveFrom"`
	EffectiveUntil *time.Time `json:"effectiveUntil,omitempty"`
	IsActive       bool       `json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate rejects malformed rule definitions before they reach the catalog.
func (r *ComplianceRule) Validate() error {
	if r.RuleID == "" {
		return fmt.Errorf("ruleId is required")
	}
	if !r.Domain.Valid() {
		return fmt.Errorf("unknown domain %q", r.Domain)
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q", r.Frequency)
	}
	if err := r.DueDate.validate(); err != nil {
		return fmt.Errorf("dueDate: %w", err)
	}
	if r.Frequency == FrequencyEventBased && r.ServiceKey == "" {
		return fmt.Errorf("event-based rules require a serviceKey")
	}
	if r.GraceDays < 0 {
		return fmt.Errorf("graceDays must be >= 0")
	}
	if r.PenaltyPerDay.IsNegative() || r.MaxPenalty.IsNegative() {
		return fmt.Errorf("penalties must not be negative")
	}
	if r.CriticalityScore < 1 || r.CriticalityScore > 10 {
		return fmt.Errorf("criticalityScore must be in 1..10")
	}
	if r.AmberThresholdDays < 0 {
		return fmt.Errorf("amberThresholdDays must be >= 0")
	}
	if r.RedTriggers.DaysOverdue < 0 {
		return fmt.Errorf("redTriggers.daysOverdue must be >= 0")
	}
	if len(r.Applicability.EntityTypes) == 0 {
		return fmt.Errorf("applicability.entityTypes must not be empty")
	}
	if r.Applicability.StateSpecific && len(r.Applicability.States) == 0 {
		return fmt.Errorf("state-specific rules must list applicable states")
	}
	if r.Applicability.TurnoverMin != nil && r.Applicability.TurnoverMax != nil &&
		r.Applicability.TurnoverMin.GreaterThan(*r.Applicability.TurnoverMax) {
		return fmt.Errorf("turnoverMin exceeds turnoverMax")
	}
	for _, dep := range r.DependsOnRules {
		if dep == r.RuleID {
			return fmt.Errorf("rule cannot depend on itself")
		}
	}
	return nil
}

// EffectiveAt reports whether this version is live at the given instant.
func (r *ComplianceRule) EffectiveAt(t time.Time) bool {
	if !r.IsActive {
		return false
	}
	if t.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveUntil != nil && !t.Before(*r.EffectiveUntil) {
		return false
	}
	return true
}
