package differ

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"complyflow/internal/alerts/models"
	"complyflow/internal/engine"
)

const criticalThreshold = 8

// Differ derives alerts from the transition between two calculation results.
// PenaltyThreshold is the absolute exposure a single requirement must cross
// to raise PENALTY_RISK; zero disables that alert type.
type Differ struct {
	PenaltyThreshold decimal.Decimal
}

func New(penaltyThreshold decimal.Decimal) *Differ {
	return &Differ{PenaltyThreshold: penaltyThreshold}
}

// Diff compares the new result to the prior one. prev is nil on an entity's
// first calculation; a requirement absent from prev is treated as previously
// GREEN with zero exposure.
func (d *Differ) Diff(entityID string, prev, next *engine.Result, now time.Time) []models.Alert {
	var prior map[string]engine.RequirementStatus
	if prev != nil {
		prior = make(map[string]engine.RequirementStatus, len(prev.Requirements))
		for _, req := range prev.Requirements {
			prior[req.RuleID] = req
		}
	}

	var out []models.Alert
	for _, req := range next.Requirements {
		prevState := engine.StateGreen
		prevExposure := decimal.Zero
		if p, ok := prior[req.RuleID]; ok {
			prevState = p.State
			prevExposure = p.PenaltyExposure
		}

		if req.State == engine.StateRed && prevState != engine.StateRed {
			out = append(out, d.build(entityID, req, models.TypeOverdue, now,
				fmt.Sprintf("%s is now RED", req.RuleID), redMessage(req)))
		}
		if req.State == engine.StateAmber && prevState == engine.StateGreen {
			out = append(out, d.build(entityID, req, models.TypeUpcoming, now,
				fmt.Sprintf("%s is due soon", req.RuleID),
				fmt.Sprintf("due in %d days: %s", req.DaysUntilDue, req.Action)))
		}
		if engine.Severity(req.State) > engine.Severity(prevState) && prevState != engine.StateGreen {
			// GREEN-to-worse transitions are already covered by OVERDUE
			// and UPCOMING above.
			out = append(out, d.build(entityID, req, models.TypeStateChange, now,
				fmt.Sprintf("%s escalated from %s to %s", req.RuleID, prevState, req.State),
				req.Action))
		}
		if d.PenaltyThreshold.IsPositive() &&
			prevExposure.LessThan(d.PenaltyThreshold) &&
			req.PenaltyExposure.GreaterThanOrEqual(d.PenaltyThreshold) {
			out = append(out, d.build(entityID, req, models.TypePenaltyRisk, now,
				fmt.Sprintf("%s penalty exposure at %s", req.RuleID, req.PenaltyExposure.StringFixed(2)),
				fmt.Sprintf("exposure crossed the %s threshold", d.PenaltyThreshold.StringFixed(2))))
		}
	}
	return out
}

func (d *Differ) build(entityID string, req engine.RequirementStatus, typ models.AlertType, now time.Time, title, message string) models.Alert {
	return models.Alert{
		EntityID:    entityID,
		RuleID:      req.RuleID,
		Type:        typ,
		Severity:    severityFor(typ, req),
		Title:       title,
		Message:     message,
		Status:      models.StatusActive,
		TriggeredAt: now,
	}
}

func severityFor(typ models.AlertType, req engine.RequirementStatus) models.Severity {
	switch typ {
	case models.TypeOverdue:
		return redSeverity(req)
	case models.TypeStateChange:
		if req.State == engine.StateRed {
			return redSeverity(req)
		}
		return models.SeverityMedium
	case models.TypePenaltyRisk:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func redSeverity(req engine.RequirementStatus) models.Severity {
	if req.CriticalityScore >= criticalThreshold {
		return models.SeverityCritical
	}
	return models.SeverityHigh
}

func redMessage(req engine.RequirementStatus) string {
	if len(req.Blockers) > 0 {
		return req.Blockers[0]
	}
	if req.DaysOverdue > 0 {
		return fmt.Sprintf("overdue by %d days, exposure %s", req.DaysOverdue, req.PenaltyExposure.StringFixed(2))
	}
	return req.Action
}
