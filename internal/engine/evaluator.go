package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"complyflow/internal/catalog/models"
)

// RequirementStatus is the outcome of evaluating one applicable rule against
// one input snapshot. Owned by the calculation that produced it; immutable.
type RequirementStatus struct {
	RuleID           string        `json:"ruleId"`
	RuleVersion      int           `json:"ruleVersion"`
	Domain           models.Domain `json:"domain"`
	Title            string        `json:"title"`
	State            State         `json:"state"`
	DueDate          *time.Time    `json:"dueDate,omitempty"`
	DaysUntilDue     int           `json:"daysUntilDue"`
	DaysOverdue      int           `json:"daysOverdue"`
	PenaltyExposure  decimal.Decimal `json:"penaltyExposure"`
	// ProjectedPenalty is the early-warning exposure shown for AMBER
	// requirements. Informational only; never added to totals.
	ProjectedPenalty decimal.Decimal `json:"projectedPenalty"`
	Priority         string          `json:"priority"`
	Blockers         []string        `json:"blockers,omitempty"`
	Action           string          `json:"action"`
	CriticalityScore int             `json:"criticalityScore"`
}

// errMissingField marks an input gap: the rule stays unevaluated with a
// warning instead of failing the calculation or forcing RED.
type errMissingField struct{ field string }

func (e errMissingField) Error() string { return "missing input field: " + e.field }

// disposition tracks what happened to each rule within one run; the
// dependency check and the completeness score both read it.
type disposition int

const (
	dispositionEvaluated disposition = iota
	dispositionNotApplicable
	dispositionUnevaluated
	dispositionError
)

// evaluator is the per-run working state. It is built fresh per calculation
// and never shared.
type evaluator struct {
	in  *Input
	now time.Time

	statuses     map[string]*RequirementStatus
	dispositions map[string]disposition
	warnings     []string
	errs         []string
	attempted    int
	evaluated    int
}

// Evaluate runs the full rule set against one input snapshot and aggregates
// per-domain and entity-level state. Pure: no I/O, no side effects, and
// deterministic for a fixed (rules, input, now).
func Evaluate(rules []*models.ComplianceRule, in *Input, now time.Time) *Result {
	ev := &evaluator{
		in:           in,
		now:          dateOnly(now),
		statuses:     make(map[string]*RequirementStatus, len(rules)),
		dispositions: make(map[string]disposition, len(rules)),
	}

	ordered, cyclic := orderByDependency(rules)
	for _, rule := range cyclic {
		ev.dispositions[rule.RuleID] = dispositionError
		ev.errs = append(ev.errs, fmt.Sprintf("rule %s: dependency cycle", rule.RuleID))
	}

	var statuses []RequirementStatus
	for _, rule := range ordered {
		status := ev.evaluateRule(rule)
		if status != nil {
			statuses = append(statuses, *status)
		}
	}

	return ev.aggregate(statuses)
}

// evaluateRule applies one rule: applicability, due-date derivation,
// classification, penalty. Returns nil when the rule produced no requirement
// (not applicable, missing data, or malformed).
func (ev *evaluator) evaluateRule(rule *models.ComplianceRule) *RequirementStatus {
	applicable, err := ev.applicable(rule)
	var missing errMissingField
	if errors.As(err, &missing) {
		// The rule would need this field to decide applicability at all, so
		// it counts as attempted for the completeness score.
		ev.attempted++
		ev.dispositions[rule.RuleID] = dispositionUnevaluated
		ev.warnings = append(ev.warnings, fmt.Sprintf("rule %s: %s", rule.RuleID, missing.Error()))
		return nil
	}
	if !applicable {
		ev.dispositions[rule.RuleID] = dispositionNotApplicable
		return nil
	}

	ev.attempted++
	status, err := ev.classify(rule)
	if err != nil {
		if errors.As(err, &missing) {
			ev.dispositions[rule.RuleID] = dispositionUnevaluated
			ev.warnings = append(ev.warnings, fmt.Sprintf("rule %s: %s", rule.RuleID, missing.Error()))
		} else {
			ev.dispositions[rule.RuleID] = dispositionError
			ev.errs = append(ev.errs, fmt.Sprintf("rule %s: %s", rule.RuleID, err.Error()))
		}
		return nil
	}

	ev.evaluated++
	ev.dispositions[rule.RuleID] = dispositionEvaluated
	ev.statuses[rule.RuleID] = status
	return status
}

// applicable runs the multi-criteria applicability predicate. A missing input
// field that a specified criterion needs surfaces as errMissingField.
func (ev *evaluator) applicable(rule *models.ComplianceRule) (bool, error) {
	app := rule.Applicability

	typeMatch := false
	for _, t := range app.EntityTypes {
		if t == ev.in.EntityType {
			typeMatch = true
			break
		}
	}
	if !typeMatch {
		return false, nil
	}

	if app.TurnoverMin != nil || app.TurnoverMax != nil {
		if ev.in.AnnualTurnover == nil {
			return false, errMissingField{field: "annual turnover"}
		}
		if app.TurnoverMin != nil && ev.in.AnnualTurnover.LessThan(*app.TurnoverMin) {
			return false, nil
		}
		if app.TurnoverMax != nil && ev.in.AnnualTurnover.GreaterThan(*app.TurnoverMax) {
			return false, nil
		}
	}

	if app.MinEmployees != nil {
		if ev.in.EmployeeCount == nil {
			return false, errMissingField{field: "employee count"}
		}
		if *ev.in.EmployeeCount < *app.MinEmployees {
			return false, nil
		}
	}

	if app.RequiresGST && !ev.in.GSTRegistered {
		return false, nil
	}
	if app.RequiresPF && !ev.in.PFRegistered {
		return false, nil
	}
	if app.RequiresESI && !ev.in.ESIRegistered {
		return false, nil
	}
	if app.RequiresForeign && !ev.in.HasForeignTransactions {
		return false, nil
	}

	if app.StateSpecific {
		if ev.in.State == "" {
			return false, errMissingField{field: "entity state"}
		}
		stateMatch := false
		for _, s := range app.States {
			if s == ev.in.State {
				stateMatch = true
				break
			}
		}
		if !stateMatch {
			return false, nil
		}
	}

	if rule.Frequency == models.FrequencyEventBased {
		// Event-based obligations only exist while the linked service is
		// engaged.
		if _, ok := ev.in.ServiceByKey(rule.ServiceKey); !ok {
			return false, nil
		}
	}

	return true, nil
}

// classify derives the due date and assigns GREEN/AMBER/RED, most severe
// first.
func (ev *evaluator) classify(rule *models.ComplianceRule) (*RequirementStatus, error) {
	status := &RequirementStatus{
		RuleID:           rule.RuleID,
		RuleVersion:      rule.Version,
		Domain:           rule.Domain,
		Title:            rule.Title,
		Action:           rule.RecommendedAction,
		CriticalityScore: rule.CriticalityScore,
		PenaltyExposure:  decimal.Zero,
		ProjectedPenalty: decimal.Zero,
	}

	if done, err := ev.satisfied(rule); err != nil {
		return nil, err
	} else if done {
		status.State = StateGreen
		status.Priority = priorityFor(StateGreen, rule.CriticalityScore)
		return status, nil
	}

	if ev.in.IncorporationDate.IsZero() {
		return nil, errMissingField{field: "incorporation date"}
	}

	due, err := deriveDueDate(rule, ev.in)
	if err != nil {
		return nil, err
	}
	status.DueDate = &due
	status.DaysUntilDue = daysBetween(ev.now, due)

	// Lateness accrues only after the grace window.
	graceEnd := due.AddDate(0, 0, rule.GraceDays)
	if overdue := daysBetween(graceEnd, ev.now); overdue > 0 {
		status.DaysOverdue = overdue
	}

	var blockers []string
	for _, doc := range rule.RequiredDocuments {
		if !ev.in.DocumentPresent(doc, ev.now) {
			blockers = append(blockers, "document not approved: "+doc)
		}
	}

	state := StateGreen
	switch {
	case status.DaysOverdue > rule.RedTriggers.DaysOverdue:
		state = StateRed
		blockers = append(blockers, fmt.Sprintf("overdue by %d days", status.DaysOverdue))
	case ev.redDocumentMissing(rule, &blockers):
		state = StateRed
	case ev.redDependencyUnmet(rule, &blockers):
		state = StateRed
	case status.DaysUntilDue <= rule.AmberThresholdDays:
		state = StateAmber
	}

	status.State = state
	status.Blockers = blockers
	status.Priority = priorityFor(state, rule.CriticalityScore)

	if state == StateRed && status.DaysOverdue > 0 {
		status.PenaltyExposure = clampPenalty(rule, status.DaysOverdue)
	}
	if state == StateAmber {
		status.ProjectedPenalty = clampPenalty(rule, rule.AmberThresholdDays)
	}
	return status, nil
}

// satisfied reports whether the obligation's current cycle is already met:
// a ONE_TIME rule with any filing on record, or an EVENT_BASED rule whose
// service completed.
func (ev *evaluator) satisfied(rule *models.ComplianceRule) (bool, error) {
	switch rule.Frequency {
	case models.FrequencyOneTime:
		if rule.FilingType != "" && ev.in.HasFiling(rule.FilingType) {
			return true, nil
		}
	case models.FrequencyEventBased:
		svc, ok := ev.in.ServiceByKey(rule.ServiceKey)
		if !ok {
			return false, fmt.Errorf("service %q not engaged", rule.ServiceKey)
		}
		if svc.Status == ServiceStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (ev *evaluator) redDocumentMissing(rule *models.ComplianceRule, blockers *[]string) bool {
	missing := false
	for _, doc := range rule.RedTriggers.MissingDocuments {
		if !ev.in.DocumentPresent(doc, ev.now) {
			missing = true
			*blockers = append(*blockers, "required document missing: "+doc)
		}
	}
	return missing
}

// redDependencyUnmet applies the conservative reading: a dependency is unmet
// when it is RED, unevaluated, errored, inapplicable, or absent from the
// active catalog. Only an evaluated GREEN or AMBER dependency is met.
func (ev *evaluator) redDependencyUnmet(rule *models.ComplianceRule, blockers *[]string) bool {
	unmet := false
	for _, dep := range rule.RedTriggers.Dependencies {
		d, known := ev.dispositions[dep]
		if known && d == dispositionEvaluated && ev.statuses[dep].State != StateRed {
			continue
		}
		unmet = true
		*blockers = append(*blockers, "dependency not met: "+dep)
	}
	return unmet
}

// clampPenalty computes min(penaltyPerDay × days, maxPenalty), never
// negative.
func clampPenalty(rule *models.ComplianceRule, days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	exposure := rule.PenaltyPerDay.Mul(decimal.NewFromInt(int64(days)))
	if exposure.GreaterThan(rule.MaxPenalty) {
		return rule.MaxPenalty
	}
	return exposure
}
