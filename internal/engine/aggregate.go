package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"complyflow/internal/catalog/models"
)

// upcomingWindowDays bounds the "upcoming" count: requirements due within
// this many days.
const upcomingWindowDays = 7

// DomainState aggregates the requirement statuses of one regulatory domain.
type DomainState struct {
	Domain          models.Domain   `json:"domain"`
	State           State           `json:"state"`
	RiskScore       decimal.Decimal `json:"riskScore"`
	ActiveCount     int             `json:"activeCount"`
	OverdueCount    int             `json:"overdueCount"`
	UpcomingCount   int             `json:"upcomingCount"`
	PenaltyExposure decimal.Decimal `json:"penaltyExposure"`
}

// Result is the complete outcome of one calculation run: every requirement
// status plus the domain and entity rollups.
type Result struct {
	Requirements []RequirementStatus `json:"requirements"`
	Domains      []DomainState       `json:"domains"`

	OverallState         State           `json:"overallState"`
	OverallRiskScore     decimal.Decimal `json:"overallRiskScore"`
	TotalPenaltyExposure decimal.Decimal `json:"totalPenaltyExposure"`
	TotalOverdueItems    int             `json:"totalOverdueItems"`
	TotalUpcomingItems   int             `json:"totalUpcomingItems"`

	NextCriticalDeadline *time.Time `json:"nextCriticalDeadline,omitempty"`
	NextCriticalAction   string     `json:"nextCriticalAction,omitempty"`
	NextCriticalRuleID   string     `json:"nextCriticalRuleId,omitempty"`

	DataCompletenessScore decimal.Decimal `json:"dataCompletenessScore"`

	RulesApplied int      `json:"rulesApplied"`
	Warnings     []string `json:"warnings,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

var (
	amberWeight = decimal.NewFromFloat(0.5)
	hundred     = decimal.NewFromInt(100)
)

func severityWeight(s State) decimal.Decimal {
	switch s {
	case StateRed:
		return decimal.NewFromInt(1)
	case StateAmber:
		return amberWeight
	default:
		return decimal.Zero
	}
}

// aggregate rolls requirement statuses up into domain states and the entity
// rollup.
func (ev *evaluator) aggregate(statuses []RequirementStatus) *Result {
	res := &Result{
		Requirements:         statuses,
		OverallState:         StateGreen,
		OverallRiskScore:     decimal.Zero,
		TotalPenaltyExposure: decimal.Zero,
		RulesApplied:         ev.evaluated,
		Warnings:             ev.warnings,
		Errors:               ev.errs,
	}

	byDomain := make(map[models.Domain][]RequirementStatus)
	for _, st := range statuses {
		byDomain[st.Domain] = append(byDomain[st.Domain], st)
	}

	// Entity risk is the requirement-count-weighted mean over domains that
	// have applicable requirements; empty domains stay out of the mean.
	weightedRiskSum := decimal.Zero
	totalRequirements := 0

	for _, domain := range models.Domains {
		group := byDomain[domain]
		ds := aggregateDomain(domain, group)
		res.Domains = append(res.Domains, ds)

		res.OverallState = Worse(res.OverallState, ds.State)
		res.TotalPenaltyExposure = res.TotalPenaltyExposure.Add(ds.PenaltyExposure)
		res.TotalOverdueItems += ds.OverdueCount
		res.TotalUpcomingItems += ds.UpcomingCount

		if ds.ActiveCount > 0 {
			n := decimal.NewFromInt(int64(ds.ActiveCount))
			weightedRiskSum = weightedRiskSum.Add(ds.RiskScore.Mul(n))
			totalRequirements += ds.ActiveCount
		}
	}

	if totalRequirements > 0 {
		res.OverallRiskScore = weightedRiskSum.
			Div(decimal.NewFromInt(int64(totalRequirements))).
			Round(2)
	}

	if next := nextCritical(statuses); next != nil {
		res.NextCriticalDeadline = next.DueDate
		res.NextCriticalAction = next.Action
		res.NextCriticalRuleID = next.RuleID
	}

	res.DataCompletenessScore = completeness(ev.evaluated, ev.attempted)
	return res
}

// aggregateDomain computes worst-of state and the criticality-weighted risk
// score for one domain. A domain with no applicable requirements is GREEN
// with a zero score by convention.
func aggregateDomain(domain models.Domain, group []RequirementStatus) DomainState {
	ds := DomainState{
		Domain:          domain,
		State:           StateGreen,
		RiskScore:       decimal.Zero,
		PenaltyExposure: decimal.Zero,
	}
	if len(group) == 0 {
		return ds
	}

	weighted := decimal.Zero
	criticalitySum := decimal.Zero
	for _, st := range group {
		ds.State = Worse(ds.State, st.State)
		ds.ActiveCount++
		if st.DaysOverdue > 0 {
			ds.OverdueCount++
		}
		if st.DaysUntilDue > 0 && st.DaysUntilDue <= upcomingWindowDays {
			ds.UpcomingCount++
		}
		ds.PenaltyExposure = ds.PenaltyExposure.Add(st.PenaltyExposure)

		crit := decimal.NewFromInt(int64(st.CriticalityScore))
		weighted = weighted.Add(crit.Mul(severityWeight(st.State)))
		criticalitySum = criticalitySum.Add(crit)
	}

	if criticalitySum.IsPositive() {
		ds.RiskScore = weighted.Div(criticalitySum).Mul(hundred).Round(2)
	}
	return ds
}

// nextCritical picks the requirement with the earliest due date among all
// non-GREEN requirements; ties break by criticality descending, then rule ID
// ascending for determinism.
func nextCritical(statuses []RequirementStatus) *RequirementStatus {
	var candidates []RequirementStatus
	for _, st := range statuses {
		if st.State != StateGreen && st.DueDate != nil {
			candidates = append(candidates, st)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
		if a.CriticalityScore != b.CriticalityScore {
			return a.CriticalityScore > b.CriticalityScore
		}
		return a.RuleID < b.RuleID
	})
	return &candidates[0]
}

// completeness is evaluated/attempted as a percentage; an entity with
// nothing attempted is fully complete by convention.
func completeness(evaluated, attempted int) decimal.Decimal {
	if attempted == 0 {
		return hundred
	}
	return decimal.NewFromInt(int64(evaluated)).
		Div(decimal.NewFromInt(int64(attempted))).
		Mul(hundred).
		Round(2)
}
