package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complyflow/internal/catalog/models"
)

// now is fixed for all evaluator tests so due-date math is exact.
var testNow = date(2025, time.June, 15)

func gstRule(offsetDays int) *models.ComplianceRule {
	return &models.ComplianceRule{
		RuleID:  "GST_GSTR3B",
		Version: 1,
		Domain:  models.DomainTaxGST,
		Title:   "GSTR-3B monthly return",
		Applicability: models.Applicability{
			EntityTypes: []string{"PRIVATE_LIMITED"},
			RequiresGST: true,
		},
		Frequency:          models.FrequencyMonthly,
		DueDate:            models.DueDateLogic{Strategy: models.StrategyDaysAfterPeriodEnd, OffsetDays: offsetDays},
		PenaltyPerDay:      decimal.NewFromInt(50),
		MaxPenalty:         decimal.NewFromInt(10000),
		CriticalityScore:   9,
		AmberThresholdDays: 7,
		FilingType:         "GSTR3B",
		RecommendedAction:  "File GSTR-3B for the pending period.",
	}
}

func labourServiceRule() *models.ComplianceRule {
	return &models.ComplianceRule{
		RuleID:  "LABOUR_AUDIT",
		Version: 1,
		Domain:  models.DomainLabour,
		Title:   "Labour audit",
		Applicability: models.Applicability{
			EntityTypes: []string{"PRIVATE_LIMITED"},
		},
		Frequency:          models.FrequencyEventBased,
		DueDate:            models.DueDateLogic{Strategy: models.StrategyServiceDue},
		ServiceKey:         "LABOUR_AUDIT",
		PenaltyPerDay:      decimal.NewFromInt(10),
		MaxPenalty:         decimal.NewFromInt(1000),
		CriticalityScore:   5,
		AmberThresholdDays: 7,
		RecommendedAction:  "Complete the labour audit.",
	}
}

// baseInput is a GST-registered private limited company incorporated in 2024
// with its April GSTR-3B filed.
func baseInput() *Input {
	turnover := decimal.NewFromInt(50000000)
	employees := 25
	labourDue := date(2025, time.August, 14)
	return &Input{
		EntityID:          "ent-1",
		EntityType:        "PRIVATE_LIMITED",
		IncorporationDate: date(2024, time.January, 10),
		State:             "KA",
		AnnualTurnover:    &turnover,
		EmployeeCount:     &employees,
		GSTRegistered:     true,
		PFRegistered:      true,
		Services: []ServiceSnapshot{
			{ServiceKey: "LABOUR_AUDIT", Status: "ACTIVE", DueDate: &labourDue},
		},
		Filings: []FilingSnapshot{
			{Type: "GSTR3B", FiledAt: date(2025, time.May, 18), PeriodStart: date(2025, time.April, 1), PeriodEnd: date(2025, time.April, 30)},
		},
		CapturedAt: testNow,
	}
}

func TestEvaluateUpcomingGSTScenario(t *testing.T) {
	// GST due June 20 (5 days out, amber threshold 7); labour audit due in
	// 60 days stays GREEN.
	rules := []*models.ComplianceRule{gstRule(20), labourServiceRule()}
	res := Evaluate(rules, baseInput(), testNow)

	require.Len(t, res.Requirements, 2)
	assert.Equal(t, StateAmber, res.OverallState)
	assert.Equal(t, 1, res.TotalUpcomingItems)
	assert.Equal(t, 0, res.TotalOverdueItems)
	assert.Equal(t, "File GSTR-3B for the pending period.", res.NextCriticalAction)
	assert.Equal(t, "GST_GSTR3B", res.NextCriticalRuleID)
	require.NotNil(t, res.NextCriticalDeadline)
	assert.Equal(t, date(2025, time.June, 20), *res.NextCriticalDeadline)
	assert.True(t, res.TotalPenaltyExposure.IsZero())
	assert.True(t, res.DataCompletenessScore.Equal(decimal.NewFromInt(100)))
}

func TestEvaluateOverdueGSTScenario(t *testing.T) {
	// Offset 5 puts the GST due date at June 5: ten days overdue at 50/day.
	rules := []*models.ComplianceRule{gstRule(5), labourServiceRule()}
	res := Evaluate(rules, baseInput(), testNow)

	assert.Equal(t, StateRed, res.OverallState)
	assert.Equal(t, 1, res.TotalOverdueItems)
	assert.True(t, res.TotalPenaltyExposure.Equal(decimal.NewFromInt(500)),
		"expected 500, got %s", res.TotalPenaltyExposure)

	var gst *RequirementStatus
	for i := range res.Requirements {
		if res.Requirements[i].RuleID == "GST_GSTR3B" {
			gst = &res.Requirements[i]
		}
	}
	require.NotNil(t, gst)
	assert.Equal(t, StateRed, gst.State)
	assert.Equal(t, 10, gst.DaysOverdue)
	assert.Equal(t, "critical", gst.Priority)
}

func TestEvaluateMonotonicSeverity(t *testing.T) {
	// Above the RED overdue threshold the state is RED regardless of other
	// fields; at or below it the overdue trigger does not fire.
	rule := gstRule(5)
	rule.RedTriggers.DaysOverdue = 10

	t.Run("beyond threshold is red", func(t *testing.T) {
		res := Evaluate([]*models.ComplianceRule{rule}, baseInput(), testNow.AddDate(0, 0, 1))
		require.Len(t, res.Requirements, 1)
		assert.Equal(t, StateRed, res.Requirements[0].State)
	})

	t.Run("at threshold is not red", func(t *testing.T) {
		res := Evaluate([]*models.ComplianceRule{rule}, baseInput(), testNow)
		require.Len(t, res.Requirements, 1)
		assert.NotEqual(t, StateRed, res.Requirements[0].State)
	})
}

func TestEvaluatePenaltyClamp(t *testing.T) {
	rule := gstRule(20)
	rule.PenaltyPerDay = decimal.NewFromInt(100)
	rule.MaxPenalty = decimal.NewFromInt(5000)

	assert.True(t, clampPenalty(rule, 60).Equal(decimal.NewFromInt(5000)))
	assert.True(t, clampPenalty(rule, 30).Equal(decimal.NewFromInt(3000)))
	assert.True(t, clampPenalty(rule, 0).IsZero())
}

func TestEvaluateGraceDays(t *testing.T) {
	// Due June 5, grace 15: not yet overdue on June 15.
	rule := gstRule(5)
	rule.GraceDays = 15
	res := Evaluate([]*models.ComplianceRule{rule}, baseInput(), testNow)

	require.Len(t, res.Requirements, 1)
	assert.Equal(t, 0, res.Requirements[0].DaysOverdue)
	assert.NotEqual(t, StateRed, res.Requirements[0].State)
}

func TestEvaluateNotApplicableSkippedSilently(t *testing.T) {
	rule := gstRule(20)
	in := baseInput()
	in.GSTRegistered = false

	res := Evaluate([]*models.ComplianceRule{rule}, in, testNow)
	assert.Empty(t, res.Requirements)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Errors)
	assert.Equal(t, StateGreen, res.OverallState)
	assert.True(t, res.DataCompletenessScore.Equal(decimal.NewFromInt(100)))
}

func TestEvaluateMissingDataDegradesCompleteness(t *testing.T) {
	pf := &models.ComplianceRule{
		RuleID:  "PF_ECR",
		Version: 1,
		Domain:  models.DomainLabour,
		Title:   "PF monthly contribution",
		Applicability: models.Applicability{
			EntityTypes:  []string{"PRIVATE_LIMITED"},
			MinEmployees: intPtr(20),
		},
		Frequency:          models.FrequencyMonthly,
		DueDate:            models.DueDateLogic{Strategy: models.StrategyDaysAfterPeriodEnd, OffsetDays: 15},
		PenaltyPerDay:      decimal.NewFromInt(100),
		MaxPenalty:         decimal.NewFromInt(25000),
		CriticalityScore:   8,
		AmberThresholdDays: 7,
		FilingType:         "PF_ECR",
		RecommendedAction:  "Deposit PF contributions.",
	}
	rules := []*models.ComplianceRule{gstRule(20), pf}

	in := baseInput()
	in.EmployeeCount = nil
	res := Evaluate(rules, in, testNow)

	// PF is unevaluated with a warning; GST still evaluates normally.
	require.Len(t, res.Requirements, 1)
	assert.Equal(t, "GST_GSTR3B", res.Requirements[0].RuleID)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "employee count")
	assert.True(t, res.DataCompletenessScore.Equal(decimal.NewFromInt(50)),
		"expected 50, got %s", res.DataCompletenessScore)
	// The GST requirement's own state is unchanged by the gap.
	assert.Equal(t, StateAmber, res.Requirements[0].State)
}

func TestEvaluateRedViaMissingDocument(t *testing.T) {
	rule := gstRule(20)
	rule.RedTriggers.MissingDocuments = []string{"GST_CERTIFICATE"}

	t.Run("absent document forces red", func(t *testing.T) {
		res := Evaluate([]*models.ComplianceRule{rule}, baseInput(), testNow)
		require.Len(t, res.Requirements, 1)
		assert.Equal(t, StateRed, res.Requirements[0].State)
		assert.Contains(t, res.Requirements[0].Blockers, "required document missing: GST_CERTIFICATE")
		// RED without overdue days carries no penalty exposure.
		assert.True(t, res.Requirements[0].PenaltyExposure.IsZero())
	})

	t.Run("approved document clears the trigger", func(t *testing.T) {
		in := baseInput()
		in.Documents = []DocumentSnapshot{{Type: "GST_CERTIFICATE", Uploaded: true, Approved: true}}
		res := Evaluate([]*models.ComplianceRule{rule}, in, testNow)
		require.Len(t, res.Requirements, 1)
		assert.Equal(t, StateAmber, res.Requirements[0].State)
	})

	t.Run("expired document counts as missing", func(t *testing.T) {
		expired := date(2025, time.January, 1)
		in := baseInput()
		in.Documents = []DocumentSnapshot{{Type: "GST_CERTIFICATE", Uploaded: true, Approved: true, ExpiresAt: &expired}}
		res := Evaluate([]*models.ComplianceRule{rule}, in, testNow)
		require.Len(t, res.Requirements, 1)
		assert.Equal(t, StateRed, res.Requirements[0].State)
	})
}

func TestEvaluateDependencyTriggers(t *testing.T) {
	// MGT-7 goes RED when its AOC-4 dependency is RED, regardless of its own
	// timing. Rules are passed dependents-first to prove ordering is
	// topological, not positional.
	aoc4 := &models.ComplianceRule{
		RuleID:  "ROC_AOC4",
		Version: 1,
		Domain:  models.DomainCorporate,
		Title:   "AOC-4 filing",
		Applicability: models.Applicability{
			EntityTypes: []string{"PRIVATE_LIMITED"},
		},
		Frequency:          models.FrequencyAnnual,
		DueDate:            models.DueDateLogic{Strategy: models.StrategyFixedDate, Month: time.October, Day: 30},
		PenaltyPerDay:      decimal.NewFromInt(100),
		MaxPenalty:         decimal.NewFromInt(500000),
		CriticalityScore:   9,
		AmberThresholdDays: 30,
		FilingType:         "AOC4",
		RecommendedAction:  "File AOC-4.",
	}
	mgt7 := &models.ComplianceRule{
		RuleID:  "ROC_MGT7",
		Version: 1,
		Domain:  models.DomainCorporate,
		Title:   "MGT-7 annual return",
		Applicability: models.Applicability{
			EntityTypes: []string{"PRIVATE_LIMITED"},
		},
		Frequency:          models.FrequencyAnnual,
		DueDate:            models.DueDateLogic{Strategy: models.StrategyFixedDate, Month: time.November, Day: 29},
		PenaltyPerDay:      decimal.NewFromInt(100),
		MaxPenalty:         decimal.NewFromInt(500000),
		CriticalityScore:   8,
		AmberThresholdDays: 30,
		RedTriggers:        models.RedTriggers{Dependencies: []string{"ROC_AOC4"}},
		DependsOnRules:     []string{"ROC_AOC4"},
		FilingType:         "MGT7",
		RecommendedAction:  "File MGT-7.",
	}

	// Incorporated mid-2023 and AOC-4 never filed: it was due October 2024
	// and is far overdue by June 2025. MGT-7's own trail is current, so its
	// RED comes solely from the unmet dependency.
	in := baseInput()
	in.IncorporationDate = date(2023, time.June, 5)
	in.Filings = append(in.Filings, FilingSnapshot{
		Type: "MGT7", FiledAt: date(2024, time.November, 20),
		PeriodStart: date(2023, time.June, 5), PeriodEnd: date(2024, time.March, 31),
	})

	res := Evaluate([]*models.ComplianceRule{mgt7, aoc4}, in, testNow)

	byID := map[string]RequirementStatus{}
	for _, st := range res.Requirements {
		byID[st.RuleID] = st
	}
	require.Contains(t, byID, "ROC_AOC4")
	require.Contains(t, byID, "ROC_MGT7")
	assert.Equal(t, StateRed, byID["ROC_AOC4"].State)
	assert.Equal(t, StateRed, byID["ROC_MGT7"].State)
	assert.Contains(t, byID["ROC_MGT7"].Blockers, "dependency not met: ROC_AOC4")
}

func TestEvaluateDependencyOnAbsentRuleIsUnmet(t *testing.T) {
	rule := gstRule(20)
	rule.RedTriggers.Dependencies = []string{"NOT_IN_CATALOG"}

	res := Evaluate([]*models.ComplianceRule{rule}, baseInput(), testNow)
	require.Len(t, res.Requirements, 1)
	assert.Equal(t, StateRed, res.Requirements[0].State)
	assert.Contains(t, res.Requirements[0].Blockers, "dependency not met: NOT_IN_CATALOG")
}

func TestEvaluateDependencyCycle(t *testing.T) {
	a := gstRule(20)
	a.RuleID = "RULE_A"
	a.DependsOnRules = []string{"RULE_B"}
	b := gstRule(20)
	b.RuleID = "RULE_B"
	b.DependsOnRules = []string{"RULE_A"}

	res := Evaluate([]*models.ComplianceRule{a, b}, baseInput(), testNow)
	assert.Empty(t, res.Requirements)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "dependency cycle")
}

func TestEvaluateOneTimeSatisfiedByFiling(t *testing.T) {
	rule := &models.ComplianceRule{
		RuleID:  "INC_20A",
		Version: 1,
		Domain:  models.DomainCorporate,
		Title:   "Declaration of commencement of business",
		Applicability: models.Applicability{
			EntityTypes: []string{"PRIVATE_LIMITED"},
		},
		Frequency:          models.FrequencyOneTime,
		DueDate:            models.DueDateLogic{Strategy: models.StrategyDaysAfterEvent, OffsetDays: 180},
		PenaltyPerDay:      decimal.NewFromInt(50),
		MaxPenalty:         decimal.NewFromInt(50000),
		CriticalityScore:   7,
		AmberThresholdDays: 30,
		FilingType:         "INC20A",
		RecommendedAction:  "File INC-20A.",
	}

	t.Run("unfiled long past due is red", func(t *testing.T) {
		res := Evaluate([]*models.ComplianceRule{rule}, baseInput(), testNow)
		require.Len(t, res.Requirements, 1)
		assert.Equal(t, StateRed, res.Requirements[0].State)
	})

	t.Run("filed one-time obligation is green", func(t *testing.T) {
		in := baseInput()
		in.Filings = append(in.Filings, FilingSnapshot{
			Type: "INC20A", FiledAt: date(2024, time.March, 1),
			PeriodStart: date(2024, time.January, 10), PeriodEnd: date(2024, time.March, 1),
		})
		res := Evaluate([]*models.ComplianceRule{rule}, in, testNow)
		require.Len(t, res.Requirements, 1)
		assert.Equal(t, StateGreen, res.Requirements[0].State)
		assert.Nil(t, res.Requirements[0].DueDate)
	})
}

func TestEvaluateAmberProjectedPenaltyInformational(t *testing.T) {
	rules := []*models.ComplianceRule{gstRule(20)}
	res := Evaluate(rules, baseInput(), testNow)

	require.Len(t, res.Requirements, 1)
	st := res.Requirements[0]
	require.Equal(t, StateAmber, st.State)
	// Projection uses the amber threshold horizon: 7 days at 50/day.
	assert.True(t, st.ProjectedPenalty.Equal(decimal.NewFromInt(350)))
	assert.True(t, st.PenaltyExposure.IsZero())
	assert.True(t, res.TotalPenaltyExposure.IsZero())
}

func TestEvaluateDeterministic(t *testing.T) {
	rules := []*models.ComplianceRule{gstRule(20), labourServiceRule()}
	a := Evaluate(rules, baseInput(), testNow)
	b := Evaluate(rules, baseInput(), testNow)
	assert.Equal(t, a, b)
}

func intPtr(n int) *int { return &n }
