package differ

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complyflow/internal/alerts/models"
	"complyflow/internal/engine"
)

var diffNow = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func req(ruleID string, state engine.State, crit int, exposure int64) engine.RequirementStatus {
	return engine.RequirementStatus{
		RuleID:           ruleID,
		State:            state,
		CriticalityScore: crit,
		PenaltyExposure:  decimal.NewFromInt(exposure),
		DaysOverdue:      10,
		Action:           "file the return",
	}
}

func result(reqs ...engine.RequirementStatus) *engine.Result {
	return &engine.Result{Requirements: reqs}
}

func byType(alerts []models.Alert, typ models.AlertType) *models.Alert {
	for i := range alerts {
		if alerts[i].Type == typ {
			return &alerts[i]
		}
	}
	return nil
}

func TestDiffFirstCalculationRed(t *testing.T) {
	d := New(decimal.Zero)
	alerts := d.Diff("ent-1", nil, result(req("GST_GSTR3B", engine.StateRed, 9, 500)), diffNow)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.TypeOverdue, alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "ent-1", alerts[0].EntityID)
	assert.Equal(t, models.StatusActive, alerts[0].Status)
}

func TestDiffOverdueOnTransitionOnly(t *testing.T) {
	d := New(decimal.Zero)

	prev := result(req("GST_GSTR3B", engine.StateRed, 9, 500))
	next := result(req("GST_GSTR3B", engine.StateRed, 9, 550))
	assert.Empty(t, d.Diff("ent-1", prev, next, diffNow), "RED staying RED must not re-raise")

	prev = result(req("GST_GSTR3B", engine.StateAmber, 9, 0))
	alerts := d.Diff("ent-1", prev, next, diffNow)
	require.NotNil(t, byType(alerts, models.TypeOverdue))
}

func TestDiffUpcomingOnEnteringAmber(t *testing.T) {
	d := New(decimal.Zero)

	prev := result(req("GST_GSTR3B", engine.StateGreen, 9, 0))
	amber := req("GST_GSTR3B", engine.StateAmber, 9, 0)
	amber.DaysUntilDue = 5

	alerts := d.Diff("ent-1", prev, result(amber), diffNow)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.TypeUpcoming, alerts[0].Type)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "due in 5 days")

	// RED falling back to AMBER is an improvement, not an upcoming alert.
	prev = result(req("GST_GSTR3B", engine.StateRed, 9, 500))
	assert.Empty(t, d.Diff("ent-1", prev, result(amber), diffNow))
}

func TestDiffStateChangeOnEscalation(t *testing.T) {
	d := New(decimal.Zero)

	prev := result(req("ROC_AOC4", engine.StateAmber, 7, 0))
	next := result(req("ROC_AOC4", engine.StateRed, 7, 300))

	alerts := d.Diff("ent-1", prev, next, diffNow)
	require.Len(t, alerts, 2)
	require.NotNil(t, byType(alerts, models.TypeOverdue))

	sc := byType(alerts, models.TypeStateChange)
	require.NotNil(t, sc)
	assert.Equal(t, models.SeverityHigh, sc.Severity, "criticality 7 is below the critical cut")
	assert.Contains(t, sc.Title, "AMBER to RED")
}

func TestDiffPenaltyRiskThresholdCrossing(t *testing.T) {
	d := New(decimal.NewFromInt(1000))

	prev := result(req("GST_GSTR3B", engine.StateRed, 9, 800))
	next := result(req("GST_GSTR3B", engine.StateRed, 9, 1200))

	alerts := d.Diff("ent-1", prev, next, diffNow)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.TypePenaltyRisk, alerts[0].Type)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)

	// Already past the threshold before this run: no re-raise.
	prev = result(req("GST_GSTR3B", engine.StateRed, 9, 1100))
	assert.Empty(t, d.Diff("ent-1", prev, next, diffNow))
}

func TestDiffThresholdDisabledWhenZero(t *testing.T) {
	d := New(decimal.Zero)
	prev := result(req("GST_GSTR3B", engine.StateRed, 9, 0))
	next := result(req("GST_GSTR3B", engine.StateRed, 9, 9999))
	assert.Empty(t, d.Diff("ent-1", prev, next, diffNow))
}

func TestDiffRequirementAbsentFromPrior(t *testing.T) {
	d := New(decimal.Zero)
	prev := result(req("GST_GSTR3B", engine.StateGreen, 9, 0))

	added := req("PF_ECR", engine.StateRed, 6, 200)
	alerts := d.Diff("ent-1", prev, result(req("GST_GSTR3B", engine.StateGreen, 9, 0), added), diffNow)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.TypeOverdue, alerts[0].Type)
	assert.Equal(t, "PF_ECR", alerts[0].RuleID)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
}
