package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complyflow/internal/catalog/models"
)

func req(ruleID string, domain models.Domain, state State, criticality int) RequirementStatus {
	return RequirementStatus{
		RuleID:           ruleID,
		Domain:           domain,
		State:            state,
		CriticalityScore: criticality,
		PenaltyExposure:  decimal.Zero,
		ProjectedPenalty: decimal.Zero,
		Priority:         priorityFor(state, criticality),
	}
}

func TestAggregateDomainWorstOf(t *testing.T) {
	cases := []struct {
		name   string
		states []State
		want   State
	}{
		{"all green", []State{StateGreen, StateGreen}, StateGreen},
		{"amber dominates green", []State{StateGreen, StateAmber, StateGreen}, StateAmber},
		{"red dominates all", []State{StateGreen, StateAmber, StateRed}, StateRed},
		{"empty domain is green", nil, StateGreen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var group []RequirementStatus
			for i, s := range tc.states {
				group = append(group, req(string(rune('A'+i)), models.DomainTaxGST, s, 5))
			}
			ds := aggregateDomain(models.DomainTaxGST, group)
			assert.Equal(t, tc.want, ds.State)
		})
	}
}

func TestAggregateDomainRiskScore(t *testing.T) {
	t.Run("weighted by criticality", func(t *testing.T) {
		group := []RequirementStatus{
			req("A", models.DomainTaxGST, StateRed, 10),
			req("B", models.DomainTaxGST, StateGreen, 10),
		}
		ds := aggregateDomain(models.DomainTaxGST, group)
		// (10×1 + 10×0) / 20 × 100 = 50
		assert.True(t, ds.RiskScore.Equal(decimal.NewFromInt(50)), "got %s", ds.RiskScore)
	})

	t.Run("amber weighs half", func(t *testing.T) {
		group := []RequirementStatus{
			req("A", models.DomainLabour, StateAmber, 8),
		}
		ds := aggregateDomain(models.DomainLabour, group)
		assert.True(t, ds.RiskScore.Equal(decimal.NewFromInt(50)), "got %s", ds.RiskScore)
	})

	t.Run("empty domain scores zero", func(t *testing.T) {
		ds := aggregateDomain(models.DomainFEMA, nil)
		assert.True(t, ds.RiskScore.IsZero())
	})
}

func TestEntityRiskWeightedByRequirementCount(t *testing.T) {
	// TAX_GST: two requirements, one RED one GREEN, criticality 10 each →
	// domain score 50. LABOUR: one RED criticality 5 → domain score 100.
	// Entity: (50×2 + 100×1) / 3 = 66.67.
	ev := &evaluator{
		dispositions: map[string]disposition{},
		statuses:     map[string]*RequirementStatus{},
		evaluated:    3,
		attempted:    3,
	}
	statuses := []RequirementStatus{
		req("A", models.DomainTaxGST, StateRed, 10),
		req("B", models.DomainTaxGST, StateGreen, 10),
		req("C", models.DomainLabour, StateRed, 5),
	}
	res := ev.aggregate(statuses)

	assert.Equal(t, StateRed, res.OverallState)
	assert.True(t, res.OverallRiskScore.Equal(decimal.NewFromFloat(66.67)),
		"got %s", res.OverallRiskScore)
	// Domains with no requirements are reported but carry no weight.
	require.Len(t, res.Domains, len(models.Domains))
}

func TestNextCriticalTieBreaks(t *testing.T) {
	early := date(2025, time.July, 1)
	late := date(2025, time.August, 1)

	t.Run("earliest due date wins", func(t *testing.T) {
		a := req("A", models.DomainTaxGST, StateAmber, 5)
		a.DueDate = &late
		b := req("B", models.DomainLabour, StateAmber, 5)
		b.DueDate = &early
		next := nextCritical([]RequirementStatus{a, b})
		require.NotNil(t, next)
		assert.Equal(t, "B", next.RuleID)
	})

	t.Run("criticality breaks date ties", func(t *testing.T) {
		a := req("A", models.DomainTaxGST, StateAmber, 5)
		a.DueDate = &early
		b := req("B", models.DomainLabour, StateAmber, 9)
		b.DueDate = &early
		next := nextCritical([]RequirementStatus{a, b})
		require.NotNil(t, next)
		assert.Equal(t, "B", next.RuleID)
	})

	t.Run("rule id breaks remaining ties", func(t *testing.T) {
		a := req("Z", models.DomainTaxGST, StateAmber, 5)
		a.DueDate = &early
		b := req("C", models.DomainLabour, StateAmber, 5)
		b.DueDate = &early
		next := nextCritical([]RequirementStatus{a, b})
		require.NotNil(t, next)
		assert.Equal(t, "C", next.RuleID)
	})

	t.Run("green requirements never surface", func(t *testing.T) {
		a := req("A", models.DomainTaxGST, StateGreen, 5)
		a.DueDate = &early
		assert.Nil(t, nextCritical([]RequirementStatus{a}))
	})
}

func TestCompleteness(t *testing.T) {
	assert.True(t, completeness(0, 0).Equal(decimal.NewFromInt(100)))
	assert.True(t, completeness(3, 3).Equal(decimal.NewFromInt(100)))
	assert.True(t, completeness(1, 2).Equal(decimal.NewFromInt(50)))
	assert.True(t, completeness(2, 3).Equal(decimal.NewFromFloat(66.67)))
}

func TestInputHashStability(t *testing.T) {
	a := baseInput()
	b := baseInput()
	// Capture time must not affect the hash; slice order must not either.
	b.CapturedAt = b.CapturedAt.Add(time.Hour)
	b.Services = append([]ServiceSnapshot{}, b.Services...)
	assert.Equal(t, a.Hash(), b.Hash())

	c := baseInput()
	c.GSTRegistered = false
	assert.NotEqual(t, a.Hash(), c.Hash())
}
