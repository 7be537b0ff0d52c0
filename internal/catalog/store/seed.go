package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"complyflow/internal/catalog/models"
)

// Seed loads the built-in rule set when the catalog is empty. Intended for
// dev mode and fresh installs; production catalogs are managed through the
// admin API.
func Seed(ctx context.Context, st Store) error {
	version, err := st.CatalogVersion(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if version > 0 {
		return nil
	}

	now := time.Now()
	for _, rule := range defaultRules(now) {
		if err := st.Save(ctx, rule); err != nil {
			return fmt.Errorf("seed rule %s: %w", rule.RuleID, err)
		}
	}
	return nil
}

func defaultRules(now time.Time) []*models.ComplianceRule {
	allTypes := []string{"PRIVATE_LIMITED", "PUBLIC_LIMITED", "LLP", "PARTNERSHIP", "PROPRIETORSHIP"}
	companies := []string{"PRIVATE_LIMITED", "PUBLIC_LIMITED"}
	minEmployees := func(n int) *int { return &n }

	base := func(r models.ComplianceRule) *models.ComplianceRule {
		r.Version = 1
		r.IsActive = true
		r.EffectiveFrom = now
		r.CreatedAt = now
		r.UpdatedAt = now
		return &r
	}

	return []*models.ComplianceRule{
		base(models.ComplianceRule{
			RuleID:      "GST_GSTR3B",
			Domain:      models.DomainTaxGST,
			Title:       "GSTR-3B monthly return",
			Description: "Summary return of outward supplies and input tax credit.",
			Applicability: models.Applicability{
				EntityTypes: allTypes,
				RequiresGST: true,
			},
			Frequency:          models.FrequencyMonthly,
			DueDate:            models.DueDateLogic{Strategy: models.StrategyDaysAfterPeriodEnd, OffsetDays: 20},
			PenaltyPerDay:      decimal.NewFromInt(50),
			MaxPenalty:         decimal.NewFromInt(10000),
			CriticalityScore:   9,
			AmberThresholdDays: 7,
			RedTriggers:        models.RedTriggers{DaysOverdue: 0},
			FilingType:         "GSTR3B",
			RecommendedAction:  "File GSTR-3B for the pending period to stop late fees accruing.",
		}),
		base(models.ComplianceRule{
			RuleID:      "GST_GSTR1",
			Domain:      models.DomainTaxGST,
			Title:       "GSTR-1 outward supplies statement",
			Applicability: models.Applicability{
				EntityTypes: allTypes,
				RequiresGST: true,
			},
			Frequency:          models.FrequencyMonthly,
			DueDate:            models.DueDateLogic{Strategy: models.StrategyDaysAfterPeriodEnd, OffsetDays: 11},
			PenaltyPerDay:      decimal.NewFromInt(50),
			MaxPenalty:         decimal.NewFromInt(5000),
			CriticalityScore:   7,
			AmberThresholdDays: 5,
			RedTriggers:        models.RedTriggers{DaysOverdue: 0},
			FilingType:         "GSTR1",
			RecommendedAction:  "File GSTR-1 before the 11th of the month.",
		}),
		base(models.ComplianceRule{
			RuleID:      "PF_ECR",
			Domain:      models.DomainLabour,
			Title:       "PF monthly contribution (ECR)",
			Applicability: models.Applicability{
				EntityTypes:  allTypes,
				RequiresPF:   true,
				MinEmployees: minEmployees(20),
			},
			Frequency:          models.FrequencyMonthly,
			DueDate:            models.DueDateLogic{Strategy: models.StrategyDaysAfterPeriodEnd, OffsetDays: 15},
			PenaltyPerDay:      decimal.NewFromInt(100),
			MaxPenalty:         decimal.NewFromInt(25000),
			CriticalityScore:   8,
			AmberThresholdDays: 7,
			RedTriggers:        models.RedTriggers{DaysOverdue: 0},
			FilingType:         "PF_ECR",
			RecommendedAction:  "Deposit PF contributions and file the ECR for the pending month.",
		}),
		base(models.ComplianceRule{
			RuleID:      "ESI_CONTRIB",
			Domain:      models.DomainLabour,
			Title:       "ESI monthly contribution",
			Applicability: models.Applicability{
				EntityTypes:  allTypes,
				RequiresESI:  true,
				MinEmployees: minEmployees(10),
			},
			Frequency:          models.FrequencyMonthly,
			DueDate:            models.DueDateLogic{Strategy: models.StrategyDaysAfterPeriodEnd, OffsetDays: 15},
			PenaltyPerDay:      decimal.NewFromInt(100),
			MaxPenalty:         decimal.NewFromInt(25000),
			CriticalityScore:   7,
			AmberThresholdDays: 7,
			RedTriggers:        models.RedTriggers{DaysOverdue: 0},
			FilingType:         "ESI",
			RecommendedAction:  "Deposit ESI contributions for the pending month.",
		}),
		base(models.ComplianceRule{
			RuleID:      "ROC_AOC4",
			Domain:      models.DomainCorporate,
			Title:       "AOC-4 annual financial statements filing",
			Applicability: models.Applicability{
				EntityTypes: companies,
			},
			Frequency:          models.FrequencyAnnual,
			DueDate:            models.DueDateLogic{Strategy: models.StrategyFixedDate, Month: time.October, Day: 30},
			GraceDays:          0,
			PenaltyPerDay:      decimal.NewFromInt(100),
			MaxPenalty:         decimal.NewFromInt(500000),
			CriticalityScore:   9,
			AmberThresholdDays: 30,
			RedTriggers: models.RedTriggers{
				DaysOverdue:      0,
				MissingDocuments: []string{"AUDITED_FINANCIALS"},
			},
			RequiredDocuments: []string{"AUDITED_FINANCIALS"},
			FilingType:        "AOC4",
			RecommendedAction: "File AOC-4 with audited financial statements.",
		}),
		base(models.ComplianceRule{
			RuleID:      "ROC_MGT7",
			Domain:      models.DomainCorporate,
			Title:       "MGT-7 annual return",
			Applicability: models.Applicability{
				EntityTypes: companies,
			},
			Frequency:          models.FrequencyAnnual,
			DueDate:            models.DueDateLogic{Strategy: models.StrategyFixedDate, Month: time.November, Day: 29},
			PenaltyPerDay:      decimal.NewFromInt(100),
			MaxPenalty:         decimal.NewFromInt(500000),
			CriticalityScore:   8,
			AmberThresholdDays: 30,
			RedTriggers:        models.RedTriggers{DaysOverdue: 0, Dependencies: []string{"ROC_AOC4"}},
			DependsOnRules:     []string{"ROC_AOC4"},
			FilingType:         "MGT7",
			RecommendedAction:  "File MGT-7 annual return; AOC-4 must be filed first.",
		}),
		base(models.ComplianceRule{
			RuleID:      "FEMA_FLA",
			Domain:      models.DomainFEMA,
			Title:       "FLA return on foreign liabilities and assets",
			Applicability: models.Applicability{
				EntityTypes:     companies,
				RequiresForeign: true,
			},
			Frequency:          models.FrequencyAnnual,
			DueDate:            models.DueDateLogic{Strategy: models.StrategyFixedDate, Month: time.July, Day: 15},
			PenaltyPerDay:      decimal.NewFromInt(0),
			MaxPenalty:         decimal.NewFromInt(0),
			CriticalityScore:   6,
			AmberThresholdDays: 15,
			RedTriggers:        models.RedTriggers{DaysOverdue: 0},
			FilingType:         "FLA",
			RecommendedAction:  "File the FLA return with RBI for the last financial year.",
		}),
	}
}
