package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	alertmodels "complyflow/internal/alerts/models"
	catmodels "complyflow/internal/catalog/models"

	"complyflow/internal/alerts/differ"
	alertstore "complyflow/internal/alerts/store"
	"complyflow/internal/engine"
	"complyflow/internal/state/models"
	"complyflow/internal/state/store"
	"complyflow/pkg/domainerrors"
)

var calcNow = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

type fakeFacts struct {
	input *engine.Input
	err   error
}

func (f *fakeFacts) Snapshot(ctx context.Context, entityID string) (*engine.Input, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.input
	cp.EntityID = entityID
	return &cp, nil
}

type fakeCatalog struct {
	rules   []*catmodels.ComplianceRule
	version int64
	err     error
}

func (f *fakeCatalog) ActiveRules(ctx context.Context, at time.Time) ([]*catmodels.ComplianceRule, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.rules, f.version, nil
}

type ServiceSuite struct {
	suite.Suite

	current *store.MemoryCurrentStore
	history *store.MemoryHistoryStore
	logs    *store.MemoryLogStore
	alerts  *alertstore.MemoryStore
	facts   *fakeFacts
	catalog *fakeCatalog
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.current = store.NewMemoryCurrentStore()
	s.history = store.NewMemoryHistoryStore()
	s.logs = store.NewMemoryLogStore()
	s.alerts = alertstore.NewMemoryStore()
	s.facts = &fakeFacts{input: s.baseInput()}
	s.catalog = &fakeCatalog{rules: []*catmodels.ComplianceRule{s.gstRule(20)}, version: 1}

	svc, err := New(Config{
		Current: s.current,
		History: s.history,
		Logs:    s.logs,
		Alerts:  s.alerts,
		Facts:   s.facts,
		Catalog: s.catalog,
		Differ:  differ.New(decimal.NewFromInt(1000)),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.Require().NoError(err)
	svc.now = func() time.Time { return calcNow }
	s.svc = svc
}

func (s *ServiceSuite) gstRule(offsetDays int) *catmodels.ComplianceRule {
	return &catmodels.ComplianceRule{
		RuleID:  "GST_GSTR3B",
		Version: 1,
		Domain:  catmodels.DomainTaxGST,
		Title:   "GSTR-3B monthly return",
		Applicability: catmodels.Applicability{
			EntityTypes: []string{"PRIVATE_LIMITED"},
			RequiresGST: true,
		},
		Frequency:          catmodels.FrequencyMonthly,
		DueDate:            catmodels.DueDateLogic{Strategy: catmodels.StrategyDaysAfterPeriodEnd, OffsetDays: offsetDays},
		PenaltyPerDay:      decimal.NewFromInt(50),
		MaxPenalty:         decimal.NewFromInt(10000),
		CriticalityScore:   9,
		AmberThresholdDays: 7,
		FilingType:         "GSTR3B",
		RecommendedAction:  "File GSTR-3B for the pending period.",
	}
}

// baseInput is a GST-registered company with its April GSTR-3B filed. With a
// 20-day offset the May return is due June 20, five days from calcNow.
func (s *ServiceSuite) baseInput() *engine.Input {
	employees := 25
	return &engine.Input{
		EntityID:          "ent-1",
		EntityType:        "PRIVATE_LIMITED",
		IncorporationDate: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		State:             "KA",
		EmployeeCount:     &employees,
		GSTRegistered:     true,
		Filings: []engine.FilingSnapshot{{
			Type:        "GSTR3B",
			FiledAt:     time.Date(2025, time.May, 18, 0, 0, 0, 0, time.UTC),
			PeriodStart: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC),
		}},
		CapturedAt: calcNow,
	}
}

func (s *ServiceSuite) TestCalculateCommitsFullPipeline() {
	st, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)

	s.Equal(engine.StateAmber, st.Result.OverallState)
	s.Equal(1, st.Result.TotalUpcomingItems)
	s.Equal(int64(1), st.CalculationVersion)
	s.Equal(models.SchemaVersion, st.SchemaVersion)
	s.Equal(int64(1), st.CatalogVersion)
	s.NotEmpty(st.InputHash)

	stored, err := s.current.Get(context.Background(), "ent-1")
	s.Require().NoError(err)
	s.Equal(st.CalculationVersion, stored.CalculationVersion)

	hist, err := s.history.List(context.Background(), "ent-1", time.Time{}, time.Time{}, 0)
	s.Require().NoError(err)
	s.Len(hist, 1)

	logs, err := s.logs.List(context.Background(), "ent-1", 0)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(models.OutcomeCommitted, logs[0].Outcome)
	s.Equal(1, logs[0].RulesApplied)

	alerts, err := s.alerts.List(context.Background(), "ent-1", alertstore.Filter{})
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)
	s.Equal(alertmodels.TypeUpcoming, alerts[0].Type)
}

func (s *ServiceSuite) TestCalculateOverdueEmitsOverdueAlert() {
	// A 5-day offset makes the May return due June 5, ten days overdue.
	s.catalog.rules = []*catmodels.ComplianceRule{s.gstRule(5)}

	st, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)

	s.Equal(engine.StateRed, st.Result.OverallState)
	s.Equal("500", st.Result.TotalPenaltyExposure.String())

	alerts, err := s.alerts.List(context.Background(), "ent-1", alertstore.Filter{})
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)
	s.Equal(alertmodels.TypeOverdue, alerts[0].Type)
	s.Equal(alertmodels.SeverityCritical, alerts[0].Severity)
}

func (s *ServiceSuite) TestCalculateIsDeterministic() {
	first, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)
	second, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)

	s.Equal(first.Result, second.Result)
	s.Equal(first.InputHash, second.InputHash)
	s.Equal(first.CalculationVersion+1, second.CalculationVersion)
}

func (s *ServiceSuite) TestCalculateVersionNeverDecreases() {
	var last int64
	for i := 0; i < 3; i++ {
		st, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
		s.Require().NoError(err)
		s.Greater(st.CalculationVersion, last)
		last = st.CalculationVersion
	}
}

func (s *ServiceSuite) TestSkipUnchangedAutoRuns() {
	s.svc.skipUnchanged = true

	first, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerAuto)
	s.Require().NoError(err)

	second, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerAuto)
	s.Require().NoError(err)
	s.Equal(first.CalculationVersion, second.CalculationVersion, "unchanged input must not recompute")

	hist, err := s.history.List(context.Background(), "ent-1", time.Time{}, time.Time{}, 0)
	s.Require().NoError(err)
	s.Len(hist, 1, "skipped run must not append history")

	logs, err := s.logs.List(context.Background(), "ent-1", 0)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(models.OutcomeSkipped, logs[0].Outcome)
}

func (s *ServiceSuite) TestSkipDoesNotApplyToManualRuns() {
	s.svc.skipUnchanged = true

	first, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerAuto)
	s.Require().NoError(err)
	second, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)
	s.Equal(first.CalculationVersion+1, second.CalculationVersion)
}

func (s *ServiceSuite) TestCatalogChangeDefeatsSkip() {
	s.svc.skipUnchanged = true

	first, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerAuto)
	s.Require().NoError(err)

	s.catalog.version = 2
	second, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerAuto)
	s.Require().NoError(err)
	s.Equal(first.CalculationVersion+1, second.CalculationVersion)
}

func (s *ServiceSuite) TestFailureLeavesCurrentStateUntouched() {
	first, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)

	s.facts.err = domainerrors.New(domainerrors.CodeUnavailable, "facts store down")
	_, err = s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().Error(err)
	s.Equal(domainerrors.CodeUnavailable, domainerrors.CodeOf(err))

	stored, err := s.current.Get(context.Background(), "ent-1")
	s.Require().NoError(err)
	s.Equal(first.CalculationVersion, stored.CalculationVersion)
	s.Equal(first.Result.OverallState, stored.Result.OverallState)

	logs, err := s.logs.List(context.Background(), "ent-1", 0)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(models.OutcomeFailed, logs[0].Outcome)
}

func (s *ServiceSuite) TestCatalogFailureAborts() {
	s.catalog.err = errors.New("connection refused")
	_, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().Error(err)
	s.Equal(domainerrors.CodeUnavailable, domainerrors.CodeOf(err))
}

func (s *ServiceSuite) TestUnknownEntityIsNotFound() {
	s.facts.err = domainerrors.New(domainerrors.CodeNotFound, "entity not found: ghost")
	_, err := s.svc.Calculate(context.Background(), "ghost", models.TriggerManual)
	s.Require().Error(err)
	s.Equal(domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func (s *ServiceSuite) TestInvalidTriggerRejected() {
	_, err := s.svc.Calculate(context.Background(), "ent-1", models.Trigger("CHAOS"))
	s.Require().Error(err)
	s.Equal(domainerrors.CodeBadRequest, domainerrors.CodeOf(err))
}

func (s *ServiceSuite) TestAlertNotDuplicatedAcrossRuns() {
	s.catalog.rules = []*catmodels.ComplianceRule{s.gstRule(5)}

	_, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)
	_, err = s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)

	alerts, err := s.alerts.List(context.Background(), "ent-1", alertstore.Filter{Status: alertmodels.StatusActive})
	s.Require().NoError(err)
	s.Len(alerts, 1)
}

func (s *ServiceSuite) TestGetReturnsNotFoundBeforeFirstCalculation() {
	_, err := s.svc.Get(context.Background(), "ent-1")
	s.Require().Error(err)
	s.Equal(domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func (s *ServiceSuite) TestStateStoreRejectsStaleWrite() {
	st, err := s.svc.Calculate(context.Background(), "ent-1", models.TriggerManual)
	s.Require().NoError(err)

	// A writer that started before the commit above carries expectedVersion
	// 0 and must be rejected.
	stale := *st
	stale.CalculationVersion = 1
	err = s.current.Put(context.Background(), &stale, 0)
	s.Require().Error(err)
}
