//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"complyflow/internal/engine"
	"complyflow/internal/state/models"
	"complyflow/internal/state/store"
	"complyflow/pkg/platform/sentinel"
	"complyflow/pkg/testutil/containers"
)

type PostgresStateStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	current  *store.PostgresCurrentStore
	history  *store.PostgresHistoryStore
	logs     *store.PostgresLogStore
}

func TestPostgresStateStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStateStoreSuite))
}

func (s *PostgresStateStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.current = store.NewPostgresCurrentStore(s.postgres.DB)
	s.history = store.NewPostgresHistoryStore(s.postgres.DB)
	s.logs = store.NewPostgresLogStore(s.postgres.DB)
}

func (s *PostgresStateStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"compliance_states", "compliance_state_history", "state_calculation_log")
	s.Require().NoError(err)
}

func testState(entityID string, version int64) *models.EntityComplianceState {
	return &models.EntityComplianceState{
		EntityID:      entityID,
		SchemaVersion: models.SchemaVersion,
		Result: engine.Result{
			OverallState:          engine.StateAmber,
			OverallRiskScore:      decimal.NewFromInt(50),
			TotalPenaltyExposure:  decimal.Zero,
			TotalUpcomingItems:    1,
			DataCompletenessScore: decimal.NewFromInt(100),
			RulesApplied:          1,
		},
		CatalogVersion:     1,
		InputHash:          "abc123",
		CalculatedAt:       time.Now().UTC().Truncate(time.Millisecond),
		CalculationVersion: version,
		Trigger:            models.TriggerManual,
	}
}

func (s *PostgresStateStoreSuite) TestPutAndGetRoundTrip() {
	ctx := context.Background()
	st := testState("ent-1", 1)
	s.Require().NoError(s.current.Put(ctx, st, 0))

	got, err := s.current.Get(ctx, "ent-1")
	s.Require().NoError(err)
	s.Equal(st.EntityID, got.EntityID)
	s.Equal(st.InputHash, got.InputHash)
	s.Equal(st.CalculationVersion, got.CalculationVersion)
	s.Equal(st.Result.OverallState, got.Result.OverallState)
	s.True(st.Result.OverallRiskScore.Equal(got.Result.OverallRiskScore))
}

func (s *PostgresStateStoreSuite) TestGetUnknownEntityIsNotFound() {
	_, err := s.current.Get(context.Background(), "ghost")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStateStoreSuite) TestPutRejectsStaleVersion() {
	ctx := context.Background()
	s.Require().NoError(s.current.Put(ctx, testState("ent-1", 1), 0))

	// A second writer that also started from version 0.
	err := s.current.Put(ctx, testState("ent-1", 1), 0)
	s.Require().ErrorIs(err, sentinel.ErrStale)

	// The successor version against the correct expectation goes through.
	s.Require().NoError(s.current.Put(ctx, testState("ent-1", 2), 1))

	got, err := s.current.Get(ctx, "ent-1")
	s.Require().NoError(err)
	s.Equal(int64(2), got.CalculationVersion)
}

func (s *PostgresStateStoreSuite) TestHistoryAppendAndRangeQuery() {
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 3; i++ {
		rec := &models.HistoryRecord{
			EntityID:   "ent-1",
			State:      *testState("ent-1", i),
			RecordedAt: base.AddDate(0, 0, int(i)),
		}
		s.Require().NoError(s.history.Append(ctx, rec))
	}

	all, err := s.history.List(ctx, "ent-1", time.Time{}, time.Time{}, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(int64(3), all[0].State.CalculationVersion, "newest first")

	bounded, err := s.history.List(ctx, "ent-1",
		base.AddDate(0, 0, 2), base.AddDate(0, 0, 2), 0)
	s.Require().NoError(err)
	s.Require().Len(bounded, 1)
	s.Equal(int64(2), bounded[0].State.CalculationVersion)

	limited, err := s.history.List(ctx, "ent-1", time.Time{}, time.Time{}, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *PostgresStateStoreSuite) TestCalculationLogRoundTrip() {
	ctx := context.Background()
	entry := &models.CalculationLog{
		EntityID:           "ent-1",
		Trigger:            models.TriggerAuto,
		Outcome:            models.OutcomeCommitted,
		CatalogVersion:     1,
		InputHash:          "abc123",
		CalculationVersion: 1,
		RulesApplied:       7,
		WarningCount:       1,
		Detail:             "state changed: NONE -> AMBER",
		DurationMS:         12,
		StartedAt:          time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.logs.Append(ctx, entry))

	got, err := s.logs.List(ctx, "ent-1", 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(models.OutcomeCommitted, got[0].Outcome)
	s.Equal(7, got[0].RulesApplied)
	s.Equal("state changed: NONE -> AMBER", got[0].Detail)
}
