package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	catmodels "complyflow/internal/catalog/models"

	"complyflow/internal/alerts/differ"
	alertstore "complyflow/internal/alerts/store"
	"complyflow/internal/engine"
	"complyflow/internal/platform/metrics"
	"complyflow/internal/platform/redis"
	"complyflow/internal/state/models"
	"complyflow/internal/state/store"
	"complyflow/pkg/domainerrors"
	"complyflow/pkg/platform/keylock"
	"complyflow/pkg/platform/sentinel"
)

const cacheTTL = 5 * time.Minute

// FactsProvider assembles the immutable input snapshot for one entity.
type FactsProvider interface {
	Snapshot(ctx context.Context, entityID string) (*engine.Input, error)
}

// CatalogProvider returns the active rule set and its catalog version as a
// consistent pair.
type CatalogProvider interface {
	ActiveRules(ctx context.Context, at time.Time) ([]*catmodels.ComplianceRule, int64, error)
}

// Service runs the calculation pipeline: snapshot facts, evaluate rules,
// diff alerts, commit state plus history plus audit log. Per-entity runs are
// serialized; distinct entities proceed in parallel.
type Service struct {
	current store.CurrentStore
	history store.HistoryStore
	logs    store.LogStore
	alerts  alertstore.Store
	facts   FactsProvider
	catalog CatalogProvider
	differ  *differ.Differ

	locks   *keylock.KeyLock
	cache   *redis.Client
	metrics *metrics.Metrics
	logger  *slog.Logger

	skipUnchanged bool
	now           func() time.Time
}

type Config struct {
	Current store.CurrentStore
	History store.HistoryStore
	Logs    store.LogStore
	Alerts  alertstore.Store
	Facts   FactsProvider
	Catalog CatalogProvider
	Differ  *differ.Differ

	Cache   *redis.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	SkipUnchanged bool
}

func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Current == nil:
		return nil, errors.New("current store is required")
	case cfg.History == nil:
		return nil, errors.New("history store is required")
	case cfg.Logs == nil:
		return nil, errors.New("log store is required")
	case cfg.Alerts == nil:
		return nil, errors.New("alert store is required")
	case cfg.Facts == nil:
		return nil, errors.New("facts provider is required")
	case cfg.Catalog == nil:
		return nil, errors.New("catalog provider is required")
	case cfg.Differ == nil:
		return nil, errors.New("differ is required")
	}
	return &Service{
		current:       cfg.Current,
		history:       cfg.History,
		logs:          cfg.Logs,
		alerts:        cfg.Alerts,
		facts:         cfg.Facts,
		catalog:       cfg.Catalog,
		differ:        cfg.Differ,
		locks:         keylock.New(),
		cache:         cfg.Cache,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		skipUnchanged: cfg.SkipUnchanged,
		now:           time.Now,
	}, nil
}

// Calculate runs the full pipeline for one entity and returns the committed
// state. A failure anywhere before the commit leaves the previous state
// untouched; the caller never sees a partially updated record.
func (s *Service) Calculate(ctx context.Context, entityID string, trigger models.Trigger) (*models.EntityComplianceState, error) {
	if entityID == "" {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "entityId is required")
	}
	if trigger == "" {
		trigger = models.TriggerManual
	}
	if !trigger.Valid() {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, fmt.Sprintf("unknown trigger %q", trigger))
	}

	s.locks.Lock(entityID)
	defer s.locks.Unlock(entityID)

	started := s.now().UTC()

	prev, err := s.current.Get(ctx, entityID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.fail(ctx, entityID, trigger, started, "state store unavailable", err)
	}

	in, err := s.facts.Snapshot(ctx, entityID)
	if err != nil {
		if domainerrors.CodeOf(err) == domainerrors.CodeNotFound {
			return nil, err
		}
		return nil, s.fail(ctx, entityID, trigger, started, "entity input unavailable", err)
	}

	rules, catalogVersion, err := s.catalog.ActiveRules(ctx, started)
	if err != nil {
		return nil, s.fail(ctx, entityID, trigger, started, "rule catalog unavailable", err)
	}

	inputHash := in.Hash()

	if s.skipUnchanged && trigger == models.TriggerAuto && prev != nil &&
		prev.InputHash == inputHash && prev.CatalogVersion == catalogVersion {
		s.appendLog(ctx, &models.CalculationLog{
			EntityID:           entityID,
			Trigger:            trigger,
			Outcome:            models.OutcomeSkipped,
			CatalogVersion:     catalogVersion,
			InputHash:          inputHash,
			CalculationVersion: prev.CalculationVersion,
			DurationMS:         time.Since(started).Milliseconds(),
			StartedAt:          started,
		})
		s.countCalculation(trigger, "skipped")
		s.logger.DebugContext(ctx, "calculation skipped, input unchanged",
			"entity_id", entityID, "input_hash", inputHash)
		return prev, nil
	}

	result := engine.Evaluate(rules, in, started)

	var prevVersion int64
	if prev != nil {
		prevVersion = prev.CalculationVersion
	}
	next := &models.EntityComplianceState{
		EntityID:           entityID,
		SchemaVersion:      models.SchemaVersion,
		Result:             *result,
		CatalogVersion:     catalogVersion,
		InputHash:          inputHash,
		CalculatedAt:       started,
		CalculationVersion: prevVersion + 1,
		Trigger:            trigger,
	}

	if err := s.current.Put(ctx, next, prevVersion); err != nil {
		if errors.Is(err, sentinel.ErrStale) {
			return nil, s.fail(ctx, entityID, trigger, started, "newer state already committed", err)
		}
		return nil, s.fail(ctx, entityID, trigger, started, "state commit failed", err)
	}

	if err := s.history.Append(ctx, &models.HistoryRecord{
		EntityID:   entityID,
		State:      *next,
		RecordedAt: started,
	}); err != nil {
		// The state is committed; an append gap here is an audit defect,
		// not a calculation failure.
		s.logger.ErrorContext(ctx, "history append failed",
			"entity_id", entityID, "error", err)
	}

	s.appendLog(ctx, &models.CalculationLog{
		EntityID:           entityID,
		Trigger:            trigger,
		Outcome:            models.OutcomeCommitted,
		CatalogVersion:     catalogVersion,
		InputHash:          inputHash,
		CalculationVersion: next.CalculationVersion,
		RulesApplied:       result.RulesApplied,
		WarningCount:       len(result.Warnings),
		ErrorCount:         len(result.Errors),
		Detail:             transitionDetail(prev, next),
		DurationMS:         time.Since(started).Milliseconds(),
		StartedAt:          started,
	})

	s.emitAlerts(ctx, entityID, prev, result, started)
	s.cacheSet(ctx, next)
	s.observeCommit(trigger, prev, next, started)

	s.logger.InfoContext(ctx, "compliance state calculated",
		"entity_id", entityID,
		"trigger", trigger,
		"overall_state", result.OverallState,
		"risk_score", result.OverallRiskScore,
		"calculation_version", next.CalculationVersion,
		"rules_applied", result.RulesApplied,
		"warnings", len(result.Warnings),
		"errors", len(result.Errors))
	return next, nil
}

// Get returns the current state, reading through the cache when configured.
func (s *Service) Get(ctx context.Context, entityID string) (*models.EntityComplianceState, error) {
	if st := s.cacheGet(ctx, entityID); st != nil {
		return st, nil
	}
	st, err := s.current.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "no compliance state for entity: "+entityID)
		}
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to load state", err)
	}
	s.cacheSet(ctx, st)
	return st, nil
}

// History returns snapshots newest first, optionally bounded by time range.
func (s *Service) History(ctx context.Context, entityID string, from, to time.Time, limit int) ([]models.HistoryRecord, error) {
	recs, err := s.history.List(ctx, entityID, from, to, limit)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to load history", err)
	}
	return recs, nil
}

// Logs returns calculation log entries newest first.
func (s *Service) Logs(ctx context.Context, entityID string, limit int) ([]models.CalculationLog, error) {
	entries, err := s.logs.List(ctx, entityID, limit)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "failed to load calculation logs", err)
	}
	return entries, nil
}

// fail records a FAILED log entry and returns the structured failure. The
// previous current-state row is never touched on this path.
func (s *Service) fail(ctx context.Context, entityID string, trigger models.Trigger, started time.Time, msg string, cause error) error {
	s.appendLog(ctx, &models.CalculationLog{
		EntityID:   entityID,
		Trigger:    trigger,
		Outcome:    models.OutcomeFailed,
		Detail:     msg + ": " + cause.Error(),
		DurationMS: time.Since(started).Milliseconds(),
		StartedAt:  started,
	})
	s.countCalculation(trigger, "failed")
	s.logger.ErrorContext(ctx, "calculation failed",
		"entity_id", entityID, "trigger", trigger, "reason", msg, "error", cause)
	if errors.Is(cause, sentinel.ErrStale) {
		return domainerrors.Wrap(domainerrors.CodeConflict, msg, cause)
	}
	if code := domainerrors.CodeOf(cause); code != domainerrors.CodeInternal {
		return cause
	}
	return domainerrors.Wrap(domainerrors.CodeUnavailable, msg, cause)
}

func (s *Service) appendLog(ctx context.Context, entry *models.CalculationLog) {
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "calculation log append failed",
			"entity_id", entry.EntityID, "error", err)
	}
}

func (s *Service) emitAlerts(ctx context.Context, entityID string, prev *models.EntityComplianceState, result *engine.Result, now time.Time) {
	var prevResult *engine.Result
	if prev != nil {
		prevResult = &prev.Result
	}
	for _, alert := range s.differ.Diff(entityID, prevResult, result, now) {
		a := alert
		if err := s.alerts.Upsert(ctx, &a); err != nil {
			s.logger.ErrorContext(ctx, "alert upsert failed",
				"entity_id", entityID, "rule_id", a.RuleID, "type", a.Type, "error", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.AlertsEmitted.WithLabelValues(string(a.Type)).Inc()
		}
	}
}

func (s *Service) countCalculation(trigger models.Trigger, result string) {
	if s.metrics != nil {
		s.metrics.CalculationsTotal.WithLabelValues(string(trigger), result).Inc()
	}
}

func (s *Service) observeCommit(trigger models.Trigger, prev, next *models.EntityComplianceState, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.CalculationsTotal.WithLabelValues(string(trigger), "committed").Inc()
	s.metrics.CalculationDuration.Observe(time.Since(started).Seconds())
	s.metrics.RulesEvaluated.Add(float64(next.Result.RulesApplied))
	if prev != nil {
		s.metrics.EntitiesByState.WithLabelValues(string(prev.Result.OverallState)).Dec()
	}
	s.metrics.EntitiesByState.WithLabelValues(string(next.Result.OverallState)).Inc()
}

func (s *Service) cacheKey(entityID string) string {
	return "complyflow:state:" + entityID
}

func (s *Service) cacheGet(ctx context.Context, entityID string) *models.EntityComplianceState {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Client.Get(ctx, s.cacheKey(entityID)).Bytes()
	if err != nil {
		return nil
	}
	var st models.EntityComplianceState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil
	}
	return &st
}

func (s *Service) cacheSet(ctx context.Context, st *models.EntityComplianceState) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(st.EntityID), raw, cacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "state cache write failed",
			"entity_id", st.EntityID, "error", err)
	}
}

func transitionDetail(prev, next *models.EntityComplianceState) string {
	prevState := "NONE"
	if prev != nil {
		prevState = string(prev.Result.OverallState)
	}
	nextState := string(next.Result.OverallState)
	if prevState == nextState {
		return "state unchanged: " + nextState
	}
	return "state changed: " + prevState + " -> " + nextState
}
