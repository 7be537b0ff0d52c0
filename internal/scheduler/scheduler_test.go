package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"complyflow/internal/state/models"
)

type countingCalculator struct {
	mu       sync.Mutex
	calls    []string
	failFor  map[string]bool
	inFlight int
	maxSeen  int
}

func (c *countingCalculator) Calculate(ctx context.Context, entityID string, trigger models.Trigger) (*models.EntityComplianceState, error) {
	c.mu.Lock()
	c.calls = append(c.calls, entityID)
	c.inFlight++
	if c.inFlight > c.maxSeen {
		c.maxSeen = c.inFlight
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if c.failFor[entityID] {
		return nil, errors.New("boom")
	}
	return &models.EntityComplianceState{EntityID: entityID, Trigger: trigger}, nil
}

type staticLister struct{ ids []string }

func (l *staticLister) ListEntityIDs(ctx context.Context) ([]string, error) {
	return l.ids, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepVisitsEveryEntity(t *testing.T) {
	calc := &countingCalculator{}
	s := NewSweeper(calc, &staticLister{ids: []string{"a", "b", "c"}}, 2, discard())

	s.Sweep(context.Background())

	assert.ElementsMatch(t, []string{"a", "b", "c"}, calc.calls)
	assert.LessOrEqual(t, calc.maxSeen, 2, "parallelism bound exceeded")
}

func TestSweepContinuesPastFailures(t *testing.T) {
	calc := &countingCalculator{failFor: map[string]bool{"b": true}}
	s := NewSweeper(calc, &staticLister{ids: []string{"a", "b", "c"}}, 1, discard())

	s.Sweep(context.Background())

	assert.ElementsMatch(t, []string{"a", "b", "c"}, calc.calls)
}
