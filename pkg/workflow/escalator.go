package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bloomcare/careflow/pkg/persistence"
)

// DefaultSweepSchedule checks for due wake-ups every minute.
const DefaultSweepSchedule = "* * * * *"

// Escalator sweeps persisted escalation wake-ups and fires elapsed phase
// timeouts through the controller. Because wake-ups live in the store, a
// restart picks up whatever was armed before the process died.
type Escalator struct {
	logger     *slog.Logger
	store      persistence.Persistence
	controller *Controller
	schedule   string
	cron       *cron.Cron
	now        func() time.Time
	mu         sync.Mutex
	started    bool
}

func NewEscalator(logger *slog.Logger, store persistence.Persistence, controller *Controller, schedule string) *Escalator {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	return &Escalator{
		logger:     logger,
		store:      store,
		controller: controller,
		schedule:   schedule,
		now:        time.Now,
	}
}

// WithClock injects the clock. For tests.
func (e *Escalator) WithClock(now func() time.Time) *Escalator {
	e.now = now

	return e
}

// Start runs a recovery sweep immediately, then sweeps on the cron
// schedule until Stop is called.
func (e *Escalator) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	e.cron = cron.New()

	_, err := e.cron.AddFunc(e.schedule, func() {
		e.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", e.schedule, err)
	}

	e.logger.Info("Starting escalation sweeper", "schedule", e.schedule)

	// Recovery sweep: fire anything that came due while we were down.
	e.Sweep(ctx)

	e.cron.Start()
	e.started = true

	return nil
}

// Stop halts the sweep schedule. A sweep already in flight finishes.
func (e *Escalator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return
	}

	e.cron.Stop()
	e.started = false

	e.logger.Info("Escalation sweeper stopped")
}

// Sweep fires every due wake-up. One instance's failure does not stop the
// sweep for the others.
func (e *Escalator) Sweep(ctx context.Context) {
	due, err := e.store.Escalations().Due(ctx, e.now().UTC())
	if err != nil {
		e.logger.Error("Failed to query due wakeups", "error", err)

		return
	}

	for _, wakeup := range due {
		err := e.controller.TimeoutFire(ctx, wakeup.InstanceID, wakeup.PhaseID)
		if err != nil {
			e.logger.Error("Failed to fire timeout",
				"workflow_id", wakeup.InstanceID,
				"phase", wakeup.PhaseID,
				"error", err,
			)
		}
	}
}
