package workflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcare/careflow/pkg/models"
)

func escalationCount(eng *engine) int {
	count := 0

	for _, entry := range eng.recorder.Entries() {
		if entry.ActionType == models.ActionEscalation {
			count++
		}
	}

	return count
}

func TestSweepFiresDueWakeups(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	escalator := NewEscalator(slog.New(slog.DiscardHandler), eng.store, eng.controller, "")
	escalator.WithClock(func() time.Time { return time.Now().Add(72 * time.Hour) })

	escalator.Sweep(ctx)

	assert.Equal(t, 1, escalationCount(eng))

	after, err := eng.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.CurrentPhase)
	assert.Equal(t, models.InstanceStatusActive, after.Status)

	// A second sweep finds nothing: the wake-up was consumed.
	escalator.Sweep(ctx)
	assert.Equal(t, 1, escalationCount(eng))
}

func TestSweepIgnoresFutureWakeups(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	_, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	escalator := NewEscalator(slog.New(slog.DiscardHandler), eng.store, eng.controller, "")

	escalator.Sweep(ctx)

	assert.Zero(t, escalationCount(eng))
}

func TestSweepRecoversWakeupsArmedBeforeRestart(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	// Overwrite with a wake-up that came due while the process was down.
	require.NoError(t, eng.store.Escalations().Arm(ctx, models.EscalationWakeup{
		InstanceID: instance.ID,
		PhaseID:    2,
		DueAt:      time.Now().UTC().Add(-time.Hour),
		CreatedAt:  time.Now().UTC().Add(-49 * time.Hour),
	}))

	escalator := NewEscalator(slog.New(slog.DiscardHandler), eng.store, eng.controller, DefaultSweepSchedule)
	require.NoError(t, escalator.Start(ctx))

	defer escalator.Stop()

	assert.Equal(t, 1, escalationCount(eng))
}
