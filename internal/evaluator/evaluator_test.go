package evaluator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/alarm"
	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/store"
)

func setupEvaluator(t *testing.T) (*Evaluator, *alarm.Manager, store.Store) {
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "audit.json"))
	require.NoError(t, err)
	alarms := alarm.NewManager(st, zap.NewNop())
	return NewEvaluator(alarms, zap.NewNop()), alarms, st
}

func TestEvaluate_LeakRaisesAndClears(t *testing.T) {
	e, alarms, _ := setupEvaluator(t)
	ctx := context.Background()

	e.Evaluate(ctx, models.GrowReading{LeakBits: 0b0010})
	assert.True(t, alarms.IsActive(alarm.CodeLeak))

	e.Evaluate(ctx, models.GrowReading{LeakBits: 0})
	assert.False(t, alarms.IsActive(alarm.CodeLeak))
}

func TestEvaluate_NutrientLowOnSingleChannel(t *testing.T) {
	e, alarms, _ := setupEvaluator(t)
	ctx := context.Background()

	// Channel "A" drops from 250 to 150: the alarm must appear on the
	// ingest carrying the low value, not before.
	e.Evaluate(ctx, models.NutrientReading{Remaining: [4]uint16{250, 3000, 3000, 3000}})
	assert.False(t, alarms.IsActive(alarm.CodeNutrientLow))

	e.Evaluate(ctx, models.NutrientReading{Remaining: [4]uint16{150, 3000, 3000, 3000}})
	assert.True(t, alarms.IsActive(alarm.CodeNutrientLow))

	e.Evaluate(ctx, models.NutrientReading{Remaining: [4]uint16{2500, 3000, 3000, 3000}})
	assert.False(t, alarms.IsActive(alarm.CodeNutrientLow))
}

func TestEvaluate_FeedEmptyRaisedOnceAcrossCycles(t *testing.T) {
	e, alarms, st := setupEvaluator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e.Evaluate(ctx, models.FeedReading{RemainingGrams: 0})
	}
	assert.True(t, alarms.IsActive(alarm.CodeFeedEmpty))

	logs, err := st.GetLogs(ctx)
	require.NoError(t, err)
	raised := 0
	for _, entry := range logs {
		if entry.Type == models.LogTypeAlarm {
			raised++
		}
	}
	assert.Equal(t, 1, raised)

	e.Evaluate(ctx, models.FeedReading{RemainingGrams: 120})
	assert.False(t, alarms.IsActive(alarm.CodeFeedEmpty))
}

func TestEvaluate_TankReadingTouchesNoAlarms(t *testing.T) {
	e, alarms, _ := setupEvaluator(t)

	e.Evaluate(context.Background(), models.TankReading{Temperature: 24, PH: 7.2})

	assert.False(t, alarms.AnyActive())
}
