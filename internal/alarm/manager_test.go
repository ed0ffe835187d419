package alarm

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/store"
)

func setupManager(t *testing.T) (*Manager, store.Store) {
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "audit.json"))
	require.NoError(t, err)
	return NewManager(st, zap.NewNop()), st
}

func TestManager_RaiseTwice_OneEntryOneAuditRecord(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	m.Raise(ctx, CodeLeak, "leak detected", true)
	m.Raise(ctx, CodeLeak, "leak detected", true)

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, CodeLeak, active[0].Code)

	logs, err := st.GetLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, models.LogTypeAlarm, logs[0].Type)
}

func TestManager_ClearAbsent_NoAuditRecord(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	m.Clear(ctx, CodeFeedEmpty)

	assert.False(t, m.AnyActive())
	logs, err := st.GetLogs(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestManager_RaiseClearCycle(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()

	m.Raise(ctx, CodeFeedEmpty, "feed depleted", true)
	assert.True(t, m.IsActive(CodeFeedEmpty))

	m.Clear(ctx, CodeFeedEmpty)
	assert.False(t, m.IsActive(CodeFeedEmpty))
	assert.False(t, m.AnyActive())

	logs, err := st.GetLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogTypeAlarm, logs[0].Type)
	assert.Equal(t, models.LogTypeAlarmClear, logs[1].Type)
}

func TestManager_ActiveSortedByCode(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	m.Raise(ctx, CodeServerLost, "uplink lost", false)
	m.Raise(ctx, CodeBusLost, "module comm lost", true)
	m.Raise(ctx, CodeLeak, "leak detected", true)

	active := m.Active()
	require.Len(t, active, 3)
	assert.Equal(t, CodeBusLost, active[0].Code)
	assert.Equal(t, CodeLeak, active[1].Code)
	assert.Equal(t, CodeServerLost, active[2].Code)
}

func TestManager_TransitionHooks(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	type transition struct {
		code   string
		raised bool
	}
	var got []transition
	m.OnTransition(func(a models.Alarm, raised bool) {
		got = append(got, transition{a.Code, raised})
	})

	m.Raise(ctx, CodeLeak, "leak detected", true)
	m.Raise(ctx, CodeLeak, "leak detected", true) // dedup: no second notification
	m.Clear(ctx, CodeLeak)

	require.Len(t, got, 2)
	assert.Equal(t, transition{CodeLeak, true}, got[0])
	assert.Equal(t, transition{CodeLeak, false}, got[1])
}

func TestManager_ConcurrentProducers(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Raise(ctx, CodeNutrientLow, "nutrient low", true)
				m.Clear(ctx, CodeNutrientLow)
			}
		}()
	}
	wg.Wait()

	assert.False(t, m.IsActive(CodeNutrientLow))
}
