package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/config"
	"github.com/HydroNutri/Hardware/internal/link"
	"github.com/HydroNutri/Hardware/internal/metrics"
	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/protocol"
	"github.com/HydroNutri/Hardware/internal/sim"
	"github.com/HydroNutri/Hardware/internal/store"
)

type fixture struct {
	controller *Controller
	simulator  *sim.Simulator
	uplinkPeer *link.MemoryLink
	store      store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Monitor.Period = 10 * time.Millisecond
	cfg.Monitor.StaleThreshold = 50 * time.Millisecond
	cfg.Reporter.Period = 10 * time.Millisecond

	busController, busPeripheral := link.NewMemoryPair(256)
	uplinkController, uplinkPeer := link.NewMemoryPair(256)
	t.Cleanup(func() {
		_ = busController.Close()
		_ = uplinkController.Close()
	})

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "controller.json"))
	require.NoError(t, err)

	c := New(cfg, busController, uplinkController, st, metrics.New(), zap.NewNop())

	simulator := sim.New(busPeripheral, zap.NewNop())
	simulator.Period = 5 * time.Millisecond

	return &fixture{controller: c, simulator: simulator, uplinkPeer: uplinkPeer, store: st}
}

func (f *fixture) start(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	simDone := make(chan struct{})
	go func() {
		defer close(simDone)
		f.simulator.Run(ctx)
	}()
	f.controller.Start(ctx)
	t.Cleanup(func() {
		f.controller.Stop()
		cancel()
		<-simDone
	})
	return ctx
}

func (f *fixture) nextStatus(t *testing.T, ctx context.Context) models.StatusRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		raw, err := f.uplinkPeer.Receive(ctx, 100*time.Millisecond)
		if errors.Is(err, link.ErrReceiveTimeout) {
			continue
		}
		require.NoError(t, err)
		packet, err := protocol.UnpackPacket(raw)
		require.NoError(t, err)
		var record models.StatusRecord
		require.NoError(t, json.Unmarshal(packet.Body, &record))
		return record
	}
	t.Fatal("no status packet received")
	return models.StatusRecord{}
}

func TestController_ReportsSimulatedReadings(t *testing.T) {
	f := newFixture(t)
	ctx := f.start(t)
	f.controller.SetUplinkConnected(true)

	deadline := time.Now().Add(2 * time.Second)
	var record models.StatusRecord
	for time.Now().Before(deadline) {
		record = f.nextStatus(t, ctx)
		if record.Snapshot.Tank != nil && record.Snapshot.Feed != nil &&
			record.Snapshot.Grow != nil && record.Snapshot.Nutrient != nil {
			break
		}
	}

	require.NotNil(t, record.Snapshot.Tank)
	assert.InDelta(t, 24.0, record.Snapshot.Tank.Temperature, 1.0)
	require.NotNil(t, record.Snapshot.Feed)
	assert.True(t, record.Snapshot.PeripheralsOK)
	assert.Equal(t, "0.1.0", record.FirmwareVersion)
}

func TestController_LeakAlarmReachesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := f.start(t)
	f.controller.SetUplinkConnected(true)
	f.simulator.Grow.SetLeak(0b0100)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record := f.nextStatus(t, ctx)
		for _, a := range record.Alarms {
			if a.Code == "E-LEAK" {
				assert.True(t, a.Sticky)
				return
			}
		}
	}
	t.Fatal("leak alarm never reported")
}

func TestController_DispenseAppendsAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.controller.Dispense(ctx, 12)

	logs, err := f.controller.Logs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogTypeFeed, logs[0].Type)
	assert.EqualValues(t, 12, logs[0].Fields["grams"])
}

func TestController_DispenseIgnoresNonPositive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.controller.Dispense(ctx, 0)
	f.controller.Dispense(ctx, -5)

	logs, err := f.controller.Logs(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestController_SetGrowLightClampsAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.controller.SetGrowLight(ctx, 150)

	settings, err := f.controller.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, settings.GrowLEDBrightness)

	snapshot := f.controller.Snapshot()
	require.NotNil(t, snapshot.Grow)
	assert.Equal(t, uint8(100), snapshot.Grow.LEDBrightness)

	logs, err := f.controller.Logs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogTypeGrowLight, logs[0].Type)
}

func TestController_UpdateSettingsSyncsLED(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings := models.DefaultSettings()
	settings.GrowLEDBrightness = 35
	require.NoError(t, f.controller.UpdateSettings(ctx, settings))

	loaded, err := f.controller.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 35, loaded.GrowLEDBrightness)

	snapshot := f.controller.Snapshot()
	require.NotNil(t, snapshot.Grow)
	assert.Equal(t, uint8(35), snapshot.Grow.LEDBrightness)
}

func TestController_DisconnectedUplinkRaisesServerLost(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.controller.SetUplinkConnected(false)

	require.Eventually(t, func() bool {
		for _, a := range f.controller.ActiveAlarms() {
			if a.Code == "E-SRV-LOST" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestController_RequestStopUnblocksPipeline(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.controller.RequestStop()

	done := make(chan struct{})
	go func() {
		f.controller.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after RequestStop")
	}
}

func TestController_StopTerminates(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	done := make(chan struct{})
	go func() {
		f.controller.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
}
