// Package service wires the controller pipeline together and exposes the
// operator command surface.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/alarm"
	"github.com/HydroNutri/Hardware/internal/config"
	"github.com/HydroNutri/Hardware/internal/consumer"
	"github.com/HydroNutri/Hardware/internal/evaluator"
	"github.com/HydroNutri/Hardware/internal/link"
	"github.com/HydroNutri/Hardware/internal/metrics"
	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/monitor"
	"github.com/HydroNutri/Hardware/internal/reporter"
	"github.com/HydroNutri/Hardware/internal/scheduler"
	"github.com/HydroNutri/Hardware/internal/state"
	"github.com/HydroNutri/Hardware/internal/store"
)

// Controller owns the runtime components of the main controller: bus ingest,
// health monitoring, status reporting and the feed/light scheduler. It also
// implements the operator command surface shared with the scheduler.
type Controller struct {
	cfg    *config.Config
	store  store.Store
	state  *state.Manager
	alarms *alarm.Manager
	logger *zap.Logger

	consumer  *consumer.BusConsumer
	monitor   *monitor.HealthMonitor
	reporter  *reporter.UplinkReporter
	scheduler *scheduler.Scheduler

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New assembles the pipeline. The bus and uplink links, the store and the
// metrics registry are injected so the composition root can pick transports
// and backends from configuration.
func New(
	cfg *config.Config,
	bus link.Link,
	uplink link.Link,
	st store.Store,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Controller {
	c := &Controller{
		cfg:    cfg,
		store:  st,
		state:  state.NewManager(),
		alarms: alarm.NewManager(st, logger.Named("alarm")),
		logger: logger,
	}

	c.alarms.OnTransition(func(_ models.Alarm, raised bool) {
		if raised {
			m.IncAlarmsRaised()
		} else {
			m.IncAlarmsCleared()
		}
	})

	eval := evaluator.NewEvaluator(c.alarms, logger.Named("evaluator"))
	c.consumer = consumer.NewBusConsumer(bus, c.state, eval, m, logger.Named("consumer"))

	c.monitor = monitor.NewHealthMonitor(c.state, c.alarms, m, logger.Named("monitor"))
	c.monitor.Period = cfg.Monitor.Period
	c.monitor.StaleThreshold = cfg.Monitor.StaleThreshold

	c.reporter = reporter.NewUplinkReporter(uplink, c.state, c.alarms, m, cfg.FirmwareVersion, logger.Named("reporter"))
	c.reporter.Period = cfg.Reporter.Period

	c.scheduler = scheduler.NewScheduler(st, c, logger.Named("scheduler"))
	c.scheduler.Period = cfg.Scheduler.Period

	return c
}

// OnAlarmTransition registers an extra alarm hook, e.g. the webhook notifier.
func (c *Controller) OnAlarmTransition(hook alarm.TransitionHook) {
	c.alarms.OnTransition(hook)
}

// Start launches the pipeline goroutines. It returns immediately.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	for _, run := range []func(context.Context){
		c.consumer.Run,
		c.monitor.Run,
		c.reporter.Run,
		c.scheduler.Run,
	} {
		c.wg.Add(1)
		go func(run func(context.Context)) {
			defer c.wg.Done()
			run(ctx)
		}(run)
	}
	c.logger.Info("Controller started", zap.String("fw_version", c.cfg.FirmwareVersion))
}

// RequestStop cancels the pipeline without waiting for the goroutines to
// exit. Stop still has to be called to join them.
func (c *Controller) RequestStop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Stop cancels the pipeline and waits for all goroutines to exit.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		c.logger.Info("Controller stopped")
	})
}

// Snapshot returns the current system state.
func (c *Controller) Snapshot() models.SystemSnapshot {
	return c.state.Snapshot()
}

// ActiveAlarms returns the active alarms sorted by code.
func (c *Controller) ActiveAlarms() []models.Alarm {
	return c.alarms.Active()
}

// SetUplinkConnected records whether the supervisor link is up. The reporter
// picks the flag up on its next tick.
func (c *Controller) SetUplinkConnected(connected bool) {
	c.state.SetUplinkConnected(connected)
}

// Dispense releases grams of feed and appends a feed audit record. Called by
// the scheduler and by operator commands.
func (c *Controller) Dispense(ctx context.Context, grams int) {
	if grams <= 0 {
		return
	}
	c.state.DispenseFeed(grams)
	c.appendAudit(ctx, models.LogTypeFeed, map[string]interface{}{"grams": grams})
	c.logger.Info("Feed dispensed", zap.Int("grams", grams))
}

// SetGrowLight sets the grow LED brightness, persists it in the settings and
// appends a light audit record. Percent is clamped to 0..100.
func (c *Controller) SetGrowLight(ctx context.Context, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	c.state.SetGrowLED(percent)

	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		c.logger.Warn("Failed to load settings for brightness update", zap.Error(err))
	} else {
		settings.GrowLEDBrightness = percent
		if err := c.store.PutSettings(ctx, settings); err != nil {
			c.logger.Warn("Failed to persist grow LED brightness", zap.Error(err))
		}
	}

	c.appendAudit(ctx, models.LogTypeGrowLight, map[string]interface{}{"brightness": percent})
	c.logger.Info("Grow light set", zap.Int("percent", percent))
}

// Settings returns the persisted configuration.
func (c *Controller) Settings(ctx context.Context) (models.Settings, error) {
	return c.store.GetSettings(ctx)
}

// UpdateSettings replaces the persisted configuration. The live LED level is
// kept in sync so the snapshot matches what the schedule will apply.
func (c *Controller) UpdateSettings(ctx context.Context, settings models.Settings) error {
	if err := c.store.PutSettings(ctx, settings); err != nil {
		return err
	}
	c.state.SetGrowLED(settings.GrowLEDBrightness)
	c.logger.Info("Settings updated")
	return nil
}

// Logs returns the audit log, oldest first.
func (c *Controller) Logs(ctx context.Context) ([]models.LogEntry, error) {
	return c.store.GetLogs(ctx)
}

func (c *Controller) appendAudit(ctx context.Context, logType string, fields map[string]interface{}) {
	entry := models.LogEntry{
		ID:          uuid.New().String(),
		Type:        logType,
		TimestampMs: time.Now().UnixMilli(),
		Fields:      fields,
	}
	if err := c.store.AppendLog(ctx, entry); err != nil {
		c.logger.Warn("Failed to append audit record", zap.String("type", logType), zap.Error(err))
	}
}
