package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/alarm"
	"github.com/HydroNutri/Hardware/internal/metrics"
	"github.com/HydroNutri/Hardware/internal/state"
)

const (
	// DefaultPeriod is the watchdog evaluation interval.
	DefaultPeriod = 100 * time.Millisecond
	// DefaultStaleThreshold is how long a module may stay silent before it
	// is considered stale.
	DefaultStaleThreshold = 500 * time.Millisecond
)

// HealthMonitor periodically evaluates per-module staleness and derives the
// aggregate peripheral-liveness indicator. Repeated ticks with unchanged
// inputs produce no extra audit records thanks to AlarmManager dedup.
type HealthMonitor struct {
	state   *state.Manager
	alarms  *alarm.Manager
	metrics *metrics.Metrics
	logger  *zap.Logger

	Period         time.Duration
	StaleThreshold time.Duration
}

func NewHealthMonitor(st *state.Manager, alarms *alarm.Manager, m *metrics.Metrics, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		state:          st,
		alarms:         alarms,
		metrics:        m,
		logger:         logger,
		Period:         DefaultPeriod,
		StaleThreshold: DefaultStaleThreshold,
	}
}

// Run ticks until the context is cancelled.
func (h *HealthMonitor) Run(ctx context.Context) {
	h.logger.Info("Health monitor started",
		zap.Duration("period", h.Period),
		zap.Duration("stale_threshold", h.StaleThreshold),
	)
	ticker := time.NewTicker(h.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Health monitor stopped")
			return
		case <-ticker.C:
			h.Tick(ctx)
		}
	}
}

// Tick runs one watchdog evaluation.
func (h *HealthMonitor) Tick(ctx context.Context) {
	allOK := h.state.MarkLiveness(h.StaleThreshold)

	online := 0
	for _, entry := range h.state.Health() {
		if entry.OK {
			online++
		}
	}
	h.metrics.SetModulesOnline(online)

	if !allOK {
		h.alarms.Raise(ctx, alarm.CodeBusLost, "module communication lost or delayed", true)
	} else {
		h.alarms.Clear(ctx, alarm.CodeBusLost)
	}
}
