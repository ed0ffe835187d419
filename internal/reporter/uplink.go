package reporter

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/alarm"
	"github.com/HydroNutri/Hardware/internal/link"
	"github.com/HydroNutri/Hardware/internal/metrics"
	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/protocol"
	"github.com/HydroNutri/Hardware/internal/state"
)

// DefaultPeriod is the status transmission interval.
const DefaultPeriod = 200 * time.Millisecond

// UplinkReporter periodically serializes snapshot + alarms into a status
// packet and transmits it to the supervisor. A disconnected uplink is an
// expected operating mode: the controller degrades to autonomous operation
// and flags it with a non-sticky alarm.
type UplinkReporter struct {
	uplink  link.Link
	state   *state.Manager
	alarms  *alarm.Manager
	metrics *metrics.Metrics
	logger  *zap.Logger

	Period          time.Duration
	FirmwareVersion string

	now func() time.Time
}

func NewUplinkReporter(
	uplink link.Link,
	st *state.Manager,
	alarms *alarm.Manager,
	m *metrics.Metrics,
	firmwareVersion string,
	logger *zap.Logger,
) *UplinkReporter {
	return &UplinkReporter{
		uplink:          uplink,
		state:           st,
		alarms:          alarms,
		metrics:         m,
		logger:          logger,
		Period:          DefaultPeriod,
		FirmwareVersion: firmwareVersion,
		now:             time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (r *UplinkReporter) SetClock(now func() time.Time) {
	r.now = now
}

// Run ticks until the context is cancelled.
func (r *UplinkReporter) Run(ctx context.Context) {
	r.logger.Info("Uplink reporter started", zap.Duration("period", r.Period))
	ticker := time.NewTicker(r.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Uplink reporter stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reporting cycle.
func (r *UplinkReporter) Tick(ctx context.Context) {
	if !r.state.UplinkConnected() {
		r.state.SetUplinkIndicator(false)
		r.metrics.SetUplinkConnected(false)
		r.alarms.Raise(ctx, alarm.CodeServerLost, "supervisor link down", false)
		return
	}

	r.state.SetUplinkIndicator(true)
	r.metrics.SetUplinkConnected(true)
	r.alarms.Clear(ctx, alarm.CodeServerLost)

	pkt, err := r.buildStatusPacket()
	if err != nil {
		r.logger.Error("Failed to build status packet", zap.Error(err))
		return
	}
	if err := r.uplink.Send(ctx, pkt); err != nil {
		// Send failures are never fatal; the next period retries with a
		// fresh snapshot.
		r.metrics.IncUplinkSendFailures()
		r.logger.Warn("Uplink send failed", zap.Error(err))
		return
	}
	r.metrics.IncUplinkPacketsSent()
}

func (r *UplinkReporter) buildStatusPacket() ([]byte, error) {
	record := models.StatusRecord{
		TimestampMs:     r.now().UnixMilli(),
		Snapshot:        r.state.Snapshot(),
		Alarms:          r.alarms.Active(),
		FirmwareVersion: r.FirmwareVersion,
	}
	body, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return protocol.PackPacket(protocol.PacketStatus, body), nil
}
