// Package sim emulates the peripheral modules on the internal bus. It is used
// by the demo runtime and by integration tests when no real hardware is
// attached.
package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/link"
	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/protocol"
)

// DefaultPeriod is the sensor emission interval of each simulated module.
const DefaultPeriod = 100 * time.Millisecond

// Simulator drives one goroutine per enabled peripheral module, each emitting
// sensor frames onto the bus link at Period.
type Simulator struct {
	bus    link.Link
	logger *zap.Logger

	Period time.Duration

	Tank     *TankModule
	Grow     *GrowModule
	Nutrient *NutrientModule
	Feed     *FeedModule
}

func New(bus link.Link, logger *zap.Logger) *Simulator {
	return &Simulator{
		bus:      bus,
		logger:   logger,
		Period:   DefaultPeriod,
		Tank:     &TankModule{},
		Grow:     &GrowModule{ledBrightness: 40},
		Nutrient: &NutrientModule{ratios: [models.NutrientChannels]uint8{10, 10, 0, 0}, remaining: [models.NutrientChannels]uint16{3000, 3000, 3000, 3000}},
		Feed:     &FeedModule{remainingGrams: 500},
	}
}

// Run emits sensor frames until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()

	s.logger.Info("Peripheral simulator started", zap.Duration("period", s.Period))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Peripheral simulator stopped")
			return
		case <-ticker.C:
			s.emit(ctx, protocol.ModuleTank, s.Tank.samplePayload())
			s.emit(ctx, protocol.ModuleGrow, s.Grow.samplePayload())
			s.emit(ctx, protocol.ModuleNutrient, s.Nutrient.samplePayload())
			s.emit(ctx, protocol.ModuleFeed, s.Feed.samplePayload())
		}
	}
}

func (s *Simulator) emit(ctx context.Context, source byte, payload []byte) {
	if payload == nil {
		return
	}
	frame := &protocol.Frame{
		Source:      source,
		Command:     protocol.CmdSensor,
		TimestampMs: uint32(time.Now().UnixMilli()),
		Payload:     payload,
	}
	err := s.bus.Send(ctx, frame.Marshal())
	switch {
	case err == nil:
	case errors.Is(err, link.ErrLinkFull):
		// Sensor frames are periodic, a dropped sample is harmless.
		s.logger.Debug("Bus full, sensor frame dropped", zap.Uint8("source", source))
	case errors.Is(err, context.Canceled), errors.Is(err, link.ErrClosed):
	default:
		s.logger.Warn("Failed to emit sensor frame", zap.Uint8("source", source), zap.Error(err))
	}
}

// TankModule emits water quality readings with small jitter around nominal
// aquarium values.
type TankModule struct {
	mutex    sync.Mutex
	disabled bool
}

func (m *TankModule) SetEnabled(enabled bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.disabled = !enabled
}

func (m *TankModule) samplePayload() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.disabled {
		return nil
	}
	reading := models.TankReading{
		Temperature:     24.0 + jitter(0.3),
		Level:           60.0 + jitter(1.0),
		PH:              7.2 + jitter(0.2),
		TDS:             350 + jitter(10),
		Turbidity:       float32(rand.Float64() * 5),
		DissolvedOxygen: 85.0 + jitter(2.0),
	}
	return EncodeTank(reading)
}

// GrowModule emits climate readings plus the live leak bitmap and LED level.
type GrowModule struct {
	mutex         sync.Mutex
	disabled      bool
	leakBits      uint8
	ledBrightness uint8
}

func (m *GrowModule) SetEnabled(enabled bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.disabled = !enabled
}

// SetLeak forces the leak bitmap, overriding the random toggle.
func (m *GrowModule) SetLeak(bits uint8) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.leakBits = bits
}

func (m *GrowModule) SetLEDBrightness(brightness uint8) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ledBrightness = brightness
}

func (m *GrowModule) samplePayload() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.disabled {
		return nil
	}
	if rand.Float64() < 0.001 {
		m.leakBits ^= 1 << rand.Intn(4)
	}
	reading := models.GrowReading{
		Temperature:   23.0 + jitter(0.5),
		Humidity:      55.0 + jitter(2.0),
		LeakBits:      m.leakBits,
		LEDBrightness: m.ledBrightness,
	}
	return EncodeGrow(reading)
}

// NutrientModule emits the per-channel mix ratios and remaining volumes.
type NutrientModule struct {
	mutex     sync.Mutex
	disabled  bool
	ratios    [models.NutrientChannels]uint8
	remaining [models.NutrientChannels]uint16
}

func (m *NutrientModule) SetEnabled(enabled bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.disabled = !enabled
}

// SetRemaining overrides one channel's remaining volume in milliliters.
func (m *NutrientModule) SetRemaining(channel int, milliliters uint16) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if channel >= 0 && channel < models.NutrientChannels {
		m.remaining[channel] = milliliters
	}
}

func (m *NutrientModule) samplePayload() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.disabled {
		return nil
	}
	return EncodeNutrient(models.NutrientReading{Ratios: m.ratios, Remaining: m.remaining})
}

// FeedModule emits the remaining food weight and slowly consumes it.
type FeedModule struct {
	mutex          sync.Mutex
	disabled       bool
	remainingGrams uint16
}

func (m *FeedModule) SetEnabled(enabled bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.disabled = !enabled
}

func (m *FeedModule) SetRemaining(grams uint16) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.remainingGrams = grams
}

func (m *FeedModule) samplePayload() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.disabled {
		return nil
	}
	if rand.Float64() < 0.01 && m.remainingGrams > 0 {
		m.remainingGrams--
	}
	return EncodeFeed(models.FeedReading{RemainingGrams: m.remainingGrams})
}

func jitter(amplitude float32) float32 {
	return amplitude * float32(2*rand.Float64()-1)
}
