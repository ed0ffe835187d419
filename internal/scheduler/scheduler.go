package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/store"
)

// DefaultPeriod is the schedule evaluation interval. Triggers have
// minute granularity; the finer tick only bounds reaction latency.
const DefaultPeriod = time.Second

// Actions is the mutation path shared with operator commands.
type Actions interface {
	Dispense(ctx context.Context, grams int)
	SetGrowLight(ctx context.Context, percent int)
}

// Scheduler evaluates time-of-day triggers from the persisted settings and
// invokes the corresponding actions. Each entry carries a last-triggered
// minute guard so a match fires exactly once per minute window even though
// the tick period is finer than the trigger granularity.
type Scheduler struct {
	store   store.Store
	actions Actions
	logger  *zap.Logger

	Period time.Duration

	now       func() time.Time
	lastFired map[string]string
}

func NewScheduler(st store.Store, actions Actions, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:     st,
		actions:   actions,
		logger:    logger,
		Period:    DefaultPeriod,
		now:       time.Now,
		lastFired: make(map[string]string),
	}
}

// SetClock overrides the time source. Test hook.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler started", zap.Duration("period", s.Period))
	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every schedule entry against the current wall clock.
func (s *Scheduler) Tick(ctx context.Context) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		// Degraded mode: schedules pause until the store recovers.
		s.logger.Warn("Failed to load settings for schedule evaluation", zap.Error(err))
		return
	}

	now := s.now()
	hhmm := now.Format("15:04")
	window := now.Format("2006-01-02 15:04")

	for i, entry := range settings.FeedSchedule {
		key := fmt.Sprintf("feed:%d", i)
		if entry.At == hhmm && s.fire(key, window) {
			s.logger.Info("Scheduled feed dispense",
				zap.String("at", entry.At),
				zap.Int("grams", entry.Grams),
			)
			s.actions.Dispense(ctx, entry.Grams)
		}
	}

	for i, slot := range settings.GrowLEDSchedule {
		onKey := fmt.Sprintf("light-on:%d", i)
		if slot.On == hhmm && s.fire(onKey, window) {
			s.logger.Info("Scheduled grow light on",
				zap.String("at", slot.On),
				zap.Int("brightness", slot.Brightness),
			)
			s.actions.SetGrowLight(ctx, slot.Brightness)
		}
		offKey := fmt.Sprintf("light-off:%d", i)
		if slot.Off == hhmm && s.fire(offKey, window) {
			s.logger.Info("Scheduled grow light off", zap.String("at", slot.Off))
			s.actions.SetGrowLight(ctx, 0)
		}
	}
}

// fire reports whether the entry may trigger in this minute window and
// marks it as fired.
func (s *Scheduler) fire(key, window string) bool {
	if s.lastFired[key] == window {
		return false
	}
	s.lastFired[key] = window
	return true
}
