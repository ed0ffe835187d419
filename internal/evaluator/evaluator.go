package evaluator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/alarm"
	"github.com/HydroNutri/Hardware/internal/models"
)

// NutrientLowThresholdML is the per-channel remaining volume below which
// E-NUTRI-LOW is raised.
const NutrientLowThresholdML = 200

// Evaluator applies the alarm rules tied to each peripheral kind. Rules run
// per frame, strictly against the value just applied to the snapshot, so a
// single frame flips at most the alarms of its own peripheral.
type Evaluator struct {
	alarms *alarm.Manager
	logger *zap.Logger
}

func NewEvaluator(alarms *alarm.Manager, logger *zap.Logger) *Evaluator {
	return &Evaluator{alarms: alarms, logger: logger}
}

// Evaluate runs the rule set for one freshly applied reading.
func (e *Evaluator) Evaluate(ctx context.Context, r models.Reading) {
	switch v := r.(type) {
	case models.GrowReading:
		e.evaluateGrow(ctx, v)
	case models.NutrientReading:
		e.evaluateNutrient(ctx, v)
	case models.FeedReading:
		e.evaluateFeed(ctx, v)
	}
}

func (e *Evaluator) evaluateGrow(ctx context.Context, r models.GrowReading) {
	if r.LeakBits != 0 {
		e.alarms.Raise(ctx, alarm.CodeLeak,
			fmt.Sprintf("leak detected (bits=0b%04b)", r.LeakBits), true)
	} else {
		e.alarms.Clear(ctx, alarm.CodeLeak)
	}
}

func (e *Evaluator) evaluateNutrient(ctx context.Context, r models.NutrientReading) {
	channels := [models.NutrientChannels]string{"A", "B", "C", "D"}
	for i, remaining := range r.Remaining {
		if remaining < NutrientLowThresholdML {
			e.alarms.Raise(ctx, alarm.CodeNutrientLow,
				fmt.Sprintf("nutrient low (channel %s)", channels[i]), true)
			return
		}
	}
	e.alarms.Clear(ctx, alarm.CodeNutrientLow)
}

func (e *Evaluator) evaluateFeed(ctx context.Context, r models.FeedReading) {
	if r.RemainingGrams == 0 {
		e.alarms.Raise(ctx, alarm.CodeFeedEmpty, "feed depleted", true)
	} else {
		e.alarms.Clear(ctx, alarm.CodeFeedEmpty)
	}
}
