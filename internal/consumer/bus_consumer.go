package consumer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/evaluator"
	"github.com/HydroNutri/Hardware/internal/link"
	"github.com/HydroNutri/Hardware/internal/metrics"
	"github.com/HydroNutri/Hardware/internal/protocol"
	"github.com/HydroNutri/Hardware/internal/state"
)

// DefaultReceiveTimeout bounds each bus receive so shutdown stays responsive.
const DefaultReceiveTimeout = 200 * time.Millisecond

// BusConsumer ingests peripheral frames: receive, decode, update the shared
// state, then evaluate alarm rules against the value just applied. Frame
// errors are recoverable; nothing here is fatal to the controller.
type BusConsumer struct {
	bus            link.Link
	state          *state.Manager
	evaluator      *evaluator.Evaluator
	metrics        *metrics.Metrics
	logger         *zap.Logger
	receiveTimeout time.Duration
}

func NewBusConsumer(
	bus link.Link,
	st *state.Manager,
	eval *evaluator.Evaluator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BusConsumer {
	return &BusConsumer{
		bus:            bus,
		state:          st,
		evaluator:      eval,
		metrics:        m,
		logger:         logger,
		receiveTimeout: DefaultReceiveTimeout,
	}
}

// Run consumes frames until the context is cancelled or the link closes.
func (c *BusConsumer) Run(ctx context.Context) {
	c.logger.Info("Bus consumer started")
	for {
		msg, err := c.bus.Receive(ctx, c.receiveTimeout)
		if err != nil {
			if errors.Is(err, link.ErrReceiveTimeout) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, link.ErrClosed) {
				c.logger.Info("Bus consumer stopped")
				return
			}
			c.logger.Warn("Bus receive failed", zap.Error(err))
			continue
		}
		c.handleFrame(ctx, msg)
	}
}

func (c *BusConsumer) handleFrame(ctx context.Context, raw []byte) {
	frame, err := protocol.UnmarshalFrame(raw)
	if err != nil {
		// Corrupt frames are dropped; the bus re-delivers fresh data every
		// sensor period.
		c.metrics.IncFrameDecodeFailures()
		c.logger.Warn("Dropping invalid bus frame",
			zap.Int("size", len(raw)),
			zap.Error(err),
		)
		return
	}

	reading, known, err := DecodeReading(frame)
	if !known {
		// Unknown (source, command) pairs must not break the controller as
		// peripherals evolve.
		c.metrics.IncReadingsDropped()
		c.logger.Debug("Dropping frame with unknown source/command",
			zap.Uint8("source", frame.Source),
			zap.Uint8("command", frame.Command),
		)
		return
	}
	if err != nil {
		c.metrics.IncFrameDecodeFailures()
		c.logger.Warn("Dropping undecodable payload",
			zap.Uint8("source", frame.Source),
			zap.Uint8("command", frame.Command),
			zap.Error(err),
		)
		return
	}

	c.state.ApplyReading(frame.Source, reading)
	c.evaluator.Evaluate(ctx, reading)
	c.metrics.IncFramesDecoded()
}
