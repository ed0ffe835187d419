package consumer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/alarm"
	"github.com/HydroNutri/Hardware/internal/evaluator"
	"github.com/HydroNutri/Hardware/internal/link"
	"github.com/HydroNutri/Hardware/internal/protocol"
	"github.com/HydroNutri/Hardware/internal/state"
	"github.com/HydroNutri/Hardware/internal/store"
)

type consumerFixture struct {
	consumer *BusConsumer
	state    *state.Manager
	alarms   *alarm.Manager
	peer     *link.MemoryLink
	cancel   context.CancelFunc
	done     chan struct{}
}

func startConsumer(t *testing.T) *consumerFixture {
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "audit.json"))
	require.NoError(t, err)

	controllerEnd, peripheralEnd := link.NewMemoryPair(16)
	t.Cleanup(func() { controllerEnd.Close() })

	stateMgr := state.NewManager()
	alarms := alarm.NewManager(st, zap.NewNop())
	eval := evaluator.NewEvaluator(alarms, zap.NewNop())
	c := NewBusConsumer(controllerEnd, stateMgr, eval, nil, zap.NewNop())
	c.receiveTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &consumerFixture{consumer: c, state: stateMgr, alarms: alarms, peer: peripheralEnd, cancel: cancel, done: done}
}

func sendFrame(t *testing.T, f *consumerFixture, frame *protocol.Frame) {
	require.NoError(t, f.peer.Send(context.Background(), frame.Marshal()))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func feedFrame(remaining uint16) *protocol.Frame {
	return &protocol.Frame{
		Source:      protocol.ModuleFeed,
		Command:     protocol.CmdSensor,
		TimestampMs: uint32(time.Now().UnixMilli()),
		Payload:     []byte{byte(remaining), byte(remaining >> 8)},
	}
}

func TestBusConsumer_IngestUpdatesSnapshot(t *testing.T) {
	f := startConsumer(t)

	sendFrame(t, f, feedFrame(500))

	waitFor(t, func() bool {
		snap := f.state.Snapshot()
		return snap.Feed != nil && snap.Feed.RemainingGrams == 500
	})
}

func TestBusConsumer_FeedEmptyAlarmAcrossCycles(t *testing.T) {
	f := startConsumer(t)

	for i := 0; i < 3; i++ {
		sendFrame(t, f, feedFrame(0))
	}
	waitFor(t, func() bool { return f.alarms.IsActive(alarm.CodeFeedEmpty) })

	sendFrame(t, f, feedFrame(200))
	waitFor(t, func() bool { return !f.alarms.IsActive(alarm.CodeFeedEmpty) })
}

func TestBusConsumer_CorruptFrameIgnored(t *testing.T) {
	f := startConsumer(t)

	raw := feedFrame(500).Marshal()
	raw[4] ^= 0xFF // corrupt timestamp without fixing CRC
	require.NoError(t, f.peer.Send(context.Background(), raw))
	sendFrame(t, f, feedFrame(321))

	waitFor(t, func() bool {
		snap := f.state.Snapshot()
		return snap.Feed != nil && snap.Feed.RemainingGrams == 321
	})
}

func TestBusConsumer_UnknownSourceDropped(t *testing.T) {
	f := startConsumer(t)

	unknown := &protocol.Frame{Source: 0x99, Command: protocol.CmdSensor, Payload: []byte{1}}
	sendFrame(t, f, unknown)
	sendFrame(t, f, feedFrame(77))

	waitFor(t, func() bool {
		snap := f.state.Snapshot()
		return snap.Feed != nil && snap.Feed.RemainingGrams == 77
	})
	assert.False(t, f.alarms.AnyActive())
}

func TestBusConsumer_StopsOnCancel(t *testing.T) {
	f := startConsumer(t)

	f.cancel()

	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}
