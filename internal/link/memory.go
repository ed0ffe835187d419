package link

import (
	"context"
	"sync"
	"time"
)

// MemoryLink is one endpoint of an in-process bounded channel pair. It backs
// the simulated peripheral bus and the loopback uplink.
type MemoryLink struct {
	tx   chan []byte
	rx   chan []byte
	done chan struct{}
	once *sync.Once
}

// NewMemoryPair creates two connected endpoints with the given per-direction
// capacity. Closing either endpoint closes both.
func NewMemoryPair(capacity int) (*MemoryLink, *MemoryLink) {
	if capacity <= 0 {
		capacity = 16
	}
	ab := make(chan []byte, capacity)
	ba := make(chan []byte, capacity)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &MemoryLink{tx: ab, rx: ba, done: done, once: once}
	b := &MemoryLink{tx: ba, rx: ab, done: done, once: once}
	return a, b
}

func (l *MemoryLink) Send(ctx context.Context, msg []byte) error {
	out := append([]byte(nil), msg...)
	select {
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case l.tx <- out:
		return nil
	default:
		return ErrLinkFull
	}
}

func (l *MemoryLink) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-l.rx:
		return msg, nil
	case <-timer.C:
		return nil, ErrReceiveTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrClosed
	}
}

func (l *MemoryLink) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

var _ Link = (*MemoryLink)(nil)
