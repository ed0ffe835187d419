package link

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLinkFull is returned by Send when the channel is at capacity.
	ErrLinkFull = errors.New("link: send queue full")
	// ErrReceiveTimeout is returned by Receive when no message arrives in time.
	ErrReceiveTimeout = errors.New("link: receive timeout")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("link: closed")
)

// Link is one framed bidirectional channel. The peripheral bus and the
// uplink are two independent instances sharing no state.
type Link interface {
	// Send transmits one framed message. Past the capacity threshold it
	// fails with ErrLinkFull instead of growing without bound.
	Send(ctx context.Context, msg []byte) error
	// Receive blocks until a message is available, the timeout elapses
	// (ErrReceiveTimeout) or the context is cancelled. The timeout exists
	// only to keep shutdown responsive; it is not a protocol timeout.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}
