package state

import (
	"context"
	"sync"

	"github.com/HeatXD/Weyvelength/internal/protocol"
)

// SignalPipe is the per-member delivery queue behind one signal stream.
// Sends never block and never fail: signals queue without bound, and a
// send on a closed pipe is silently dropped (the subscriber is gone).
// Values are shared pointers, so one Signal allocation serves a whole
// fan-out.
type SignalPipe struct {
	mu     sync.Mutex
	buf    []*protocol.Signal
	ready  chan struct{}
	closed bool
}

// NewSignalPipe returns an open, empty pipe.
func NewSignalPipe() *SignalPipe {
	return &SignalPipe{ready: make(chan struct{}, 1)}
}

// Send enqueues sig. It never blocks.
func (p *SignalPipe) Send(sig *protocol.Signal) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.buf = append(p.buf, sig)
	p.mu.Unlock()
	p.wake()
}

// Recv returns the next queued signal in FIFO order, blocking until one
// arrives, the pipe closes (ok=false), or ctx is done (ok=false).
func (p *SignalPipe) Recv(ctx context.Context) (*protocol.Signal, bool) {
	for {
		p.mu.Lock()
		if len(p.buf) > 0 {
			sig := p.buf[0]
			p.buf = p.buf[1:]
			p.mu.Unlock()
			return sig, true
		}
		if p.closed {
			p.mu.Unlock()
			return nil, false
		}
		p.mu.Unlock()

		select {
		case <-p.ready:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Close marks the pipe closed and wakes any blocked receiver. Queued
// signals remain readable until drained. Safe to call more than once.
func (p *SignalPipe) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wake()
}

// Len returns the number of queued signals.
func (p *SignalPipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

func (p *SignalPipe) wake() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}
