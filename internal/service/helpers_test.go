package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HeatXD/Weyvelength/internal/metrics"
	"github.com/HeatXD/Weyvelength/internal/protocol"
	"github.com/HeatXD/Weyvelength/internal/state"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st := state.New("test-server", "hello", []protocol.IceServer{{URL: "stun:stun.example.com:3478"}})
	return New(st, metrics.New(prometheus.NewRegistry()))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// signalStream drives StreamSignals in the background the way a transport
// would, buffering delivered signals for the test to inspect.
type signalStream struct {
	ch     chan *protocol.Signal
	cancel context.CancelFunc
	done   chan struct{}
}

func openSignalStream(t *testing.T, svc *Service, sessionID, username string) *signalStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ss := &signalStream{
		ch:     make(chan *protocol.Signal, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(ss.done)
		svc.StreamSignals(ctx, protocol.StreamSignalsRequest{SessionID: sessionID, Username: username},
			func(sig *protocol.Signal) error {
				ss.ch <- sig
				return nil
			})
	}()
	waitFor(t, "signal sender registration", func() bool {
		sess, ok := svc.State().Session(sessionID)
		if !ok {
			return false
		}
		_, ok = sess.SenderFor(username)
		return ok
	})
	t.Cleanup(ss.close)
	return ss
}

func (ss *signalStream) next(t *testing.T) *protocol.Signal {
	t.Helper()
	select {
	case sig := <-ss.ch:
		return sig
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
		return nil
	}
}

func (ss *signalStream) expectNone(t *testing.T) {
	t.Helper()
	select {
	case sig := <-ss.ch:
		t.Fatalf("unexpected signal: %+v", sig)
	case <-time.After(50 * time.Millisecond):
	}
}

func (ss *signalStream) close() {
	ss.cancel()
	<-ss.done
}

// messagesStream drives StreamMessages in the background.
type messagesStream struct {
	ch     chan protocol.ChatMessage
	cancel context.CancelFunc
	done   chan struct{}
}

func openMessagesStream(t *testing.T, svc *Service, sessionID, username string) *messagesStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ms := &messagesStream{
		ch:     make(chan protocol.ChatMessage, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	var before int
	sess, ok := svc.State().Session(sessionID)
	if ok {
		before = sess.Chat.SubscriberCount()
	}
	go func() {
		defer close(ms.done)
		svc.StreamMessages(ctx, protocol.StreamMessagesRequest{SessionID: sessionID, Username: username},
			func(msg protocol.ChatMessage) error {
				ms.ch <- msg
				return nil
			})
	}()
	if ok {
		waitFor(t, "chat subscription", func() bool {
			return sess.Chat.SubscriberCount() > before
		})
	}
	t.Cleanup(ms.close)
	return ms
}

func (ms *messagesStream) next(t *testing.T) protocol.ChatMessage {
	t.Helper()
	select {
	case msg := <-ms.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chat message")
		return protocol.ChatMessage{}
	}
}

func (ms *messagesStream) close() {
	ms.cancel()
	<-ms.done
}
