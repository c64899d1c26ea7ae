package service

import (
	"context"
	"log/slog"

	"github.com/HeatXD/Weyvelength/internal/metrics"
	"github.com/HeatXD/Weyvelength/internal/protocol"
	"github.com/HeatXD/Weyvelength/internal/state"
)

// SendSignal routes one directed signal to its recipient's signal pipe.
// A missing session or a recipient without an open signal stream silently
// succeeds: late signals after a teardown are expected and absorbed.
func (s *Service) SendSignal(req protocol.SendSignalRequest) error {
	s.metrics.RPCHandled(protocol.MethodSendSignal)

	if req.Signal == nil {
		return errInvalidArgument("missing signal")
	}
	sig := req.Signal

	sess, ok := s.state.Session(sig.SessionID)
	if !ok {
		s.metrics.SignalDropped()
		return nil
	}

	pipe, ok := sess.SenderFor(sig.ToUser)
	if !ok {
		s.metrics.SignalDropped()
		return nil
	}

	pipe.Send(sig)
	s.metrics.SignalRouted()
	slog.Debug("signal routed",
		"kind", sig.Kind, "from", sig.FromUser, "to", sig.ToUser, "session_id", sig.SessionID)
	return nil
}

// StreamSignals registers a signal pipe for the member and bridges it to
// the client until either side closes. Closing is the implicit-leave path:
// the bridge removes its sender entry and runs the same leave protocol an
// explicit LeaveSession would, so a crashed client is indistinguishable
// from a polite one — and the conditional remove guarantees the two paths
// never both fan out.
func (s *Service) StreamSignals(ctx context.Context, req protocol.StreamSignalsRequest, send func(*protocol.Signal) error) error {
	s.metrics.RPCHandled(protocol.MethodStreamSignals)

	sess, ok := s.state.Session(req.SessionID)
	if !ok {
		return errNotFound("session %q not found", req.SessionID)
	}

	pipe := state.NewSignalPipe()
	if old := sess.RegisterSignalSender(req.Username, pipe); old != nil {
		// A previous stream for the same member is still draining; wake
		// it so its bridge exits. Ownership has moved to this pipe.
		old.Close()
	}

	s.metrics.StreamOpened(metrics.StreamKindSignals)
	slog.Info("signal stream opened", "session_id", req.SessionID, "username", req.Username)

	for {
		sig, ok := pipe.Recv(ctx)
		if !ok {
			break
		}
		if err := send(sig); err != nil {
			break
		}
	}

	pipe.Close()
	s.metrics.StreamClosed(metrics.StreamKindSignals)

	// Only the stream that still owns the sender entry owns the implicit
	// leave. If a newer stream replaced the entry, membership now rides
	// on that stream and this one exits quietly.
	owned := true
	if cur, ok := s.state.Session(req.SessionID); ok {
		owned = cur.RemoveSignalSender(req.Username, pipe)
	}
	if owned {
		if info, won := s.state.LeaveSessionInner(req.SessionID, req.Username); won {
			s.fanOutLeave(req.SessionID, req.Username, info)
			slog.Info("implicit leave", "session_id", req.SessionID, "username", req.Username)
		}
	}

	slog.Info("signal stream closed", "session_id", req.SessionID, "username", req.Username)
	return nil
}
