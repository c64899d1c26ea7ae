package service

import (
	"context"
	"log/slog"

	"github.com/HeatXD/Weyvelength/internal/metrics"
	"github.com/HeatXD/Weyvelength/internal/protocol"
	"github.com/HeatXD/Weyvelength/internal/state"
)

// SendMessage publishes one chat message on the session's broadcast with
// the server's wall clock. Publishing with no subscribers is fine.
func (s *Service) SendMessage(req protocol.SendMessageRequest) error {
	s.metrics.RPCHandled(protocol.MethodSendMessage)

	sess, ok := s.state.Session(req.SessionID)
	if !ok {
		return errNotFound("session %q not found", req.SessionID)
	}

	sess.Chat.Publish(protocol.ChatMessage{
		Username:  req.Username,
		Content:   req.Content,
		Timestamp: state.NowTimestamp(),
	})
	s.metrics.ChatMessage()

	slog.Debug("chat message", "session_id", req.SessionID, "username", req.Username)
	return nil
}

// StreamMessages bridges the session's chat broadcast to one client until
// the client hangs up (ctx) or send fails. For the global session the
// stream doubles as a presence ref-count: the first open adds the user to
// the global member set, the last close removes them. Closing a non-global
// messages stream has no membership effect; implicit leave belongs to the
// signal stream alone.
func (s *Service) StreamMessages(ctx context.Context, req protocol.StreamMessagesRequest, send func(protocol.ChatMessage) error) error {
	s.metrics.RPCHandled(protocol.MethodStreamMessages)

	sess, ok := s.state.Session(req.SessionID)
	if !ok {
		return errNotFound("session %q not found", req.SessionID)
	}

	isGlobal := req.SessionID == protocol.GlobalSessionID
	if isGlobal {
		if s.state.GlobalStreamOpen(req.Username) {
			s.metrics.GlobalMemberUp()
			s.state.GlobalMembers.Publish(struct{}{})
		}
		defer func() {
			if s.state.GlobalStreamClose(req.Username) {
				s.metrics.GlobalMemberDown()
				s.state.GlobalMembers.Publish(struct{}{})
			}
		}()
	}

	sub := sess.Chat.Subscribe()
	defer sub.Unsubscribe()

	s.metrics.StreamOpened(metrics.StreamKindMessages)
	defer s.metrics.StreamClosed(metrics.StreamKindMessages)

	slog.Debug("messages stream opened", "session_id", req.SessionID, "username", req.Username)
	defer slog.Debug("messages stream closed", "session_id", req.SessionID, "username", req.Username)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := send(msg); err != nil {
				return nil
			}
		}
	}
}
