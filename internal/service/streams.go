package service

import (
	"context"

	"github.com/HeatXD/Weyvelength/internal/metrics"
	"github.com/HeatXD/Weyvelength/internal/protocol"
)

// StreamSessionUpdates emits the public-session snapshot once, then again
// on every session-list change, until the client hangs up. Subscribing
// before the initial read means no change can slip between snapshot and
// subscription.
func (s *Service) StreamSessionUpdates(ctx context.Context, send func(protocol.SessionsUpdatedEvent) error) error {
	s.metrics.RPCHandled(protocol.MethodStreamSessionUpdates)

	sub := s.state.SessionUpdates.Subscribe()
	defer sub.Unsubscribe()

	s.metrics.StreamOpened(metrics.StreamKindSessionUpdates)
	defer s.metrics.StreamClosed(metrics.StreamKindSessionUpdates)

	if err := send(protocol.SessionsUpdatedEvent{Sessions: s.state.PublicSessions()}); err != nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := send(protocol.SessionsUpdatedEvent{Sessions: s.state.PublicSessions()}); err != nil {
				return nil
			}
		}
	}
}

// StreamGlobalMembers emits the global presence snapshot once, then again
// on every global-members change, until the client hangs up.
func (s *Service) StreamGlobalMembers(ctx context.Context, send func(protocol.GlobalMembersEvent) error) error {
	s.metrics.RPCHandled(protocol.MethodStreamGlobalMembers)

	sub := s.state.GlobalMembers.Subscribe()
	defer sub.Unsubscribe()

	s.metrics.StreamOpened(metrics.StreamKindGlobalMembers)
	defer s.metrics.StreamClosed(metrics.StreamKindGlobalMembers)

	if err := send(protocol.GlobalMembersEvent{Members: s.state.GlobalMemberList()}); err != nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := send(protocol.GlobalMembersEvent{Members: s.state.GlobalMemberList()}); err != nil {
				return nil
			}
		}
	}
}
