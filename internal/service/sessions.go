package service

import (
	"errors"
	"log/slog"

	"github.com/HeatXD/Weyvelength/internal/protocol"
	"github.com/HeatXD/Weyvelength/internal/state"
)

// ListSessions returns the public-session snapshot, the same one the
// session-updates stream emits.
func (s *Service) ListSessions() protocol.ListSessionsResponse {
	s.metrics.RPCHandled(protocol.MethodListSessions)
	return protocol.ListSessionsResponse{Sessions: s.state.PublicSessions()}
}

// CreateSession allocates a lobby code, registers the session, joins the
// creator, and makes them host.
func (s *Service) CreateSession(req protocol.CreateSessionRequest) (protocol.SessionHandle, error) {
	s.metrics.RPCHandled(protocol.MethodCreateSession)
	if req.Username == "" {
		return protocol.SessionHandle{}, errInvalidArgument("username is required")
	}

	sess := s.state.CreateSession(req.IsPublic, req.MaxMembers)
	s.metrics.SessionCreated()

	auto, err := s.state.JoinSessionInner(sess.ID, req.Username)
	s.applyAutoLeave(req.Username, auto)
	if err != nil {
		// The session was just registered; a failed join here means the
		// registry is inconsistent.
		return protocol.SessionHandle{}, errInternal(err)
	}
	sess.SetHost(req.Username)

	if sess.IsPublic {
		s.state.SessionUpdates.Publish(struct{}{})
	}

	slog.Info("session created",
		"session_id", sess.ID, "username", req.Username,
		"is_public", sess.IsPublic, "max_members", sess.MaxMembers)

	return protocol.SessionHandle{
		SessionID:     sess.ID,
		SessionName:   sess.Name,
		IsPublic:      sess.IsPublic,
		MaxMembers:    sess.MaxMembers,
		ExistingPeers: []string{},
		Host:          req.Username,
	}, nil
}

// JoinSession adds the caller to a session: capacity check, join (with
// auto-leave of any previous session), then MemberJoined fan-out to peers
// whose signal streams were already open. The joiner learns the peer list
// from the response instead.
func (s *Service) JoinSession(req protocol.JoinSessionRequest) (protocol.SessionHandle, error) {
	s.metrics.RPCHandled(protocol.MethodJoinSession)

	sess, ok := s.state.Session(req.SessionID)
	if !ok {
		return protocol.SessionHandle{}, errNotFound("session %q not found", req.SessionID)
	}

	auto, err := s.state.JoinSessionInner(req.SessionID, req.Username)
	s.applyAutoLeave(req.Username, auto)
	switch {
	case errors.Is(err, state.ErrSessionFull):
		return protocol.SessionHandle{}, errResourceExhausted("session is full")
	case err != nil:
		return protocol.SessionHandle{}, errNotFound("session %q not found", req.SessionID)
	}

	existingPeers, host, senders := sess.JoinSnapshot(req.Username)
	if existingPeers == nil {
		existingPeers = []string{}
	}

	if sess.IsPublic {
		s.state.SessionUpdates.Publish(struct{}{})
	}

	sig := &protocol.Signal{
		FromUser:  req.Username,
		SessionID: sess.ID,
		Kind:      protocol.SignalMemberJoined,
		Payload:   req.Username,
	}
	for _, p := range senders {
		p.Send(sig)
		s.metrics.SignalRouted()
	}

	slog.Info("session joined",
		"session_id", sess.ID, "username", req.Username, "peers", len(existingPeers))

	return protocol.SessionHandle{
		SessionID:     sess.ID,
		SessionName:   sess.Name,
		IsPublic:      sess.IsPublic,
		MaxMembers:    sess.MaxMembers,
		ExistingPeers: existingPeers,
		Host:          host,
	}, nil
}

// LeaveSession removes the caller from a session. A duplicate or unknown
// leave is OK with no effects: the index's conditional remove decides the
// single winner and only the winner fans out.
func (s *Service) LeaveSession(req protocol.LeaveSessionRequest) error {
	s.metrics.RPCHandled(protocol.MethodLeaveSession)

	info, won := s.state.LeaveSessionInner(req.SessionID, req.Username)
	if !won {
		return nil
	}
	s.fanOutLeave(req.SessionID, req.Username, info)
	slog.Info("session left", "session_id", req.SessionID, "username", req.Username)
	return nil
}

// GetMembers returns a snapshot of the session's member set.
func (s *Service) GetMembers(req protocol.GetMembersRequest) (protocol.GetMembersResponse, error) {
	s.metrics.RPCHandled(protocol.MethodGetMembers)

	sess, ok := s.state.Session(req.SessionID)
	if !ok {
		return protocol.GetMembersResponse{}, errNotFound("session %q not found", req.SessionID)
	}
	members := sess.Members()
	if members == nil {
		members = []string{}
	}
	return protocol.GetMembersResponse{Members: members}, nil
}

// fanOutLeave runs the post-leave effects for a winning LeaveSessionInner:
// session-list change for public sessions, MemberLeft to the remaining
// peers, and HostChanged to every remaining stream when the host migrated.
// Called with no locks held.
func (s *Service) fanOutLeave(sessionID, username string, info state.LeaveInfo) {
	if info.SessionRemoved {
		s.metrics.SessionRemoved()
	}
	if info.IsPublic {
		s.state.SessionUpdates.Publish(struct{}{})
	}

	if len(info.RemainingSenders) > 0 {
		sig := &protocol.Signal{
			FromUser:  username,
			SessionID: sessionID,
			Kind:      protocol.SignalMemberLeft,
			Payload:   username,
		}
		for _, p := range info.RemainingSenders {
			p.Send(sig)
			s.metrics.SignalRouted()
		}
	}

	if info.NewHost != "" {
		hostSig := &protocol.Signal{
			SessionID: sessionID,
			Kind:      protocol.SignalHostChanged,
			Payload:   info.NewHost,
		}
		for _, p := range info.HostSenders {
			p.Send(hostSig)
			s.metrics.SignalRouted()
		}
		slog.Info("host migrated", "session_id", sessionID, "new_host", info.NewHost)
	}
}

// applyAutoLeave fans out the previous session's leave effects when a join
// displaced the user from another session.
func (s *Service) applyAutoLeave(username string, auto *state.AutoLeave) {
	if auto == nil {
		return
	}
	s.fanOutLeave(auto.SessionID, username, auto.Info)
}
