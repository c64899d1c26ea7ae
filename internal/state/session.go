package state

import (
	"sync"

	"github.com/HeatXD/Weyvelength/internal/protocol"
)

// User-session member bounds. CreateSession clamps max_members into this
// range; the global session is exempt (unlimited).
const (
	SessionMinMembers = 2
	SessionMaxMembers = 16
)

// Session is one session record. The identity half (ID, Name, IsPublic,
// MaxMembers, Chat) is immutable after construction and readable without
// synchronization. The mutable half (host, members, signal senders) is
// guarded by mu; critical sections only collect snapshots and never span
// a channel send or stream write.
type Session struct {
	ID         string
	Name       string
	IsPublic   bool
	MaxMembers uint32 // 0 = unlimited
	Chat       *Broadcaster[protocol.ChatMessage]

	mu            sync.Mutex
	host          string
	members       map[string]struct{}
	signalSenders map[string]*SignalPipe
}

func newSession(id, name string, isPublic bool, maxMembers uint32) *Session {
	return &Session{
		ID:            id,
		Name:          name,
		IsPublic:      isPublic,
		MaxMembers:    maxMembers,
		Chat:          NewBroadcaster[protocol.ChatMessage](ChatBacklog),
		members:       make(map[string]struct{}),
		signalSenders: make(map[string]*SignalPipe),
	}
}

// Host returns the current host ("" for the global session or an empty
// user session).
func (s *Session) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// Members returns a snapshot of the member set. Order is not meaningful.
func (s *Session) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	return out
}

// MemberCount returns the current member count.
func (s *Session) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// HasMember reports whether username is in the member set.
func (s *Session) HasMember(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[username]
	return ok
}

// IsFull reports whether another join would exceed MaxMembers.
func (s *Session) IsFull() bool {
	if s.MaxMembers == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.members)) >= s.MaxMembers
}

// JoinSnapshot returns, under one lock hold, what the JoinSession response
// and MemberJoined fan-out need: all members except username, the current
// host, and the senders registered at this instant (the joiner's own
// stream opens only after the RPC returns, so it is never among them).
func (s *Session) JoinSnapshot(username string) (existingPeers []string, host string, senders []*SignalPipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for m := range s.members {
		if m != username {
			existingPeers = append(existingPeers, m)
		}
	}
	senders = make([]*SignalPipe, 0, len(s.signalSenders))
	for _, p := range s.signalSenders {
		senders = append(senders, p)
	}
	return existingPeers, s.host, senders
}

// RegisterSignalSender installs pipe as username's signal sender and
// returns the replaced pipe, if any. The session must still be resolvable
// through the registry when this is called.
func (s *Session) RegisterSignalSender(username string, pipe *SignalPipe) (old *SignalPipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.signalSenders[username]
	s.signalSenders[username] = pipe
	return old
}

// RemoveSignalSender removes username's sender entry, but only if it still
// is pipe. Returns false when a newer stream already replaced the entry,
// in which case the newer stream owns the membership and the caller must
// not run the implicit-leave path.
func (s *Session) RemoveSignalSender(username string, pipe *SignalPipe) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signalSenders[username] != pipe {
		return false
	}
	delete(s.signalSenders, username)
	return true
}

// SenderFor returns the signal sender registered for username, if any.
func (s *Session) SenderFor(username string) (*SignalPipe, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.signalSenders[username]
	return p, ok
}

func (s *Session) addMember(username string) {
	s.mu.Lock()
	s.members[username] = struct{}{}
	s.mu.Unlock()
}

// tryAddMember admits username unless the session is at capacity. Checking
// and inserting under one lock hold is what makes concurrent joins race
// for the last slot correctly. A user already in the member set is always
// readmitted.
func (s *Session) tryAddMember(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[username]; ok {
		return true
	}
	if s.MaxMembers != 0 && uint32(len(s.members)) >= s.MaxMembers {
		return false
	}
	s.members[username] = struct{}{}
	return true
}

func (s *Session) removeMember(username string) {
	s.mu.Lock()
	delete(s.members, username)
	s.mu.Unlock()
}

// SetHost assigns the session host. Used at creation time; later host
// changes happen only inside the leave protocol.
func (s *Session) SetHost(username string) {
	s.mu.Lock()
	s.host = username
	s.mu.Unlock()
}

func (s *Session) info() protocol.SessionInfo {
	return protocol.SessionInfo{
		ID:          s.ID,
		Name:        s.Name,
		MemberCount: uint32(s.MemberCount()),
		IsPublic:    s.IsPublic,
		MaxMembers:  s.MaxMembers,
	}
}
