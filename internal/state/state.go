package state

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/HeatXD/Weyvelength/internal/protocol"
)

// ServerState is the process-wide signaling state: the session registry,
// the authoritative user→session index, the two control-plane notifiers,
// and the per-user global-stream reference counts. Both maps are sharded
// concurrent maps, so independent sessions never contend; anything that
// must be atomic with a predicate goes through Compute on the index.
type ServerState struct {
	ServerName string
	MOTD       string
	IceServers []protocol.IceServer

	sessions  *xsync.Map[string, *Session]
	userIndex *xsync.Map[string, string]

	// SessionUpdates fires whenever the public session list changes
	// (create, destroy, membership change). GlobalMembers fires on any
	// change to the global session's member set. Publish only after all
	// session locks are released.
	SessionUpdates *Broadcaster[struct{}]
	GlobalMembers  *Broadcaster[struct{}]

	// refsMu guards globalRefs and, for the two ref-count transitions,
	// the global session's member mutation, so invariant "member iff
	// refs ≥ 1" holds at every boundary. Lock order: refsMu before the
	// session mutex; nothing else takes both.
	refsMu     sync.Mutex
	globalRefs map[string]int
}

// New builds the server state with the global session already present.
func New(serverName, motd string, iceServers []protocol.IceServer) *ServerState {
	st := &ServerState{
		ServerName:     serverName,
		MOTD:           motd,
		IceServers:     iceServers,
		sessions:       xsync.NewMap[string, *Session](),
		userIndex:      xsync.NewMap[string, string](),
		SessionUpdates: NewBroadcaster[struct{}](NotifyBacklog),
		GlobalMembers:  NewBroadcaster[struct{}](NotifyBacklog),
		globalRefs:     make(map[string]int),
	}
	st.sessions.Store(protocol.GlobalSessionID,
		newSession(protocol.GlobalSessionID, "global", false, 0))
	return st
}

// Session resolves a session by id.
func (st *ServerState) Session(id string) (*Session, bool) {
	return st.sessions.Load(id)
}

// SessionCount returns the number of registered sessions, including the
// global one.
func (st *ServerState) SessionCount() int {
	return st.sessions.Size()
}

// CreateSession allocates a fresh lobby code, clamps maxMembers into
// [SessionMinMembers, SessionMaxMembers], and registers the session.
// The session name defaults to its id.
func (st *ServerState) CreateSession(isPublic bool, maxMembers uint32) *Session {
	if maxMembers < SessionMinMembers {
		maxMembers = SessionMinMembers
	} else if maxMembers > SessionMaxMembers {
		maxMembers = SessionMaxMembers
	}
	code := st.GenerateLobbyCode()
	sess := newSession(code, code, isPublic, maxMembers)
	st.sessions.Store(code, sess)
	return sess
}

// PublicSessions builds the snapshot served by ListSessions and the
// session-updates stream: every public non-global session. Session
// references are collected first under the map's shard locks only; each
// member count is then sampled under that session's own lock.
func (st *ServerState) PublicSessions() []protocol.SessionInfo {
	var candidates []*Session
	st.sessions.Range(func(id string, sess *Session) bool {
		if id != protocol.GlobalSessionID && sess.IsPublic {
			candidates = append(candidates, sess)
		}
		return true
	})

	out := make([]protocol.SessionInfo, 0, len(candidates))
	for _, sess := range candidates {
		out = append(out, sess.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UserSession returns the session id the user is currently mapped to.
func (st *ServerState) UserSession(username string) (string, bool) {
	return st.userIndex.Load(username)
}

// GlobalMemberList returns the current global-presence snapshot.
func (st *ServerState) GlobalMemberList() []string {
	global, ok := st.sessions.Load(protocol.GlobalSessionID)
	if !ok {
		return []string{}
	}
	members := global.Members()
	sort.Strings(members)
	return members
}

// GlobalStreamOpen counts one more global messages stream for username.
// On the 0→1 transition the user enters the global member set and the
// caller must publish a global-members change.
func (st *ServerState) GlobalStreamOpen(username string) (newlyAdded bool) {
	st.refsMu.Lock()
	defer st.refsMu.Unlock()

	st.globalRefs[username]++
	if st.globalRefs[username] != 1 {
		return false
	}
	if global, ok := st.sessions.Load(protocol.GlobalSessionID); ok {
		global.addMember(username)
	}
	slog.Info("global presence up", "username", username)
	return true
}

// GlobalStreamClose counts one global messages stream gone. On the 1→0
// transition the user leaves the global member set and the caller must
// publish a global-members change.
func (st *ServerState) GlobalStreamClose(username string) (removed bool) {
	st.refsMu.Lock()
	defer st.refsMu.Unlock()

	if st.globalRefs[username] > 0 {
		st.globalRefs[username]--
	}
	if st.globalRefs[username] != 0 {
		return false
	}
	delete(st.globalRefs, username)
	if global, ok := st.sessions.Load(protocol.GlobalSessionID); ok {
		global.removeMember(username)
	}
	slog.Info("global presence down", "username", username)
	return true
}

// GlobalStreamRefs returns the current reference count for username.
func (st *ServerState) GlobalStreamRefs(username string) int {
	st.refsMu.Lock()
	defer st.refsMu.Unlock()
	return st.globalRefs[username]
}

// NowTimestamp is the server clock used for chat messages, in Unix
// seconds.
func NowTimestamp() int64 {
	return time.Now().Unix()
}
