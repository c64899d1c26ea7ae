package state

import (
	"errors"
	"log/slog"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/HeatXD/Weyvelength/internal/protocol"
)

// Join failures distinguished by JoinSessionInner.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
)

// LeaveInfo is what the winning leave call must fan out after all locks
// are released. The snapshots are taken inside the session's critical
// section, so the chosen host is guaranteed to still be a member.
type LeaveInfo struct {
	// RemainingSenders are the signal senders of every remaining peer,
	// targets for the MemberLeft fan-out.
	RemainingSenders []*SignalPipe
	// IsPublic tells the caller whether to publish a session-list change.
	IsPublic bool
	// NewHost is set when the leaver was host and members remain; it is
	// fanned out as HostChanged to HostSenders (all remaining streams,
	// the new host's included).
	NewHost     string
	HostSenders []*SignalPipe
	// SessionRemoved is set when the session emptied and was reaped.
	SessionRemoved bool
}

// AutoLeave reports a join's side effect on the user's previous session.
type AutoLeave struct {
	SessionID string
	Info      LeaveInfo
}

// LeaveSessionInner removes username from sessionID: the single source of
// truth for leaves, shared by explicit LeaveSession, stream-close implicit
// leave, and auto-leave on join. The index's compare-and-remove is the
// atomicity gate — of any number of concurrent duplicate calls exactly one
// returns ok=true, and only that caller runs the fan-out.
func (st *ServerState) LeaveSessionInner(sessionID, username string) (LeaveInfo, bool) {
	won := false
	st.userIndex.Compute(username, func(old string, loaded bool) (string, xsync.ComputeOp) {
		if loaded && old == sessionID {
			won = true
			return "", xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
	if !won {
		return LeaveInfo{}, false
	}

	sess, ok := st.sessions.Load(sessionID)
	if !ok {
		// Session vanished between lookup and lock; the index entry is
		// gone either way, so treat as a completed leave with no fan-out.
		return LeaveInfo{}, true
	}

	sess.mu.Lock()
	delete(sess.members, username)
	delete(sess.signalSenders, username)
	wasHost := sess.host == username

	info := LeaveInfo{IsPublic: sess.IsPublic}
	info.RemainingSenders = make([]*SignalPipe, 0, len(sess.signalSenders))
	for _, p := range sess.signalSenders {
		info.RemainingSenders = append(info.RemainingSenders, p)
	}

	if wasHost {
		sess.host = ""
		if len(sess.members) > 0 {
			// Any remaining member will do; it is a member right now,
			// under this lock, so it cannot have just left.
			for m := range sess.members {
				sess.host = m
				break
			}
			info.NewHost = sess.host
			info.HostSenders = make([]*SignalPipe, 0, len(sess.signalSenders))
			for _, p := range sess.signalSenders {
				info.HostSenders = append(info.HostSenders, p)
			}
		}
	}
	isEmpty := len(sess.members) == 0
	sess.mu.Unlock()

	if isEmpty && sessionID != protocol.GlobalSessionID {
		st.sessions.Delete(sessionID)
		info.SessionRemoved = true
		slog.Info("session reaped", "session_id", sessionID)
	}
	return info, true
}

// JoinSessionInner inserts username into sessionID. Admission happens
// first, atomically with the capacity check, so concurrent joins race for
// the last slot and exactly one wins; a rejected join has no side effects.
// Only after admission is any different previous session auto-left via
// LeaveSessionInner (never holding two session locks at once). The
// returned AutoLeave, when non-nil, carries the previous session's
// fan-out obligations.
func (st *ServerState) JoinSessionInner(sessionID, username string) (*AutoLeave, error) {
	sess, ok := st.sessions.Load(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !sess.tryAddMember(username) {
		return nil, ErrSessionFull
	}

	var auto *AutoLeave
	if prevID, ok := st.userIndex.Load(username); ok && prevID != sessionID {
		if info, left := st.LeaveSessionInner(prevID, username); left {
			auto = &AutoLeave{SessionID: prevID, Info: info}
		}
	}

	st.userIndex.Store(username, sessionID)
	return auto, nil
}
