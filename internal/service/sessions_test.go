package service

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/HeatXD/Weyvelength/internal/protocol"
)

func TestGetServerInfo(t *testing.T) {
	svc := newTestService(t)
	info := svc.GetServerInfo()
	if info.ServerName != "test-server" || info.MOTD != "hello" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if len(info.IceServers) != 1 || info.IceServers[0].URL != "stun:stun.example.com:3478" {
		t.Fatalf("unexpected ice servers: %+v", info.IceServers)
	}
}

func TestCreateSessionRequiresUsername(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateSession(protocol.CreateSessionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if ErrorCode(err) != protocol.CodeInvalidArgument {
		t.Fatalf("code = %s, want %s", ErrorCode(err), protocol.CodeInvalidArgument)
	}
}

func TestCreateSessionMakesCreatorHost(t *testing.T) {
	svc := newTestService(t)

	handle, err := svc.CreateSession(protocol.CreateSessionRequest{
		Username: "alice", IsPublic: true, MaxMembers: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if handle.Host != "alice" {
		t.Fatalf("host = %q, want alice", handle.Host)
	}
	if len(handle.ExistingPeers) != 0 {
		t.Fatalf("existing peers = %v, want none", handle.ExistingPeers)
	}
	if handle.MaxMembers != 3 || !handle.IsPublic {
		t.Fatalf("unexpected handle: %+v", handle)
	}

	members, err := svc.GetMembers(protocol.GetMembersRequest{SessionID: handle.SessionID})
	if err != nil {
		t.Fatalf("get members: %v", err)
	}
	if len(members.Members) != 1 || members.Members[0] != "alice" {
		t.Fatalf("members = %v, want [alice]", members.Members)
	}

	list := svc.ListSessions()
	if len(list.Sessions) != 1 {
		t.Fatalf("expected 1 public session, got %d", len(list.Sessions))
	}
	if got := list.Sessions[0]; got.ID != handle.SessionID || got.MemberCount != 1 {
		t.Fatalf("unexpected listing: %+v", got)
	}
}

func TestJoinSessionNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: "NOPE1234", Username: "bob"})
	if ErrorCode(err) != protocol.CodeNotFound {
		t.Fatalf("code = %s, want %s", ErrorCode(err), protocol.CodeNotFound)
	}
}

func TestJoinSessionReturnsPeersAndNotifies(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.CreateSession(protocol.CreateSessionRequest{Username: "alice", MaxMembers: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	alice := openSignalStream(t, svc, created.SessionID, "alice")

	joined, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: created.SessionID, Username: "bob"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.ExistingPeers) != 1 || joined.ExistingPeers[0] != "alice" {
		t.Fatalf("existing peers = %v, want [alice]", joined.ExistingPeers)
	}
	if joined.Host != "alice" {
		t.Fatalf("host = %q, want alice", joined.Host)
	}

	// Alice's open signal stream learns about the join; bob is not
	// notified about himself.
	sig := alice.next(t)
	if sig.Kind != protocol.SignalMemberJoined || sig.Payload != "bob" {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestJoinSessionFull(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.CreateSession(protocol.CreateSessionRequest{Username: "alice", MaxMembers: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: created.SessionID, Username: "bob"}); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	_, err = svc.JoinSession(protocol.JoinSessionRequest{SessionID: created.SessionID, Username: "carol"})
	if ErrorCode(err) != protocol.CodeResourceExhausted {
		t.Fatalf("code = %s, want %s", ErrorCode(err), protocol.CodeResourceExhausted)
	}

	// A current member rejoining a full session succeeds.
	if _, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: created.SessionID, Username: "bob"}); err != nil {
		t.Fatalf("bob rejoin: %v", err)
	}
}

func TestJoinSessionConcurrentLastSlot(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.CreateSession(protocol.CreateSessionRequest{Username: "alice", MaxMembers: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 16
	var wins, exhausted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		user := fmt.Sprintf("user-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: created.SessionID, Username: user})
			switch {
			case err == nil:
				wins.Add(1)
			case ErrorCode(err) == protocol.CodeResourceExhausted:
				exhausted.Add(1)
			default:
				t.Errorf("unexpected error for %s: %v", user, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 || exhausted.Load() != n-1 {
		t.Fatalf("wins = %d, exhausted = %d; want 1 and %d", wins.Load(), exhausted.Load(), n-1)
	}
}

func TestLeaveSessionMigratesHost(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.CreateSession(protocol.CreateSessionRequest{Username: "alice", MaxMembers: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.SessionID
	for _, u := range []string{"bob", "carol"} {
		if _, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: id, Username: u}); err != nil {
			t.Fatalf("join %s: %v", u, err)
		}
	}
	bob := openSignalStream(t, svc, id, "bob")
	carol := openSignalStream(t, svc, id, "carol")

	if err := svc.LeaveSession(protocol.LeaveSessionRequest{SessionID: id, Username: "alice"}); err != nil {
		t.Fatalf("leave: %v", err)
	}

	// Both remaining streams observe the leave and the host change, in
	// that order.
	for name, ss := range map[string]*signalStream{"bob": bob, "carol": carol} {
		sig := ss.next(t)
		if sig.Kind != protocol.SignalMemberLeft || sig.Payload != "alice" {
			t.Fatalf("%s: unexpected first signal: %+v", name, sig)
		}
		sig = ss.next(t)
		if sig.Kind != protocol.SignalHostChanged {
			t.Fatalf("%s: unexpected second signal: %+v", name, sig)
		}
		if sig.Payload != "bob" && sig.Payload != "carol" {
			t.Fatalf("%s: new host %q is not a remaining member", name, sig.Payload)
		}
	}

	sess, ok := svc.State().Session(id)
	if !ok {
		t.Fatal("session gone")
	}
	if h := sess.Host(); h != "bob" && h != "carol" {
		t.Fatalf("host = %q", h)
	}
}

func TestLeaveSessionIdempotent(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.CreateSession(protocol.CreateSessionRequest{Username: "alice", MaxMembers: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.SessionID
	if _, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: id, Username: "bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	alice := openSignalStream(t, svc, id, "alice")

	if err := svc.LeaveSession(protocol.LeaveSessionRequest{SessionID: id, Username: "bob"}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	sig := alice.next(t)
	if sig.Kind != protocol.SignalMemberLeft || sig.Payload != "bob" {
		t.Fatalf("unexpected signal: %+v", sig)
	}

	// Repeating the leave is OK and fans out nothing.
	if err := svc.LeaveSession(protocol.LeaveSessionRequest{SessionID: id, Username: "bob"}); err != nil {
		t.Fatalf("duplicate leave: %v", err)
	}
	alice.expectNone(t)

	// Leaving a session that no longer exists is OK too.
	if err := svc.LeaveSession(protocol.LeaveSessionRequest{SessionID: "NOPE1234", Username: "bob"}); err != nil {
		t.Fatalf("leave unknown session: %v", err)
	}
}

func TestLeaveSessionReapsEmptySession(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.CreateSession(protocol.CreateSessionRequest{Username: "alice", IsPublic: true, MaxMembers: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.LeaveSession(protocol.LeaveSessionRequest{SessionID: created.SessionID, Username: "alice"}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, ok := svc.State().Session(created.SessionID); ok {
		t.Fatal("emptied session still registered")
	}
	if got := svc.ListSessions().Sessions; len(got) != 0 {
		t.Fatalf("expected empty listing, got %v", got)
	}
}

func TestJoinSessionAutoLeavesPrevious(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.CreateSession(protocol.CreateSessionRequest{Username: "alice", MaxMembers: 4})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: first.SessionID, Username: "bob"}); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	alice := openSignalStream(t, svc, first.SessionID, "alice")

	second, err := svc.CreateSession(protocol.CreateSessionRequest{Username: "carol", MaxMembers: 4})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Bob jumps sessions without an explicit leave: the first session's
	// remaining peers hear about it exactly as if he had left.
	if _, err := svc.JoinSession(protocol.JoinSessionRequest{SessionID: second.SessionID, Username: "bob"}); err != nil {
		t.Fatalf("join second: %v", err)
	}

	sig := alice.next(t)
	if sig.Kind != protocol.SignalMemberLeft || sig.Payload != "bob" || sig.SessionID != first.SessionID {
		t.Fatalf("unexpected signal: %+v", sig)
	}

	if id, _ := svc.State().UserSession("bob"); id != second.SessionID {
		t.Fatalf("index = %q, want %q", id, second.SessionID)
	}
	firstSess, ok := svc.State().Session(first.SessionID)
	if !ok {
		t.Fatal("first session gone")
	}
	if firstSess.HasMember("bob") {
		t.Fatal("bob still a member of the first session")
	}
}

func TestGetMembersNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetMembers(protocol.GetMembersRequest{SessionID: "NOPE1234"})
	if ErrorCode(err) != protocol.CodeNotFound {
		t.Fatalf("code = %s, want %s", ErrorCode(err), protocol.CodeNotFound)
	}
}
