package protocol

import "testing"

func TestSignalKindDirected(t *testing.T) {
	directed := []SignalKind{SignalSdpOffer, SignalSdpAnswer, SignalIceCandidate}
	broadcast := []SignalKind{SignalMemberJoined, SignalMemberLeft, SignalHostChanged}

	for _, k := range directed {
		if !k.Directed() {
			t.Fatalf("%s should be directed", k)
		}
	}
	for _, k := range broadcast {
		if k.Directed() {
			t.Fatalf("%s should not be directed", k)
		}
	}
}

func TestGlobalSessionIDOutsideLobbyAlphabet(t *testing.T) {
	// Generated lobby codes are 8 chars of [A-Z0-9]; the reserved id must
	// never collide with one.
	if len(GlobalSessionID) == 8 {
		t.Fatal("reserved id must not look like a lobby code")
	}
}
