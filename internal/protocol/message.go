package protocol

// GlobalSessionID is the reserved id of the always-present global session.
// It is outside the lobby-code alphabet, so generated codes can never
// collide with it.
const GlobalSessionID = "__global__"

// SignalKind labels a control-plane signal.
type SignalKind string

const (
	// Directed signals: ToUser carries the recipient.
	SignalSdpOffer     SignalKind = "sdp_offer"
	SignalSdpAnswer    SignalKind = "sdp_answer"
	SignalIceCandidate SignalKind = "ice_candidate"

	// Broadcast signals: ToUser is empty, Payload carries the affected
	// username (or the new host for SignalHostChanged).
	SignalMemberJoined SignalKind = "member_joined"
	SignalMemberLeft   SignalKind = "member_left"
	SignalHostChanged  SignalKind = "host_changed"
)

// Directed reports whether the signal kind is point-to-point rather than
// a membership fan-out.
func (k SignalKind) Directed() bool {
	switch k {
	case SignalSdpOffer, SignalSdpAnswer, SignalIceCandidate:
		return true
	}
	return false
}

// Signal is one control-plane message delivered on a signal stream.
// Payload is SDP text for offers/answers, a JSON ICE-candidate init for
// ice candidates, and a username for the membership/host kinds.
type Signal struct {
	FromUser  string     `json:"from_user"`
	ToUser    string     `json:"to_user,omitempty"`
	SessionID string     `json:"session_id"`
	Kind      SignalKind `json:"kind"`
	Payload   string     `json:"payload"`
}

// ChatMessage is one chat line as observed by messages-stream subscribers.
// Timestamp is Unix seconds assigned by the server.
type ChatMessage struct {
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// SessionInfo is the public snapshot of one session.
type SessionInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount uint32 `json:"member_count"`
	IsPublic    bool   `json:"is_public"`
	MaxMembers  uint32 `json:"max_members"` // 0 = unlimited
}

// IceServer describes one STUN or TURN entry handed to clients.
// The URL prefix identifies the kind (stun:/stuns:/turn:/turns:).
// STUN entries have empty credentials; TURN entries carry a display name.
type IceServer struct {
	URL        string `json:"url"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
	Name       string `json:"name,omitempty"`
}

// SessionsUpdatedEvent is one emission of the session-updates stream.
type SessionsUpdatedEvent struct {
	Sessions []SessionInfo `json:"sessions"`
}

// GlobalMembersEvent is one emission of the global-members stream.
type GlobalMembersEvent struct {
	Members []string `json:"members"`
}

// ── unary request/response payloads ─────────────────────────────────────

type GetServerInfoResponse struct {
	ServerName string      `json:"server_name"`
	MOTD       string      `json:"motd"`
	IceServers []IceServer `json:"ice_servers"`
}

type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type CreateSessionRequest struct {
	Username   string `json:"username"`
	IsPublic   bool   `json:"is_public"`
	MaxMembers uint32 `json:"max_members"`
}

type JoinSessionRequest struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

// SessionHandle is returned by both CreateSession and JoinSession.
// ExistingPeers excludes the caller; its order is not meaningful.
type SessionHandle struct {
	SessionID     string   `json:"session_id"`
	SessionName   string   `json:"session_name"`
	IsPublic      bool     `json:"is_public"`
	MaxMembers    uint32   `json:"max_members"`
	ExistingPeers []string `json:"existing_peers"`
	Host          string   `json:"host"`
}

type LeaveSessionRequest struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

type GetMembersRequest struct {
	SessionID string `json:"session_id"`
}

type GetMembersResponse struct {
	Members []string `json:"members"`
}

type SendMessageRequest struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
}

type SendSignalRequest struct {
	Signal *Signal `json:"signal"`
}

// ── stream request payloads ──────────────────────────────────────────────

type StreamMessagesRequest struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

type StreamSignalsRequest struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}
