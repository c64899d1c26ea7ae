package protocol

import "encoding/json"

// RPC method names. Each call travels on its own transport stream: the
// client writes one Request frame, the server answers with one Response
// frame for unary methods or a Response frame per event for streams.
const (
	MethodGetServerInfo        = "GetServerInfo"
	MethodListSessions         = "ListSessions"
	MethodCreateSession        = "CreateSession"
	MethodJoinSession          = "JoinSession"
	MethodLeaveSession         = "LeaveSession"
	MethodGetMembers           = "GetMembers"
	MethodSendMessage          = "SendMessage"
	MethodSendSignal           = "SendSignal"
	MethodStreamMessages       = "StreamMessages"
	MethodStreamSignals        = "StreamSignals"
	MethodStreamSessionUpdates = "StreamSessionUpdates"
	MethodStreamGlobalMembers  = "StreamGlobalMembers"
)

// ErrorCode is the wire-level error taxonomy.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "not_found"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeInternal          ErrorCode = "internal"
)

// Request is the envelope a client writes to open a call.
type Request struct {
	Method string          `json:"method"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Response is the envelope the server writes back. For streaming methods
// every event is a Response with OK set and the event in Body.
type Response struct {
	OK    bool            `json:"ok"`
	Error *Error          `json:"error,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// Error is the wire form of a failed call.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
