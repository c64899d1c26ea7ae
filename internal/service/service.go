// Package service implements the signaling RPC surface on top of the
// in-memory session state: unary session/membership/chat/signal calls and
// the four long-lived server-push streams.
package service

import (
	"errors"
	"fmt"

	"github.com/HeatXD/Weyvelength/internal/metrics"
	"github.com/HeatXD/Weyvelength/internal/protocol"
	"github.com/HeatXD/Weyvelength/internal/state"
)

// Service wires the RPC surface to server state and instrumentation.
type Service struct {
	state   *state.ServerState
	metrics *metrics.Metrics
}

// New builds the service.
func New(st *state.ServerState, m *metrics.Metrics) *Service {
	return &Service{state: st, metrics: m}
}

// State exposes the underlying server state for transports and tests.
func (s *Service) State() *state.ServerState {
	return s.state
}

// Error is an RPC failure with a wire-level code.
type Error struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errNotFound(format string, args ...any) *Error {
	return &Error{Code: protocol.CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func errResourceExhausted(msg string) *Error {
	return &Error{Code: protocol.CodeResourceExhausted, Message: msg}
}

func errInvalidArgument(msg string) *Error {
	return &Error{Code: protocol.CodeInvalidArgument, Message: msg}
}

func errInternal(err error) *Error {
	return &Error{Code: protocol.CodeInternal, Message: err.Error()}
}

// ErrorCode maps any error to its wire code, defaulting to internal.
func ErrorCode(err error) protocol.ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return protocol.CodeInternal
}

// GetServerInfo returns the immutable server identity and ICE list.
func (s *Service) GetServerInfo() protocol.GetServerInfoResponse {
	s.metrics.RPCHandled(protocol.MethodGetServerInfo)
	return protocol.GetServerInfoResponse{
		ServerName: s.state.ServerName,
		MOTD:       s.state.MOTD,
		IceServers: s.state.IceServers,
	}
}
