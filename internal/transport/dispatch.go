package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/HeatXD/Weyvelength/internal/metrics"
	"github.com/HeatXD/Weyvelength/internal/protocol"
	"github.com/HeatXD/Weyvelength/internal/service"
)

// Dispatcher maps request frames onto service calls. One ServeCall per
// transport stream: read the request envelope, run the method, write one
// response (unary) or a response per event (streaming) until either side
// closes.
type Dispatcher struct {
	svc     *service.Service
	metrics *metrics.Metrics
}

// NewDispatcher builds a dispatcher over svc.
func NewDispatcher(svc *service.Service, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{svc: svc, metrics: m}
}

// ServeCall handles one call and returns when it completes or the client
// hangs up. The reader goroutine doubles as the downstream-closed signal:
// clients send nothing after the request, so any read result means the
// stream ended and the call context is canceled.
func (d *Dispatcher) ServeCall(ctx context.Context, fc FrameConn) {
	defer fc.Close()

	raw, err := fc.ReadFrame()
	if err != nil {
		return
	}
	var req protocol.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		d.writeError(fc, &service.Error{
			Code:    protocol.CodeInvalidArgument,
			Message: "malformed request envelope",
		})
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for {
			if _, err := fc.ReadFrame(); err != nil {
				cancel()
				return
			}
		}
	}()

	if err := d.dispatch(ctx, fc, req); err != nil {
		d.writeError(fc, err)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, fc FrameConn, req protocol.Request) error {
	switch req.Method {
	case protocol.MethodGetServerInfo:
		return writeOK(fc, d.svc.GetServerInfo())

	case protocol.MethodListSessions:
		return writeOK(fc, d.svc.ListSessions())

	case protocol.MethodCreateSession:
		body, err := decode[protocol.CreateSessionRequest](req.Body)
		if err != nil {
			return err
		}
		resp, err := d.svc.CreateSession(body)
		if err != nil {
			return err
		}
		return writeOK(fc, resp)

	case protocol.MethodJoinSession:
		body, err := decode[protocol.JoinSessionRequest](req.Body)
		if err != nil {
			return err
		}
		resp, err := d.svc.JoinSession(body)
		if err != nil {
			return err
		}
		return writeOK(fc, resp)

	case protocol.MethodLeaveSession:
		body, err := decode[protocol.LeaveSessionRequest](req.Body)
		if err != nil {
			return err
		}
		if err := d.svc.LeaveSession(body); err != nil {
			return err
		}
		return writeOK(fc, struct{}{})

	case protocol.MethodGetMembers:
		body, err := decode[protocol.GetMembersRequest](req.Body)
		if err != nil {
			return err
		}
		resp, err := d.svc.GetMembers(body)
		if err != nil {
			return err
		}
		return writeOK(fc, resp)

	case protocol.MethodSendMessage:
		body, err := decode[protocol.SendMessageRequest](req.Body)
		if err != nil {
			return err
		}
		if err := d.svc.SendMessage(body); err != nil {
			return err
		}
		return writeOK(fc, struct{}{})

	case protocol.MethodSendSignal:
		body, err := decode[protocol.SendSignalRequest](req.Body)
		if err != nil {
			return err
		}
		if err := d.svc.SendSignal(body); err != nil {
			return err
		}
		return writeOK(fc, struct{}{})

	case protocol.MethodStreamMessages:
		body, err := decode[protocol.StreamMessagesRequest](req.Body)
		if err != nil {
			return err
		}
		return d.svc.StreamMessages(ctx, body, func(msg protocol.ChatMessage) error {
			return writeOK(fc, msg)
		})

	case protocol.MethodStreamSignals:
		body, err := decode[protocol.StreamSignalsRequest](req.Body)
		if err != nil {
			return err
		}
		return d.svc.StreamSignals(ctx, body, func(sig *protocol.Signal) error {
			return writeOK(fc, sig)
		})

	case protocol.MethodStreamSessionUpdates:
		return d.svc.StreamSessionUpdates(ctx, func(ev protocol.SessionsUpdatedEvent) error {
			return writeOK(fc, ev)
		})

	case protocol.MethodStreamGlobalMembers:
		return d.svc.StreamGlobalMembers(ctx, func(ev protocol.GlobalMembersEvent) error {
			return writeOK(fc, ev)
		})

	default:
		return &service.Error{
			Code:    protocol.CodeInvalidArgument,
			Message: "unknown method " + req.Method,
		}
	}
}

func (d *Dispatcher) writeError(fc FrameConn, err error) {
	code := service.ErrorCode(err)
	d.metrics.RPCError(string(code))

	msg := err.Error()
	var se *service.Error
	if errors.As(err, &se) {
		msg = se.Message
	}
	resp := protocol.Response{
		OK:    false,
		Error: &protocol.Error{Code: code, Message: msg},
	}
	raw, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		slog.Error("marshal error response", "err", marshalErr)
		return
	}
	_ = fc.WriteFrame(raw)
}

func writeOK(fc FrameConn, body any) error {
	rawBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(protocol.Response{OK: true, Body: rawBody})
	if err != nil {
		return err
	}
	return fc.WriteFrame(raw)
}

func decode[T any](body json.RawMessage) (T, error) {
	var v T
	if len(body) == 0 {
		return v, &service.Error{
			Code:    protocol.CodeInvalidArgument,
			Message: "missing request body",
		}
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, &service.Error{
			Code:    protocol.CodeInvalidArgument,
			Message: "malformed request body",
		}
	}
	return v, nil
}
