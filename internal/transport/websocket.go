package transport

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WSHandler is the WebSocket fallback plane for clients without
// WebTransport: one websocket connection per call, same envelopes.
type WSHandler struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a websocket handler bound to the dispatcher.
func NewWSHandler(d *Dispatcher) *WSHandler {
	return &WSHandler{
		dispatcher: d,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds the websocket route on an Echo router.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.Handle)
}

// Handle upgrades one request and serves the call until it completes.
func (h *WSHandler) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.dispatcher.ServeCall(c.Request().Context(), newWSFrameConn(conn))
	return nil
}
