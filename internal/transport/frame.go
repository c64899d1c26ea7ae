// Package transport carries the RPC surface over the wire: one frame
// stream per call, dispatched to the service layer. Two planes share the
// dispatcher — WebTransport bidi streams and a WebSocket fallback.
package transport

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// FrameConn is one call's framed byte stream. ReadFrame blocks until the
// peer sends a frame or the stream dies; WriteFrame must be safe for the
// single writer the dispatcher runs.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame([]byte) error
	Close() error
}

// lineFrameConn frames newline-delimited JSON over any byte stream, the
// encoding used on WebTransport streams.
type lineFrameConn struct {
	r  *bufio.Reader
	mu sync.Mutex
	w  io.WriteCloser
}

func newLineFrameConn(rw io.ReadWriteCloser) *lineFrameConn {
	return &lineFrameConn{r: bufio.NewReader(rw), w: rw}
}

func (c *lineFrameConn) ReadFrame() ([]byte, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (c *lineFrameConn) WriteFrame(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	_, err := c.w.Write([]byte{'\n'})
	return err
}

func (c *lineFrameConn) Close() error {
	return c.w.Close()
}

// wsFrameConn frames each JSON envelope as one websocket text message.
type wsFrameConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSFrameConn(conn *websocket.Conn) *wsFrameConn {
	return &wsFrameConn{conn: conn}
}

func (c *wsFrameConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsFrameConn) WriteFrame(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *wsFrameConn) Close() error {
	return c.conn.Close()
}
