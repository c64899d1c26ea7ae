// Package httpapi is the TCP-side Echo application: health and info
// endpoints, Prometheus exposition, and the WebSocket RPC fallback.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HeatXD/Weyvelength/internal/state"
	"github.com/HeatXD/Weyvelength/internal/transport"
)

// Server is the Echo application.
type Server struct {
	echo  *echo.Echo
	state *state.ServerState
}

// New constructs the Echo app with health, info, metrics, and websocket
// routes.
func New(st *state.ServerState, ws *transport.WSHandler, reg *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, state: st}

	e.GET("/health", s.handleHealth)
	e.GET("/api/info", s.handleInfo)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	ws.Register(e)

	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	Sessions      int    `json:"sessions"`
	GlobalMembers int    `json:"global_members"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		Sessions:      s.state.SessionCount() - 1, // global excluded
		GlobalMembers: len(s.state.GlobalMemberList()),
	})
}

type infoResponse struct {
	ServerName     string     `json:"server_name"`
	MOTD           string     `json:"motd"`
	IceServers     []iceEntry `json:"ice_servers"`
	PublicSessions int        `json:"public_sessions"`
}

type iceEntry struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

func (s *Server) handleInfo(c echo.Context) error {
	ice := make([]iceEntry, 0, len(s.state.IceServers))
	for _, srv := range s.state.IceServers {
		// Credentials stay off the unauthenticated HTTP surface; clients
		// get the full list from GetServerInfo.
		ice = append(ice, iceEntry{URL: srv.URL, Name: srv.Name})
	}
	return c.JSON(http.StatusOK, infoResponse{
		ServerName:     s.state.ServerName,
		MOTD:           s.state.MOTD,
		IceServers:     ice,
		PublicSessions: len(s.state.PublicSessions()),
	})
}
