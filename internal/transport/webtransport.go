package transport

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"

	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
)

// RTCPath is the WebTransport upgrade endpoint for the RPC plane.
const RTCPath = "/rtc"

// WebTransportServer is the primary RPC plane: one WebTransport session
// per client, one bidi stream per call.
type WebTransportServer struct {
	addr       string
	tlsConfig  *tls.Config
	dispatcher *Dispatcher
	wt         *webtransport.Server
}

// NewWebTransportServer builds the HTTP/3 + WebTransport listener.
func NewWebTransportServer(addr string, tlsConfig *tls.Config, d *Dispatcher) *WebTransportServer {
	return &WebTransportServer{addr: addr, tlsConfig: tlsConfig, dispatcher: d}
}

// Run starts the server and blocks until the context is canceled or the
// listener fails (a bind failure surfaces here).
func (s *WebTransportServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	s.wt = &webtransport.Server{
		H3: &http3.Server{
			Addr:      s.addr,
			TLSConfig: s.tlsConfig,
			Handler:   mux,
		},
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	webtransport.ConfigureHTTP3Server(s.wt.H3)

	mux.HandleFunc(RTCPath, func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.wt.Upgrade(w, r)
		if err != nil {
			slog.Warn("webtransport upgrade failed", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		go s.serveSession(ctx, sess)
	})

	go func() {
		<-ctx.Done()
		s.wt.Close()
	}()

	slog.Info("webtransport listening", "addr", s.addr, "path", RTCPath)
	return s.wt.ListenAndServe()
}

// serveSession accepts call streams from one client until the session or
// server context ends. Every stream is an independent call; hanging up a
// stream cancels only that call.
func (s *WebTransportServer) serveSession(ctx context.Context, sess *webtransport.Session) {
	defer sess.CloseWithError(0, "bye")

	for {
		stream, err := sess.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.dispatcher.ServeCall(ctx, newLineFrameConn(stream))
	}
}
