package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HeatXD/Weyvelength/internal/httpapi"
	"github.com/HeatXD/Weyvelength/internal/metrics"
	"github.com/HeatXD/Weyvelength/internal/service"
	"github.com/HeatXD/Weyvelength/internal/state"
	"github.com/HeatXD/Weyvelength/internal/transport"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

const selfSignedValidity = 14 * 24 * time.Hour

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	host := flag.String("host", "0.0.0.0", "Listen host")
	port := flag.Int("port", 50051, "Listen port (UDP for WebTransport, TCP for the HTTP API)")
	name := flag.String("name", "Weyvelength Server", "Server display name")
	motd := flag.String("motd", "Welcome!", "Message of the day")
	certFile := flag.String("cert", "", "TLS certificate PEM (self-signed when unset)")
	keyFile := flag.String("key", "", "TLS key PEM")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	var stun stringList
	flag.Var(&stun, "stun", "STUN server URL (repeatable; default Google STUN)")
	var turn stringList
	flag.Var(&turn, "turn", `Named TURN server (repeatable): "NAME|URL|USER|CRED"`)
	flag.Parse()

	// Auto-enable debug logging for dev builds; override with -debug flag.
	level := slog.LevelInfo
	if *debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	slog.Info("starting server", "version", Version, "addr", addr, "name", *name)

	iceServers := buildIceServers(stun, turn)

	var tlsConfig *tls.Config
	if *certFile != "" || *keyFile != "" {
		cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
		if err != nil {
			slog.Error("load TLS key pair", "err", err)
			os.Exit(1)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	} else {
		var fingerprint string
		var err error
		tlsConfig, fingerprint, err = generateTLSConfig(selfSignedValidity, *host)
		if err != nil {
			slog.Error("generate TLS config", "err", err)
			os.Exit(1)
		}
		slog.Info("using self-signed certificate", "sha256", fingerprint)
	}

	st := state.New(*name, *motd, iceServers)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := service.New(st, m)
	dispatcher := transport.NewDispatcher(svc, m)

	api := httpapi.New(st, transport.NewWSHandler(dispatcher), reg)
	wts := transport.NewWebTransportServer(addr, tlsConfig, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("received interrupt, shutting down")
		cancel()
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- api.Run(ctx, addr) }()
	go func() { errCh <- wts.Run(ctx) }()

	// Either plane failing to bind (or dying later) is fatal; a clean
	// return after cancellation is a normal shutdown.
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && ctx.Err() == nil {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
		cancel()
	}
	slog.Info("server stopped")
}
