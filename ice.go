package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/HeatXD/Weyvelength/internal/protocol"
)

const defaultStunURL = "stun:stun.l.google.com:19302"

// buildIceServers assembles the ICE list handed to clients: the given
// STUN URLs (Google's public server when none are given) followed by
// parsed TURN entries. Malformed TURN specs log a warning and are
// skipped.
func buildIceServers(stun, turn []string) []protocol.IceServer {
	if len(stun) == 0 {
		stun = []string{defaultStunURL}
	}

	out := make([]protocol.IceServer, 0, len(stun)+len(turn))
	for _, url := range stun {
		out = append(out, protocol.IceServer{URL: url})
	}
	for _, spec := range turn {
		srv, err := parseTURN(spec)
		if err != nil {
			slog.Warn("ignoring malformed --turn value", "value", spec, "err", err)
			continue
		}
		out = append(out, srv)
	}
	return out
}

// parseTURN parses a "NAME|URL|USER|CRED" spec. The display name must be
// non-empty and the URL must carry a turn:/turns: scheme.
func parseTURN(spec string) (protocol.IceServer, error) {
	parts := strings.SplitN(spec, "|", 4)
	if len(parts) != 4 {
		return protocol.IceServer{}, fmt.Errorf("expected NAME|URL|USER|CRED, got %d fields", len(parts))
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return protocol.IceServer{}, fmt.Errorf("TURN name must not be empty")
	}
	url := strings.TrimSpace(parts[1])
	if !strings.HasPrefix(url, "turn:") && !strings.HasPrefix(url, "turns:") {
		return protocol.IceServer{}, fmt.Errorf("TURN url must start with turn: or turns:")
	}

	return protocol.IceServer{
		Name:       name,
		URL:        url,
		Username:   parts[2],
		Credential: parts[3],
	}, nil
}
