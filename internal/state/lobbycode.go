package state

import "github.com/google/uuid"

const lobbyCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LobbyCodeLength is the length of generated session ids.
const LobbyCodeLength = 8

// GenerateLobbyCode returns a random session id over [A-Z0-9] that is not
// currently registered. Candidates come from the first bytes of a random
// UUID; collisions just retry. The reserved global id contains characters
// outside the alphabet and can never be produced.
func (st *ServerState) GenerateLobbyCode() string {
	for {
		id := uuid.New()
		buf := make([]byte, LobbyCodeLength)
		for i := 0; i < LobbyCodeLength; i++ {
			buf[i] = lobbyCodeChars[int(id[i])%len(lobbyCodeChars)]
		}
		code := string(buf)
		if _, exists := st.sessions.Load(code); !exists {
			return code
		}
	}
}
