package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

const (
	envICEServersJSON = "ICE_SERVERS_JSON"

	envStunURLs       = "STUN_URLS"
	envTurnURLs       = "TURN_URLS"
	envTurnUsername   = "TURN_USERNAME"
	envTurnCredential = "TURN_CREDENTIAL"
)

// parseICEServersFromValues resolves the client-facing STUN/TURN list.
// ICE_SERVERS_JSON wins when set; otherwise the convenience vars apply.
func parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential string) ([]webrtc.ICEServer, error) {
	if raw := strings.TrimSpace(iceServersJSON); raw != "" {
		servers, err := ParseICEServersJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envICEServersJSON, err)
		}
		return servers, nil
	}
	return parseICEServersFromConvenienceEnv(stunURLs, turnURLs, turnUsername, turnCredential)
}

type iceServerJSON struct {
	URLs       stringOrStringSlice `json:"urls"`
	Username   string              `json:"username,omitempty"`
	Credential string              `json:"credential,omitempty"`
}

// toICEServer trims and validates one JSON entry.
func (s iceServerJSON) toICEServer() (webrtc.ICEServer, error) {
	server := webrtc.ICEServer{Username: strings.TrimSpace(s.Username)}
	for _, url := range s.URLs {
		if url = strings.TrimSpace(url); url != "" {
			server.URLs = append(server.URLs, url)
		}
	}
	if cred := strings.TrimSpace(s.Credential); cred != "" {
		server.Credential = s.Credential
	}
	return server, validateICEServer(server)
}

type stringOrStringSlice []string

func (s *stringOrStringSlice) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ParseICEServersJSON parses and validates an ICE_SERVERS_JSON document: a
// JSON array in the shape browsers accept for RTCConfiguration.iceServers.
func ParseICEServersJSON(raw string) ([]webrtc.ICEServer, error) {
	var entries []iceServerJSON
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}

	out := make([]webrtc.ICEServer, 0, len(entries))
	for i, entry := range entries {
		server, err := entry.toICEServer()
		if err != nil {
			return nil, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		out = append(out, server)
	}
	return out, nil
}

// parseICEServersFromConvenienceEnv builds the ICE server list from the
// comma-separated STUN_URLS/TURN_URLS vars. TURN requires both credentials.
func parseICEServersFromConvenienceEnv(stunURLs, turnURLs, turnUsername, turnCredential string) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer

	if stun := splitCommaSeparated(stunURLs); len(stun) > 0 {
		server := webrtc.ICEServer{URLs: stun}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("%s: %w", envStunURLs, err)
		}
		servers = append(servers, server)
	}

	turn := splitCommaSeparated(turnURLs)
	if len(turn) == 0 {
		return servers, nil
	}
	turnUsername = strings.TrimSpace(turnUsername)
	turnCredential = strings.TrimSpace(turnCredential)
	if turnUsername == "" || turnCredential == "" {
		return nil, fmt.Errorf("%s/%s: both must be set when %s is set", envTurnUsername, envTurnCredential, envTurnURLs)
	}
	server := webrtc.ICEServer{
		URLs:       turn,
		Username:   turnUsername,
		Credential: turnCredential,
	}
	if err := validateICEServer(server); err != nil {
		return nil, fmt.Errorf("%s: %w", envTurnURLs, err)
	}
	return append(servers, server), nil
}

func splitCommaSeparated(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}

	needsCreds := false
	for _, url := range server.URLs {
		turn, err := classifyICEURL(url)
		if err != nil {
			return err
		}
		needsCreds = needsCreds || turn
	}
	if !needsCreds {
		return nil
	}

	if server.Username == "" {
		return errors.New("turn urls require username")
	}
	if cred, ok := server.Credential.(string); !ok || strings.TrimSpace(cred) == "" {
		return errors.New("turn urls require credential")
	}
	return nil
}

// classifyICEURL reports whether the url is a TURN url (credentials needed)
// and rejects schemes that are not STUN or TURN.
func classifyICEURL(url string) (bool, error) {
	scheme, _, ok := strings.Cut(url, ":")
	if !ok {
		return false, fmt.Errorf("unsupported url scheme: %q", url)
	}
	switch scheme {
	case "stun", "stuns":
		return false, nil
	case "turn", "turns":
		return true, nil
	default:
		return false, fmt.Errorf("unsupported url scheme: %q", url)
	}
}
