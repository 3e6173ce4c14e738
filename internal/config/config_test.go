package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(lookupFrom(nil), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.LogFormat != LogFormatText || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("dev logging defaults = %q/%v", cfg.LogFormat, cfg.LogLevel)
	}
	if cfg.AuthMode != AuthModeNone {
		t.Errorf("AuthMode = %q", cfg.AuthMode)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Errorf("MaxMessageBytes = %d", cfg.MaxMessageBytes)
	}
	if cfg.WSPingInterval >= cfg.WSIdleTimeout {
		t.Errorf("ping interval %v not below idle timeout %v", cfg.WSPingInterval, cfg.WSIdleTimeout)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want disabled", cfg.RedisAddr)
	}
}

func TestLoad_ProdModeSwitchesLogDefaults(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{"SIGNALING_MODE": "prod"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("prod logging defaults = %q/%v", cfg.LogFormat, cfg.LogLevel)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	env := map[string]string{
		"SIGNALING_LISTEN_ADDR": "127.0.0.1:9999",
	}
	cfg, err := load(lookupFrom(env), []string{"--listen-addr", "0.0.0.0:8443", "--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:8443" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Mode != ModeProd {
		t.Errorf("Mode = %q", cfg.Mode)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		args    []string
		wantSub string
	}{
		{
			name:    "bad mode",
			args:    []string{"--mode", "staging"},
			wantSub: "unsupported mode",
		},
		{
			name:    "api_key mode without key",
			env:     map[string]string{"AUTH_MODE": "api_key"},
			wantSub: "API_KEY must be set",
		},
		{
			name:    "jwt mode without secret",
			env:     map[string]string{"AUTH_MODE": "jwt"},
			wantSub: "JWT_SECRET must be set",
		},
		{
			name:    "ping not below idle",
			args:    []string{"--ws-ping-interval", "90s"},
			wantSub: "must be <",
		},
		{
			name:    "zero max message bytes",
			env:     map[string]string{"MAX_SIGNALING_MESSAGES_PER_SECOND": "0"},
			wantSub: "must be > 0",
		},
		{
			name:    "bad redis db",
			env:     map[string]string{"REDIS_DB": "two"},
			wantSub: "invalid REDIS_DB",
		},
		{
			name:    "turn urls without credentials",
			env:     map[string]string{"TURN_URLS": "turn:turn.example.com:3478"},
			wantSub: "both must be set",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(lookupFrom(tc.env), tc.args)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not contain %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoad_AllowedOriginsCSV(t *testing.T) {
	env := map[string]string{"ALLOWED_ORIGINS": "https://app.example.com, https://staging.example.com ,"}
	cfg, err := load(lookupFrom(env), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"https://app.example.com", "https://staging.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}

func TestLoad_Durations(t *testing.T) {
	env := map[string]string{
		"SIGNALING_WS_IDLE_TIMEOUT":  "2m",
		"SIGNALING_WS_PING_INTERVAL": "30s",
	}
	cfg, err := load(lookupFrom(env), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WSIdleTimeout != 2*time.Minute || cfg.WSPingInterval != 30*time.Second {
		t.Fatalf("durations = %v/%v", cfg.WSIdleTimeout, cfg.WSPingInterval)
	}
}
