package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/openmeet/signaling/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	return New(cfg, testLogger(), BuildInfo{Commit: "abc123", BuildTime: "2026-01-01T00:00:00Z"})
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
}

func TestReadyz_NotReadyUntilServe(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest("GET", "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before serve = %d, want 503", rr.Code)
	}

	s.ready.Store(true)
	rr = httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest("GET", "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz after serve = %d, want 200", rr.Code)
	}
}

func TestVersion(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest("GET", "/version", nil))

	var build BuildInfo
	if err := json.NewDecoder(rr.Body).Decode(&build); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if build.Commit != "abc123" {
		t.Fatalf("commit = %q", build.Commit)
	}
}

func TestICE_ReturnsConfiguredServers(t *testing.T) {
	s := newTestServer(t, config.Config{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.example.com:19302"}}},
	})

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest("GET", "/ice", nil))

	var body struct {
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.ICEServers) != 1 || body.ICEServers[0].URLs[0] != "stun:stun.example.com:19302" {
		t.Fatalf("ice servers = %+v", body.ICEServers)
	}
}

func TestRecoverMiddleware_ContainsPanic(t *testing.T) {
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), recoverMiddleware(testLogger()))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}), requestIDMiddleware())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if seen == "" {
		t.Fatalf("request id not generated")
	}
	if got := rr.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("response id %q != request id %q", got, seen)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "caller-supplied")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if seen != "caller-supplied" {
		t.Fatalf("caller-supplied id not preserved: %q", seen)
	}
}

func TestCORSMiddleware_AllowsConfiguredOrigin(t *testing.T) {
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), corsMiddleware([]string{"https://app.example.com"}))

	r := httptest.NewRequest("GET", "/admin/rooms", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}
