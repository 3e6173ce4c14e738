package signaling

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openmeet/signaling/internal/auth"
	"github.com/openmeet/signaling/internal/config"
	"github.com/openmeet/signaling/internal/metrics"
)

// Server exposes the signaling WebSocket and the admin API over one mux.
type Server struct {
	core    *Core
	authz   auth.Authorizer
	cfg     config.Config
	log     *slog.Logger
	metrics metrics.Sink
}

func NewServer(core *Core, authz auth.Authorizer, cfg config.Config, log *slog.Logger, sink metrics.Sink) *Server {
	return &Server{
		core:    core,
		authz:   authz,
		cfg:     cfg,
		log:     log,
		metrics: sink,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /signal", newWSHandler(s.core, s.authz, s.cfg, s.log, s.metrics))

	mux.Handle("POST /admin/rooms", s.requireAuth(s.handleCreateRoom))
	mux.Handle("GET /admin/rooms", s.requireAuth(s.handleListRooms))
	mux.Handle("GET /admin/rooms/{roomID}", s.requireAuth(s.handleGetRoom))
	mux.Handle("DELETE /admin/rooms/{roomID}", s.requireAuth(s.handleDeleteRoom))
	mux.Handle("GET /admin/stats", s.requireAuth(s.handleStats))
}

// requireAuth gates admin calls on the same authorizer as the upgrade path.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.authz.Authorize(r); err != nil {
			s.metrics.Inc(metrics.AuthFailure)
			s.log.Warn("rejecting admin request", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "err", err)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

type createRoomRequest struct {
	RoomID string `json:"roomId"`
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	id, ok := s.core.CreateRoom(req.RoomID)
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{RoomID: id})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.core.Rooms()})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	detail, ok := s.core.Room(roomID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	existed, ok := s.core.DeleteRoom(roomID)
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	if !existed {
		writeJSONError(w, http.StatusNotFound, "room not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Stats())
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
