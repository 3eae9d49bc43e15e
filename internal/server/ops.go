package server

import (
	"net/http"
	"time"

	"github.com/Sternrassler/finpath-api/internal/service"
	"github.com/gorilla/mux"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to FinPath Insight API",
		"version": service.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Health(r.Context()))
}

type statusResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ready(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeStoreUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready", Timestamp: time.Now().UTC()})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "alive", Timestamp: time.Now().UTC()})
}

func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	n := s.svc.Cache().SweepExpired(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !s.svc.Cache().Delete(r.Context(), key) {
		writeError(w, r, http.StatusBadGateway, CodeStoreUnavailable, "cache delete failed for "+key)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "key": key})
}
