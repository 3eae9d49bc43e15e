package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Sternrassler/finpath-api/internal/service"
	"github.com/Sternrassler/finpath-api/pkg/upstream"
	"github.com/gorilla/mux"
)

const maxChatBody = 64 << 10

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req service.ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err := dec.Decode(&req); err != nil {
		writeServiceError(w, r, fmt.Errorf("%w: malformed chat request: %v", service.ErrInvalidInput, err))
		return
	}

	resp, err := s.svc.Chat(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "FinGenie chat API is running. Please use POST method to send messages.",
	})
}

type historyResponse struct {
	UserID   string                 `json:"user_id"`
	Messages []upstream.ChatMessage `json:"messages"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	writeJSON(w, http.StatusOK, historyResponse{UserID: userID, Messages: s.svc.History(userID)})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	s.svc.ClearConversation(userID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Conversation history cleared for user " + userID,
	})
}

func (s *Server) handleKnowledgeRefresh(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n, err := s.svc.RefreshKnowledgeBase(r.Context(), q["topics"], service.ParseLimit(q.Get("limit"), 20))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"vectors": n})
}
