package server

import (
	"net/http"

	"github.com/Sternrassler/finpath-api/internal/service"
	"github.com/gorilla/mux"
)

func (s *Server) handleLatestNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n, err := s.svc.LatestNews(r.Context(), q["topics"], service.ParseLimit(q.Get("limit"), 10))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleCompanyNews(w http.ResponseWriter, r *http.Request) {
	limit := service.ParseLimit(r.URL.Query().Get("limit"), 5)
	n, err := s.svc.CompanyNews(r.Context(), mux.Vars(r)["symbol"], limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
