package server

import (
	"net/http"

	"github.com/Sternrassler/finpath-api/internal/service"
	"github.com/gorilla/mux"
)

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	q, err := s.svc.Stock(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleIntraday(w http.ResponseWriter, r *http.Request) {
	ts, err := s.svc.Intraday(r.Context(), mux.Vars(r)["symbol"], r.URL.Query().Get("interval"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	ts, err := s.svc.Daily(r.Context(), mux.Vars(r)["symbol"], r.URL.Query().Get("outputsize"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.Overview(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	limit := service.ParseLimit(r.URL.Query().Get("limit"), 5)
	p, err := s.svc.Peers(r.Context(), mux.Vars(r)["symbol"], limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.MarketStatus())
}

func (s *Server) handleIndianOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.svc.IndianOverview(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleIndexMovers(w http.ResponseWriter, r *http.Request) {
	n := service.ParseLimit(r.URL.Query().Get("top_n"), 5)
	writeJSON(w, http.StatusOK, s.svc.IndexMovers(mux.Vars(r)["index"], n))
}
