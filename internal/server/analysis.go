package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Sternrassler/finpath-api/internal/service"
	"github.com/gorilla/mux"
)

// queryBool parses a boolean query parameter, returning def when absent.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", service.ErrInvalidInput, name, v)
	}
	return b, nil
}

func (s *Server) handleStockAnalysis(w http.ResponseWriter, r *http.Request) {
	var opts service.AnalysisOptions
	var err error
	if opts.News, err = queryBool(r, "include_news", true); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if opts.Fundamentals, err = queryBool(r, "include_fundamentals", true); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if opts.Technicals, err = queryBool(r, "include_technicals", true); err != nil {
		writeServiceError(w, r, err)
		return
	}

	a, err := s.svc.StockAnalysis(r.Context(), mux.Vars(r)["symbol"], opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleTechnical(w http.ResponseWriter, r *http.Request) {
	period := service.ParseLimit(r.URL.Query().Get("period"), 14)
	ta, err := s.svc.Technical(r.Context(), mux.Vars(r)["symbol"], period)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ta)
}

func (s *Server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	fa, err := s.svc.Fundamentals(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fa)
}
