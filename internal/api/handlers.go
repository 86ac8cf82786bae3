package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gopower/adapters/excel"
	"gopower/app"
	"gopower/domain/core"
	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/internal/report"
)

// AnalysisRequest is the JSON body of POST /api/analyses. The design fields
// mirror the design builder's parameters.
type AnalysisRequest struct {
	Design      string        `json:"design"`
	FactorNames []string      `json:"factor_names,omitempty"`
	N           int           `json:"n"`
	Mu          []float64     `json:"mu"`
	SD          []float64     `json:"sd"`
	R           float64       `json:"r"`
	Options     power.Options `json:"options"`
}

func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Options == (power.Options{}) {
		req.Options = s.defaults
	}

	spec, err := design.New(design.Params{
		Code:        req.Design,
		FactorNames: req.FactorNames,
		N:           req.N,
		Mu:          req.Mu,
		SD:          req.SD,
		R:           req.R,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	bundle, err := s.service.Run(r.Context(), app.ExactPowerRequest{
		Design:  spec,
		Options: req.Options,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if s.results != nil {
		if err := s.results.Save(r.Context(), bundle); err != nil {
			// The analysis itself succeeded; report it and log the store failure.
			s.logger.Error("failed to persist analysis %s: %v", bundle.ID, err)
		}
	}
	if s.reportDir != "" {
		path := filepath.Join(s.reportDir, string(bundle.ID)+".xlsx")
		if err := excel.NewReportWriter().Write(bundle, path); err != nil {
			s.logger.Error("failed to write workbook for %s: %v", bundle.ID, err)
		}
	}
	writeJSON(w, http.StatusCreated, bundle)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	bundle, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	bundle, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(report.HTML(bundle))
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeJSON(w, http.StatusOK, []*power.ResultBundle{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	bundles, err := s.results.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("failed to list analyses: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if bundles == nil {
		bundles = []*power.ResultBundle{}
	}
	writeJSON(w, http.StatusOK, bundles)
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	id := core.AnalysisID(chi.URLParam(r, "id"))
	if err := s.results.Delete(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrAnalysisNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		s.logger.Error("failed to delete analysis %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete analysis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadBundle(w http.ResponseWriter, r *http.Request) (*power.ResultBundle, bool) {
	if s.results == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return nil, false
	}
	id := core.AnalysisID(chi.URLParam(r, "id"))
	bundle, err := s.results.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrAnalysisNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return nil, false
		}
		s.logger.Error("failed to load analysis %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return nil, false
	}
	return bundle, true
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses:
// design and parameter rejections are the caller's fault, everything else
// is a server-side failure.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case core.IsDesignError(err), core.IsParameterError(err), core.IsContrastError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("analysis failed: %v", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
