package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tracefit/tracefit/internal/fit"
	"github.com/tracefit/tracefit/internal/types"
)

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	entityType := r.PathValue("entityType")
	entityID := r.PathValue("entityId")
	if entityID == "" {
		s.writeBadRequest(w, fmt.Errorf("entity id is required"))
		return
	}

	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeBadRequest(w, fmt.Errorf("invalid depth: %q", raw))
			return
		}
		depth = n
	}
	includeLateral := r.URL.Query().Get("includeLateral") == "true"

	report, err := s.tracer.Analyze(r.Context(), entityType, entityID, depth, includeLateral)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// processLevelView is the read model of one process node: the row itself
// plus the derived consolidation and aggregation state.
type processLevelView struct {
	Node               *types.ProcessNode         `json:"node"`
	Consolidation      *types.ConsolidationRecord `json:"consolidation,omitempty"`
	Children           types.ChildSummary         `json:"children"`
	StaleConsolidation bool                       `json:"staleConsolidation"`
}

func (s *Server) handleGetProcessLevel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	node, err := s.store.GetProcessNode(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view := processLevelView{Node: node}
	children, err := s.store.GetChildren(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view.Children = fit.Summarize(children)

	if node.Level == 3 {
		rec, err := s.store.GetConsolidation(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		view.Consolidation = rec
		view.StaleConsolidation = rec.Stale
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetProcessNode(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeBadRequest(w, fmt.Errorf("invalid limit: %q", raw))
			return
		}
		limit = n
	}
	events, err := s.store.GetEvents(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if events == nil {
		events = []*types.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleSetJudgment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Judgment string `json:"judgment"`
		Actor    string `json:"actor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	j := types.FitJudgment(req.Judgment)
	if !j.IsValid() {
		s.writeBadRequest(w, fmt.Errorf("invalid fit judgment: %q", req.Judgment))
		return
	}
	if err := s.fits.SetJudgment(r.Context(), r.PathValue("id"), j, req.Actor); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision  string `json:"decision"`
		Rationale string `json:"rationale"`
		DecidedBy string `json:"decidedBy"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	rec, err := s.fits.Consolidate(r.Context(), r.PathValue("id"),
		types.FitStatus(req.Decision), req.Rationale, req.DecidedBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSignOff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if err := s.fits.SignOff(r.Context(), r.PathValue("id"), req.Actor); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReopen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if err := s.fits.Reopen(r.Context(), r.PathValue("id"), req.Actor); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
		Actor  string `json:"actor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	err := s.fits.Confirm(r.Context(), r.PathValue("id"),
		types.ConfirmationState(req.Status), req.Note, req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWorkshopReopen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	reopened, err := s.fits.ReopenWorkshop(r.Context(), r.PathValue("id"), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if reopened == nil {
		reopened = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reopened": reopened})
}

func (s *Server) handleCarryOver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	session, carried, err := s.fits.CarryOver(r.Context(), r.PathValue("id"), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if carried == nil {
		carried = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session, "carried": carried})
}

func (s *Server) handleFitStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetFitStatistics(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleNextCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prefix string `json:"prefix"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	code, err := s.codes.NextCode(r.Context(), r.PathValue("id"), req.Prefix)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}
