package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/undarez/synexa-sub001/internal/automation"
)

// maxLogLimit is the largest page accepted by the log listing.
const maxLogLimit = 100

// routineRequest is the body of POST /routines and PUT /routines/{id}.
type routineRequest struct {
	Name        string                   `json:"name"`
	Description *string                  `json:"description"`
	TriggerType automation.TriggerType   `json:"triggerType"`
	TriggerData json.RawMessage          `json:"triggerData"`
	Active      *bool                    `json:"active"`
	Steps       []automation.RoutineStep `json:"steps"`
}

// executeRequest is the body of POST /routines/{id}/execute. Optional.
type executeRequest struct {
	DryRun   bool            `json:"dryRun"`
	Metadata json.RawMessage `json:"metadata"`
}

// apply copies the request onto r. Active defaults to true on create.
func (req routineRequest) apply(r *automation.Routine) {
	r.Name = req.Name
	r.Description = req.Description
	r.TriggerType = req.TriggerType
	r.TriggerData = req.TriggerData
	if req.Active != nil {
		r.Active = *req.Active
	}
	r.Steps = req.Steps
}

// handleListRoutines returns the caller's routines sorted by name.
func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	routines, err := s.routines.ListRoutines(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, "failed to list routines")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"routines": routines, "count": len(routines)})
}

// handleGetRoutine returns one routine of the caller.
func (s *Server) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	routine, err := s.ownedRoutine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeRoutineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

// handleCreateRoutine validates and stores a new routine for the caller.
func (s *Server) handleCreateRoutine(w http.ResponseWriter, r *http.Request) {
	var req routineRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	routine := &automation.Routine{
		UserID: userIDFromContext(r.Context()),
		Active: true,
	}
	req.apply(routine)

	if err := s.routines.CreateRoutine(r.Context(), routine); err != nil {
		s.writeRoutineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, routine)
}

// handleUpdateRoutine replaces a routine's fields and steps.
func (s *Server) handleUpdateRoutine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	existing, err := s.ownedRoutine(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeRoutineError(w, err)
		return
	}

	var req routineRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.apply(existing)
	if existing.TriggerType == "" {
		existing.TriggerType = automation.TriggerManual
	}

	if err := s.routines.UpdateRoutine(ctx, existing); err != nil {
		s.writeRoutineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteRoutine removes a routine with its steps and logs.
func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	routine, err := s.ownedRoutine(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeRoutineError(w, err)
		return
	}

	if err := s.routines.DeleteRoutine(ctx, routine.ID); err != nil {
		s.writeRoutineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecuteRoutine runs a routine for the caller and returns its log.
// Step failures are part of the log, not HTTP errors.
func (s *Server) handleExecuteRoutine(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	ec := automation.ExecutionContext{
		UserID:      userIDFromContext(ctx),
		RequestID:   requestIDFromContext(ctx),
		TriggerType: automation.TriggerManual,
	}

	log, err := s.engine.ExecuteRoutine(ctx, chi.URLParam(r, "id"), ec, automation.ExecuteOptions{
		DryRun:   req.DryRun,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.writeRoutineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// handleListRoutineLogs returns the latest run logs of a routine, newest
// first.
//
// Query parameters:
//   - limit: page size (default from automation.log_history_limit, max 100)
func (s *Server) handleListRoutineLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	routine, err := s.ownedRoutine(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeRoutineError(w, err)
		return
	}

	limit := s.autoCfg.LogHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 || n > maxLogLimit {
			writeBadRequest(w, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	logs, err := s.routineRepo.ListLogs(ctx, routine.ID, limit)
	if err != nil {
		writeInternalError(w, "failed to list routine logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

// handleGetRoutineLog returns one run log of the caller.
func (s *Server) handleGetRoutineLog(w http.ResponseWriter, r *http.Request) {
	log, err := s.routineRepo.GetLog(r.Context(), chi.URLParam(r, "logId"))
	if err != nil {
		s.writeRoutineError(w, err)
		return
	}
	if log.UserID != userIDFromContext(r.Context()) {
		writeNotFound(w, "routine log not found")
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// ownedRoutine loads a routine and hides those of other users.
func (s *Server) ownedRoutine(ctx context.Context, id string) (*automation.Routine, error) {
	routine, err := s.routines.GetRoutine(ctx, id)
	if err != nil {
		return nil, err
	}
	if routine.UserID != userIDFromContext(ctx) {
		return nil, automation.ErrRoutineNotFound
	}
	return routine, nil
}

// writeRoutineError maps automation errors to HTTP responses.
func (s *Server) writeRoutineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, automation.ErrRoutineNotFound):
		writeNotFound(w, "routine not found")
	case errors.Is(err, automation.ErrLogNotFound):
		writeNotFound(w, "routine log not found")
	case errors.Is(err, automation.ErrRoutineExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "routine already exists")
	case errors.Is(err, automation.ErrInvalidName),
		errors.Is(err, automation.ErrInvalidRoutine),
		errors.Is(err, automation.ErrInvalidStep),
		errors.Is(err, automation.ErrNoSteps),
		errors.Is(err, automation.ErrDuplicateOrder):
		writeValidationError(w, err.Error())
	case errors.Is(err, automation.ErrLogPersistence):
		s.logger.Error("routine log not persisted", "error", err)
		writeInternalError(w, "routine ran but its log could not be saved")
	default:
		s.logger.Error("routine request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
