package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stackcards/revision-engine/internal/progress"
	"github.com/stackcards/revision-engine/internal/revision"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondServiceError maps domain errors onto HTTP codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, revision.ErrDeckNotFound):
		respondError(w, http.StatusNotFound, "not_found", "deck not found")
	case errors.Is(err, revision.ErrCardNotFound):
		respondError(w, http.StatusNotFound, "not_found", "card not found")
	case errors.Is(err, revision.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", "caller may not act on this resource")
	case errors.Is(err, revision.ErrDeckArchived):
		respondError(w, http.StatusConflict, "deck_archived", "archived decks do not accept reviews")
	case errors.Is(err, revision.ErrUnknownPreset):
		respondError(w, http.StatusBadRequest, "unknown_preset", err.Error())
	case errors.Is(err, revision.ErrInvalidPolicyValue):
		respondError(w, http.StatusBadRequest, "invalid_policy_value", err.Error())
	default:
		slog.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Preset handlers

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets := progress.ListPresets()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"presets": presets,
		"total":   len(presets),
	})
}

// Deck policy handlers

func (s *Server) handleGetDeckPolicy(w http.ResponseWriter, r *http.Request) {
	deckID, ok := idParam(w, r)
	if !ok {
		return
	}

	policy, err := s.service.GetDeckPolicy(r.Context(), ClientFromContext(r.Context()), deckID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, policy)
}

type updatePolicyRequest struct {
	RequiredReviewsToLearn *int  `json:"required_reviews_to_learn" validate:"omitempty,min=1,max=20"`
	AutoMarkLearned        *bool `json:"auto_mark_learned"`
	ResetOnWrongAnswer     *bool `json:"reset_on_wrong_answer"`
}

func (s *Server) handleUpdateDeckPolicy(w http.ResponseWriter, r *http.Request) {
	deckID, ok := idParam(w, r)
	if !ok {
		return
	}

	var req updatePolicyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patch := progress.PolicyPatch{
		RequiredReviewsToLearn: req.RequiredReviewsToLearn,
		AutoMarkLearned:        req.AutoMarkLearned,
		ResetOnWrongAnswer:     req.ResetOnWrongAnswer,
	}
	if patch.IsEmpty() {
		respondError(w, http.StatusBadRequest, "validation_error", "at least one policy field is required")
		return
	}

	update, err := s.service.UpdateDeckPolicy(r.Context(), ClientFromContext(r.Context()), deckID, patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, update)
}

type applyPresetRequest struct {
	Preset string `json:"preset" validate:"required"`
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	deckID, ok := idParam(w, r)
	if !ok {
		return
	}

	var req applyPresetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	update, err := s.service.ApplyPreset(r.Context(), ClientFromContext(r.Context()), deckID, req.Preset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, update)
}

// Statistics handler

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	deckID, ok := idParam(w, r)
	if !ok {
		return
	}

	stats, err := s.service.GetStatistics(r.Context(), ClientFromContext(r.Context()), deckID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Card handlers

type submitReviewRequest struct {
	// Pointer so a missing field is distinguishable from false; validator's
	// required tag cannot do that for booleans.
	IsCorrect *bool `json:"is_correct"`
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	cardID, ok := idParam(w, r)
	if !ok {
		return
	}

	var req submitReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.IsCorrect == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "is_correct is required")
		return
	}

	cp, err := s.service.SubmitReview(r.Context(), ClientFromContext(r.Context()), cardID, *req.IsCorrect)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cp)
}

type setLearnedRequest struct {
	Learned *bool `json:"learned"`
}

func (s *Server) handleSetLearned(w http.ResponseWriter, r *http.Request) {
	cardID, ok := idParam(w, r)
	if !ok {
		return
	}

	var req setLearnedRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Learned == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "learned is required")
		return
	}

	cp, err := s.service.SetLearned(r.Context(), ClientFromContext(r.Context()), cardID, *req.Learned)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cp)
}
