package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wunjo/internal/apperr"
	"github.com/starford/wunjo/internal/models"
	"github.com/starford/wunjo/internal/wellness"
)

// Handler holds API route handlers.
type Handler struct {
	svc *wellness.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *wellness.Service) *Handler {
	return &Handler{svc: svc}
}

// respondError maps domain errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	if ve, ok := apperr.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "validation failed", Messages: ve.Messages})
		return
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrPending):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, _ *http.Request) {
	cats := h.svc.Categories()
	writeJSON(w, http.StatusOK, CategoryListResponse{Categories: cats, Total: len(cats)})
}

// CreateCategory handles POST /categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	created, err := h.svc.AddCategory(r.Context(), req.toModel())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateCategory handles PUT /categories/{id}.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteCategory handles DELETE /categories/{id}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderCategories handles POST /categories/reorder.
func (h *Handler) ReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ReorderCategories(r.Context(), req.From, req.To); err != nil {
		if errors.Is(err, apperr.ErrPending) {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.ListCategories(w, r)
}

// ListGoals handles GET /goals.
func (h *Handler) ListGoals(w http.ResponseWriter, _ *http.Request) {
	goals := h.svc.Goals()
	writeJSON(w, http.StatusOK, GoalListResponse{Goals: goals, Total: len(goals)})
}

// SetGoal handles PUT /goals.
func (h *Handler) SetGoal(w http.ResponseWriter, r *http.Request) {
	var req SetGoalRequest
	if !decode(w, r, &req) {
		return
	}
	goal, err := h.svc.SetGoal(r.Context(), models.Goal{
		CategoryID: req.CategoryID,
		MetricID:   req.MetricID,
		Target:     req.Target,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// BatchGoals handles POST /goals/batch.
func (h *Handler) BatchGoals(w http.ResponseWriter, r *http.Request) {
	var req BatchGoalsRequest
	if !decode(w, r, &req) {
		return
	}
	goals := make([]models.Goal, len(req.Goals))
	for i, g := range req.Goals {
		goals[i] = models.Goal{CategoryID: g.CategoryID, MetricID: g.MetricID, Target: g.Target}
	}
	if err := h.svc.UpdateGoals(r.Context(), goals); err != nil {
		respondError(w, err)
		return
	}
	h.ListGoals(w, r)
}

// ListEntries handles GET /entries.
func (h *Handler) ListEntries(w http.ResponseWriter, _ *http.Request) {
	entries := h.svc.Entries()
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: entries, Total: len(entries)})
}

// CreateEntry handles POST /entries.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !decode(w, r, &req) {
		return
	}
	created, err := h.svc.AddEntry(r.Context(), models.Entry{
		Date:       req.Date,
		CategoryID: req.CategoryID,
		MetricID:   req.MetricID,
		Duration:   req.Duration,
		Value:      req.Value,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateEntry handles PUT /entries/{id}.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntryRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateEntry(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteEntry handles DELETE /entries/{id}.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPending handles GET /pending/{id}.
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, PendingResponse{ID: id, Pending: h.svc.IsPending(id)})
}

// GetSummary handles GET /summary.
func (h *Handler) GetSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Summary())
}
