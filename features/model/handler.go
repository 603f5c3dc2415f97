// Package model exposes the completion service's available models.
package model

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"docuchat/backend/internal/adapter/gemini"
	"docuchat/backend/internal/middleware"
)

const defaultLimit = 30

type Lister interface {
	ListModels(ctx context.Context, limit int) ([]gemini.ModelInfo, error)
}

type Handler struct {
	lister Lister
}

func NewHandler(lister Lister) *Handler {
	return &Handler{lister: lister}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	models, err := h.lister.ListModels(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list models", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "failed to list models", http.StatusBadGateway)
		return
	}
	if models == nil {
		models = []gemini.ModelInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": models,
		"meta": map[string]int{"count": len(models)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
