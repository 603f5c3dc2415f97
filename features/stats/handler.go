package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"docuchat/backend/internal/middleware"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
}

type ChunkStore interface {
	CountChunks(ctx context.Context) (int, error)
}

type ConversationRepo interface {
	CountConversations(ctx context.Context) (int, error)
}

type Handler struct {
	documents     DocumentRepo
	chunks        ChunkStore
	conversations ConversationRepo
}

func NewHandler(d DocumentRepo, c ChunkStore, conv ConversationRepo) *Handler {
	return &Handler{documents: d, chunks: c, conversations: conv}
}

type StatsResponse struct {
	Documents     int `json:"documents"`
	Chunks        int `json:"chunks"`
	Conversations int `json:"conversations"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dCount, err := h.documents.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	cCount, err := h.chunks.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	vCount, err := h.conversations.CountConversations(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count conversations", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count conversations", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:     dCount,
		Chunks:        cCount,
		Conversations: vCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
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
