package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"docuchat/backend/features/user"
	"docuchat/backend/internal/apperr"
	"docuchat/backend/internal/middleware"
)

const questionMaxLen = 2000

type Users interface {
	GetByExternalUID(ctx context.Context, uid string) (*user.User, error)
}

type Handler struct {
	service *Service
	users   Users
}

func NewHandler(service *Service, users Users) *Handler {
	return &Handler{service: service, users: users}
}

type askRequest struct {
	Question       string `json:"question"`
	ConversationID *int64 `json:"conversation_id"`
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	docID, u, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "question is required", http.StatusBadRequest)
		return
	}
	if len(req.Question) > questionMaxLen {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "question exceeds maximum length", http.StatusBadRequest)
		return
	}

	result, err := h.service.Ask(r.Context(), u.ID, docID, req.Question, req.ConversationID)
	if err != nil {
		h.writeAskError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeAskError(ctx context.Context, w http.ResponseWriter, err error) {
	var rateLimit *apperr.RateLimitError

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", "Document or conversation not found", http.StatusNotFound)
	case errors.Is(err, apperr.ErrNotIndexed):
		h.writeError(ctx, w, "INVALID_STATE", "Document is not ready for questions", http.StatusBadRequest)
	case errors.Is(err, apperr.ErrInvalidConversation):
		h.writeError(ctx, w, "VALIDATION_ERROR", "conversation_id must be a positive integer or omitted", http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNoRelevantContent):
		h.writeError(ctx, w, "NO_RELEVANT_CONTENT", "No relevant content found in the document", http.StatusNotFound)
	case errors.As(err, &rateLimit):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimit.RetryAfter.Seconds())))
		h.writeError(ctx, w, "RATE_LIMITED", "Completion service rate limited", http.StatusTooManyRequests)
	case errors.Is(err, apperr.ErrGeneration):
		slog.ErrorContext(ctx, "generation failed", "error", err)
		h.writeError(ctx, w, "GENERATION_FAILED", "Failed to generate answer", http.StatusBadGateway)
	default:
		slog.ErrorContext(ctx, "ask failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to process question", http.StatusInternalServerError)
	}
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	docID, u, ok := h.resolve(w, r)
	if !ok {
		return
	}

	convs, err := h.service.ListConversations(r.Context(), u.ID, docID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if convs == nil {
		convs = []Conversation{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": convs,
		"meta": map[string]int{"count": len(convs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	convID, u, ok := h.resolve(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetConversation(r.Context(), u.ID, convID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Conversation not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": detail}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	convID, u, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteConversation(r.Context(), u.ID, convID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Conversation not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (int64, *user.User, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "missing identity", http.StatusUnauthorized)
		return 0, nil, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid id", http.StatusBadRequest)
		return 0, nil, false
	}

	u, err := h.users.GetByExternalUID(r.Context(), identity.UID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "User not found", http.StatusNotFound)
			return 0, nil, false
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return 0, nil, false
	}

	return id, u, true
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
