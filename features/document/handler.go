package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"docuchat/backend/features/user"
	"docuchat/backend/internal/apperr"
	"docuchat/backend/internal/middleware"
)

type Users interface {
	GetByExternalUID(ctx context.Context, uid string) (*user.User, error)
	GetOrCreate(ctx context.Context, uid, email string) (*user.User, error)
}

type Validator interface {
	Validate(path string) bool
}

type Handler struct {
	service   *Service
	users     Users
	validator Validator

	uploadDir     string
	maxUploadSize int64
}

func NewHandler(service *Service, users Users, validator Validator, uploadDir string, maxUploadSizeMB int64) *Handler {
	return &Handler{
		service:       service,
		users:         users,
		validator:     validator,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSizeMB << 20,
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "missing identity", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Only PDF files are allowed", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		slog.Error("failed to create upload directory", "error", err, "path", h.uploadDir)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(header.Filename))
	path := filepath.Clean(filepath.Join(h.uploadDir, filename))

	dst, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create file", "error", err, "path", path)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		h.removeFile(path)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to write file", http.StatusInternalServerError)
		return
	}
	if written == 0 {
		h.removeFile(path)
		h.writeError(r.Context(), w, "BAD_REQUEST", "Empty file", http.StatusBadRequest)
		return
	}

	if !h.validator.Validate(path) {
		h.removeFile(path)
		h.writeError(r.Context(), w, "BAD_REQUEST", "Invalid or corrupted PDF file", http.StatusBadRequest)
		return
	}

	u, err := h.users.GetOrCreate(r.Context(), identity.UID, identity.Email)
	if err != nil {
		h.removeFile(path)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	doc, err := h.service.Register(r.Context(), u.ID, header.Filename, path, written)
	if err != nil {
		h.removeFile(path)
		slog.Error("failed to register document", "error", err, "filename", header.Filename)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": doc}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	id, u, ok := h.resolve(w, r)
	if !ok {
		return
	}

	result, err := h.service.Index(r.Context(), id, u.ID)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
		case errors.Is(err, apperr.ErrAlreadyIndexed):
			h.writeError(r.Context(), w, "INVALID_STATE", "Document is already indexed", http.StatusBadRequest)
		case errors.Is(err, apperr.ErrExtraction):
			h.writeError(r.Context(), w, "EXTRACTION_FAILED", err.Error(), http.StatusUnprocessableEntity)
		default:
			slog.Error("indexing failed", "error", err, "document_id", id)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Indexing failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "missing identity", http.StatusUnauthorized)
		return
	}

	u, err := h.users.GetByExternalUID(r.Context(), identity.UID)
	if errors.Is(err, apperr.ErrNotFound) {
		// A user with no uploads has nothing to list.
		h.writeList(w, []Document{})
		return
	}
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	docs, err := h.service.List(r.Context(), u.ID)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	h.writeList(w, docs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, u, ok := h.resolve(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Get(r.Context(), id, u.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": doc}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, u, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, u.ID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolve parses the path id and loads the caller's user row, writing the
// error response itself when either step fails.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (int64, *user.User, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "missing identity", http.StatusUnauthorized)
		return 0, nil, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid document id", http.StatusBadRequest)
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

func (h *Handler) writeList(w http.ResponseWriter, docs []Document) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to clean up uploaded file", "error", err, "path", path)
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
