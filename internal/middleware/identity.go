package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

const identityKey key = 1

// Identity is the caller as asserted by the upstream auth layer. Token
// verification happens before requests reach this service; here the headers
// are trusted and only their presence is enforced.
type Identity struct {
	UID   string
	Email string
}

func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-User-ID")
		if uid == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			resp := map[string]interface{}{
				"error": map[string]string{
					"code":    "UNAUTHORIZED",
					"message": "X-User-ID header is required",
				},
				"correlationId": GetCorrelationID(r.Context()),
			}
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				slog.Error("failed to encode error response", "error", err)
			}
			return
		}

		id := Identity{UID: uid, Email: r.Header.Get("X-User-Email")}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
