package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type tenantKey struct{}
type actorKey struct{}

// tenantMiddleware trusts X-Tenant-ID and X-Actor-ID as injected by the
// upstream auth layer. Requests without a tenant never reach a handler.
func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		if tenantID == "" {
			writeAPIError(w, http.StatusUnauthorized, "missing tenant")
			return
		}

		ctx := context.WithValue(r.Context(), tenantKey{}, tenantID)
		if actorID := strings.TrimSpace(r.Header.Get("X-Actor-ID")); actorID != "" {
			ctx = context.WithValue(ctx, actorKey{}, actorID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantFromRequest(r *http.Request) string {
	tenantID, _ := r.Context().Value(tenantKey{}).(string)
	return tenantID
}

func actorFromRequest(r *http.Request) string {
	actorID, _ := r.Context().Value(actorKey{}).(string)
	return actorID
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeAPIJSON(w, status, apiErrorResponse{Error: message})
}

func writeAPIJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
