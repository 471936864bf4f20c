package cmd

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"ohsync/internal/bootstrap/logging"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/usecase/integration"
)

type oauthBeginResponse struct {
	AuthURL string `json:"auth_url"`
}

// handleOAuthStart issues the provider consent URL for the portal to
// redirect the browser to. Tenant scoped.
func (h *apiHandler) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	providerSlug := chi.URLParam(r, "provider")
	if _, err := domainsync.ParseProvider(providerSlug); err != nil {
		writeAPIError(w, http.StatusNotFound, "unknown provider")
		return
	}

	query := r.URL.Query()
	integrationType, err := domainsync.ParseIntegrationType(query.Get("type"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	authURL, err := h.integrations.BeginConnect(r.Context(), integration.BeginConnectRequest{
		TenantID:      tenantFromRequest(r),
		DevelopmentID: strings.TrimSpace(query.Get("development_id")),
		Type:          integrationType,
		Name:          strings.TrimSpace(query.Get("name")),
		ExternalRef:   strings.TrimSpace(query.Get("external_ref")),
	})
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeAPIJSON(w, http.StatusOK, oauthBeginResponse{AuthURL: authURL})
}

// handleOAuthCallback lands the provider redirect. The browser always gets
// sent back to the portal; outcomes travel as query parameters, never as
// raw error pages.
func (h *apiHandler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if query.Get("error") != "" || code == "" || state == "" {
		h.redirectPortal(w, r, "error", "missing_params")
		return
	}

	id, err := h.integrations.HandleCallback(r.Context(), code, state)
	if err != nil {
		logging.Warn(r.Context(), "oauth callback failed",
			slog.String("provider", chi.URLParam(r, "provider")),
			slog.Any("err", errs.Loggable(err)),
		)
		switch {
		case errors.Is(err, domainsync.ErrInvalidState):
			h.redirectPortal(w, r, "error", "invalid_state")
		case errors.Is(err, integration.ErrTokenExchangeFailed):
			h.redirectPortal(w, r, "error", "token_exchange_failed")
		case errors.Is(err, integration.ErrSaveFailed):
			h.redirectPortal(w, r, "error", "save_failed")
		default:
			h.redirectPortal(w, r, "error", "unexpected")
		}
		return
	}

	h.redirectPortal(w, r, "connected", id)
}

func (h *apiHandler) redirectPortal(w http.ResponseWriter, r *http.Request, key, value string) {
	target := strings.TrimRight(h.portalURL, "/") + "/integrations?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
