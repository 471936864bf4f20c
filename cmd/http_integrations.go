package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/ports"
	"ohsync/internal/usecase/conflict"
	"ohsync/internal/usecase/ingest"
	"ohsync/internal/usecase/integration"
)

// integrationAPI is what the HTTP layer needs from the integration service.
type integrationAPI interface {
	BeginConnect(ctx context.Context, req integration.BeginConnectRequest) (string, error)
	HandleCallback(ctx context.Context, code, state string) (string, error)
	Overview(ctx context.Context, tenantID, developmentID string) (integration.Overview, error)
	Disconnect(ctx context.Context, id, tenantID, actorID string) error
}

type webhookAPI interface {
	ProcessNotifications(ctx context.Context, provider domainsync.Provider, notifications []ingest.Notification) error
}

type conflictAPI interface {
	ListPending(ctx context.Context, tenantID string) ([]ports.SyncConflict, error)
	Resolve(ctx context.Context, conflictID, tenantID string, resolution domainsync.Resolution, resolverID string) error
}

var (
	_ integrationAPI = (*integration.Service)(nil)
	_ webhookAPI     = (*ingest.Service)(nil)
	_ conflictAPI    = (*conflict.Service)(nil)
)

type integrationItem struct {
	ID            string `json:"id"`
	DevelopmentID string `json:"development_id,omitempty"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	SyncDirection string `json:"sync_direction"`
	SyncFrequency string `json:"sync_frequency"`
	ExternalRef   string `json:"external_ref"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type auditLogItem struct {
	ID        uint64         `json:"id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type overviewResponse struct {
	Integrations     []integrationItem `json:"integrations"`
	PendingConflicts int64             `json:"pending_conflicts"`
	RecentAuditLogs  []auditLogItem    `json:"recent_audit_logs"`
}

func (h *apiHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.integrations.Overview(r.Context(), tenantFromRequest(r), strings.TrimSpace(r.URL.Query().Get("development_id")))
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := overviewResponse{
		Integrations:     make([]integrationItem, 0, len(overview.Integrations)),
		PendingConflicts: overview.PendingConflicts,
		RecentAuditLogs:  make([]auditLogItem, 0, len(overview.RecentAuditLogs)),
	}
	for _, item := range overview.Integrations {
		resp.Integrations = append(resp.Integrations, integrationItem{
			ID:            item.ID,
			DevelopmentID: item.DevelopmentID,
			Type:          string(item.Type),
			Name:          item.Name,
			Status:        string(item.Status),
			SyncDirection: string(item.SyncDirection),
			SyncFrequency: string(item.SyncFrequency),
			ExternalRef:   item.ExternalRef,
			CreatedAt:     item.CreatedAt,
			UpdatedAt:     item.UpdatedAt,
		})
	}
	for _, event := range overview.RecentAuditLogs {
		resp.RecentAuditLogs = append(resp.RecentAuditLogs, auditLogItem{
			ID:        event.ID,
			Action:    event.Action,
			Actor:     event.Actor,
			Metadata:  event.Metadata,
			CreatedAt: event.CreatedAt,
		})
	}

	writeAPIJSON(w, http.StatusOK, resp)
}

func (h *apiHandler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeAPIError(w, http.StatusBadRequest, "id is required")
		return
	}

	err := h.integrations.Disconnect(r.Context(), id, tenantFromRequest(r), actorFromRequest(r))
	if errors.Is(err, ports.ErrIntegrationNotFound) {
		writeAPIError(w, http.StatusNotFound, "integration not found")
		return
	}
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeAPIJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type conflictItem struct {
	ID            string `json:"id"`
	IntegrationID string `json:"integration_id"`
	OhTable       string `json:"oh_table"`
	OhField       string `json:"oh_field"`
	OhRecordID    string `json:"oh_record_id"`
	LocalValue    string `json:"local_value"`
	RemoteValue   string `json:"remote_value"`
	BaseValue     string `json:"base_value"`
	CreatedAt     string `json:"created_at"`
}

func (h *apiHandler) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	items, err := h.conflicts.ListPending(r.Context(), tenantFromRequest(r))
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]conflictItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, conflictItem{
			ID:            item.ID,
			IntegrationID: item.IntegrationID,
			OhTable:       item.OhTable,
			OhField:       item.OhField,
			OhRecordID:    item.OhRecordID,
			LocalValue:    item.LocalValue,
			RemoteValue:   item.RemoteValue,
			BaseValue:     item.BaseValue,
			CreatedAt:     item.CreatedAt,
		})
	}
	writeAPIJSON(w, http.StatusOK, map[string]any{"conflicts": resp})
}

type resolveConflictRequest struct {
	ConflictID string `json:"conflict_id"`
	Resolution string `json:"resolution"`
}

type resolveConflictResponse struct {
	Success    bool   `json:"success"`
	Resolution string `json:"resolution"`
}

func (h *apiHandler) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req resolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.ConflictID) == "" {
		writeAPIError(w, http.StatusBadRequest, "conflict_id is required")
		return
	}
	resolution, err := domainsync.ParseResolution(req.Resolution)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.conflicts.Resolve(r.Context(), req.ConflictID, tenantFromRequest(r), resolution, actorFromRequest(r))
	switch {
	case errors.Is(err, ports.ErrConflictNotFound):
		writeAPIError(w, http.StatusNotFound, "conflict not found")
	case errors.Is(err, ports.ErrConflictAlreadyResolved):
		writeAPIError(w, http.StatusConflict, "conflict already resolved")
	case err != nil:
		writeAPIError(w, http.StatusInternalServerError, err.Error())
	default:
		writeAPIJSON(w, http.StatusOK, resolveConflictResponse{Success: true, Resolution: string(resolution)})
	}
}
