package cmd

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ohsync/internal/bootstrap/logging"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/usecase/ingest"
)

const maxWebhookBody = 1 << 20

type webhookStatusResponse struct {
	Status string `json:"status"`
}

// graphNotificationBatch is the Microsoft Graph delivery shape. Dynamics
// service endpoints post the same envelope.
type graphNotificationBatch struct {
	ValidationToken string `json:"validationToken"`
	Value           []struct {
		SubscriptionID string `json:"subscriptionId"`
		Resource       string `json:"resource"`
	} `json:"value"`
}

// handleWebhook is unauthenticated by design: it carries provider traffic,
// and routing trust comes from the subscription key lookup.
func (h *apiHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider, err := domainsync.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "unknown provider")
		return
	}

	// Subscription handshake comes before anything else; the echoed token
	// must be byte-identical to what the provider sent.
	if token := r.URL.Query().Get("validationToken"); token != "" {
		echoValidationToken(w, token)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	var notifications []ingest.Notification
	if provider == domainsync.ProviderGoogle {
		// Drive push notifications arrive as headers on an empty body.
		if channelID := strings.TrimSpace(r.Header.Get("X-Goog-Channel-ID")); channelID != "" {
			notifications = append(notifications, ingest.Notification{
				SubscriptionID: channelID,
				Resource:       r.Header.Get("X-Goog-Resource-ID"),
			})
		}
	} else {
		var batch graphNotificationBatch
		if len(body) > 0 {
			if err := json.Unmarshal(body, &batch); err != nil {
				writeAPIError(w, http.StatusBadRequest, "invalid payload")
				return
			}
		}
		if batch.ValidationToken != "" {
			echoValidationToken(w, batch.ValidationToken)
			return
		}
		for _, item := range batch.Value {
			notifications = append(notifications, ingest.Notification{
				SubscriptionID: item.SubscriptionID,
				Resource:       item.Resource,
			})
		}
	}

	if err := h.webhooks.ProcessNotifications(r.Context(), provider, notifications); err != nil {
		logging.Error(r.Context(), "webhook processing failed",
			slog.String("provider", string(provider)),
			slog.Any("err", errs.Loggable(err)),
		)
		writeAPIJSON(w, http.StatusInternalServerError, webhookStatusResponse{Status: "error"})
		return
	}

	writeAPIJSON(w, http.StatusOK, webhookStatusResponse{Status: "ok"})
}

func echoValidationToken(w http.ResponseWriter, token string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}
