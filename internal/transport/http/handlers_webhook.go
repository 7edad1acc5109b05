package httptransport

import (
	"encoding/json"
	"net/http"

	webhookservice "giftvault/internal/webhook/service"
)

type webhookRequest struct {
	Provider     string          `json:"provider"`
	ProviderTxID string          `json:"providerTxId"`
	EventType    string          `json:"eventType"`
	EscrowID     string          `json:"escrowId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

func (h *handler) ingestWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	rcpt, err := h.webhook.Ingest(r.Context(), webhookservice.IngestInput{
		Provider:     req.Provider,
		ProviderTxID: req.ProviderTxID,
		EventType:    req.EventType,
		EscrowID:     req.EscrowID,
		Payload:      req.Payload,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook ingest failed",
			"provider", req.Provider,
			"provider_tx_id", req.ProviderTxID,
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}
