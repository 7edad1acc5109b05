package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"giftvault/internal/dispute"
	"giftvault/internal/escrow"
	derrors "giftvault/pkg/domain-errors"
)

type disputeView struct {
	ID               string     `json:"id"`
	EscrowID         string     `json:"escrowId"`
	OpenedBy         string     `json:"openedBy"`
	Reason           string     `json:"reason"`
	Evidence         []string   `json:"evidence,omitempty"`
	Status           string     `json:"status"`
	Resolution       string     `json:"resolution,omitempty"`
	ResolvedBy       string     `json:"resolvedBy,omitempty"`
	ResponseDeadline time.Time  `json:"responseDeadline"`
	ReviewDeadline   time.Time  `json:"reviewDeadline"`
	OpenedAt         time.Time  `json:"openedAt"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
}

func toDisputeView(d *dispute.Dispute) disputeView {
	return disputeView{
		ID:               d.ID,
		EscrowID:         d.EscrowID,
		OpenedBy:         d.OpenedBy,
		Reason:           d.Reason,
		Evidence:         d.Evidence,
		Status:           string(d.Status),
		Resolution:       string(d.Resolution),
		ResolvedBy:       d.ResolvedBy,
		ResponseDeadline: d.ResponseDeadline,
		ReviewDeadline:   d.ReviewDeadline,
		OpenedAt:         d.OpenedAt,
		ResolvedAt:       d.ResolvedAt,
	}
}

type openDisputeRequest struct {
	OpenedBy string   `json:"openedBy"`
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence"`
}

func (h *handler) openDispute(w http.ResponseWriter, r *http.Request) {
	var req openDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	d, err := h.dispute.Open(r.Context(), chi.URLParam(r, "id"), req.OpenedBy, req.Reason, req.Evidence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeView(d))
}

func (h *handler) getDispute(w http.ResponseWriter, r *http.Request) {
	d, err := h.dispute.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeView(d))
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution"`
	ResolvedBy string `json:"resolvedBy"`
}

type resolveDisputeResponse struct {
	Dispute disputeView   `json:"dispute"`
	Result  escrow.Result `json:"result"`
}

func (h *handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		writeError(w, derrors.New(derrors.CodeValidation, "Idempotency-Key header is required"))
		return
	}
	var req resolveDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	d, res, err := h.dispute.Resolve(r.Context(), chi.URLParam(r, "id"), dispute.Resolution(req.Resolution), req.ResolvedBy, key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveDisputeResponse{Dispute: toDisputeView(d), Result: res})
}
