package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"giftvault/internal/commission"
	"giftvault/internal/escrow"
	escrowservice "giftvault/internal/escrow/service"
	derrors "giftvault/pkg/domain-errors"
)

const idempotencyKeyHeader = "Idempotency-Key"

type createEscrowRequest struct {
	SenderID      string `json:"senderId"`
	RecipientID   string `json:"recipientId"`
	SubjectID     string `json:"subjectId,omitempty"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency,omitempty"`
	RecipientType string `json:"recipientType,omitempty"`
	RequestsProof bool   `json:"requestsProof,omitempty"`
	GiftMessage   string `json:"giftMessage,omitempty"`
}

func (h *handler) createEscrow(w http.ResponseWriter, r *http.Request) {
	var req createEscrowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.escrow.Create(r.Context(), escrowservice.CreateInput{
		SenderID:      req.SenderID,
		RecipientID:   req.RecipientID,
		SubjectID:     req.SubjectID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		RecipientType: commission.AccountType(req.RecipientType),
		RequestsProof: req.RequestsProof,
		Extension: escrow.Extension{
			Version:     1,
			GiftMessage: req.GiftMessage,
		},
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "create escrow failed", "error", err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type releaseEscrowRequest struct {
	VerifiedBy string `json:"verifiedBy,omitempty"`
}

func (h *handler) releaseEscrow(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		writeError(w, derrors.New(derrors.CodeValidation, "Idempotency-Key header is required"))
		return
	}
	var req releaseEscrowRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	res, err := h.escrow.Release(r.Context(), chi.URLParam(r, "id"), key, req.VerifiedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type refundEscrowRequest struct {
	Reason string `json:"reason"`
}

func (h *handler) refundEscrow(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		writeError(w, derrors.New(derrors.CodeValidation, "Idempotency-Key header is required"))
		return
	}
	var req refundEscrowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.escrow.Refund(r.Context(), chi.URLParam(r, "id"), req.Reason, key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type escrowView struct {
	ID               string              `json:"id"`
	SenderID         string              `json:"senderId"`
	RecipientID      string              `json:"recipientId"`
	SubjectID        string              `json:"subjectId,omitempty"`
	Amount           int64               `json:"amount"`
	Currency         string              `json:"currency"`
	Status           escrow.Status       `json:"status"`
	ReleaseCondition string              `json:"releaseCondition"`
	TransferDelay    string              `json:"transferDelay,omitempty"`
	ExpiresAt        time.Time           `json:"expiresAt"`
	Commission       commission.Breakdown `json:"commission"`
	GiftMessage      string              `json:"giftMessage,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
	Entries          []ledgerEntryView   `json:"entries"`
}

type ledgerEntryView struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	FromUserID string    `json:"fromUserId,omitempty"`
	ToUserID   string    `json:"toUserId,omitempty"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	RecordedAt time.Time `json:"recordedAt"`
}

func (h *handler) getEscrow(w http.ResponseWriter, r *http.Request) {
	esc, entries, err := h.escrow.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	view := escrowView{
		ID:               esc.ID,
		SenderID:         esc.SenderID,
		RecipientID:      esc.RecipientID,
		SubjectID:        esc.SubjectID,
		Amount:           esc.Amount,
		Currency:         esc.Currency,
		Status:           esc.Status,
		ReleaseCondition: string(esc.ReleaseCondition),
		ExpiresAt:        esc.ExpiresAt,
		Commission:       esc.Commission,
		GiftMessage:      esc.Extension.GiftMessage,
		CreatedAt:        esc.CreatedAt,
		UpdatedAt:        esc.UpdatedAt,
		Entries:          make([]ledgerEntryView, 0, len(entries)),
	}
	if esc.TransferDelay > 0 {
		view.TransferDelay = esc.TransferDelay.String()
	}
	for _, e := range entries {
		view.Entries = append(view.Entries, ledgerEntryView{
			ID:         e.ID,
			Kind:       string(e.Kind),
			FromUserID: e.FromUserID,
			ToUserID:   e.ToUserID,
			Amount:     e.Amount,
			Currency:   e.Currency,
			RecordedAt: e.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, view)
}
