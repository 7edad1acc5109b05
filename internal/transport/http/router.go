// Package httptransport is the thin HTTP layer over the ledger services. It
// decodes requests, delegates, and translates domain errors; no business
// logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"giftvault/internal/dispute"
	"giftvault/internal/escrow"
	escrowservice "giftvault/internal/escrow/service"
	webhookservice "giftvault/internal/webhook/service"
)

// EscrowService is the ledger surface the escrow handlers call.
type EscrowService interface {
	Create(ctx context.Context, in escrowservice.CreateInput) (escrow.CreateResult, error)
	Release(ctx context.Context, escrowID, idempotencyKey, verifiedBy string) (escrow.Result, error)
	Refund(ctx context.Context, escrowID, reason, idempotencyKey string) (escrow.Result, error)
	Get(ctx context.Context, escrowID string) (*escrow.Transaction, []escrow.LedgerEntry, error)
}

// DisputeService is the surface the dispute handlers call.
type DisputeService interface {
	Open(ctx context.Context, escrowID, openedBy, reason string, evidence []string) (*dispute.Dispute, error)
	Resolve(ctx context.Context, disputeID string, resolution dispute.Resolution, resolvedBy, idempotencyKey string) (*dispute.Dispute, escrow.Result, error)
	Get(ctx context.Context, disputeID string) (*dispute.Dispute, error)
}

// WebhookService is the surface the webhook handler calls.
type WebhookService interface {
	Ingest(ctx context.Context, in webhookservice.IngestInput) (webhookservice.Receipt, error)
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Config wires the router.
type Config struct {
	Logger  *slog.Logger
	Escrow  EscrowService
	Dispute DisputeService
	Webhook WebhookService
	Health  []HealthCheck
	Timeout time.Duration
}

// NewRouter builds the public HTTP surface.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	h := &handler{
		logger:  cfg.Logger,
		escrow:  cfg.Escrow,
		dispute: cfg.Dispute,
		webhook: cfg.Webhook,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Post("/escrows", h.createEscrow)
	r.Get("/escrows/{id}", h.getEscrow)
	r.Post("/escrows/{id}/release", h.releaseEscrow)
	r.Post("/escrows/{id}/refund", h.refundEscrow)
	r.Post("/escrows/{id}/disputes", h.openDispute)
	r.Get("/disputes/{id}", h.getDispute)
	r.Post("/disputes/{id}/resolve", h.resolveDispute)
	r.Post("/webhooks/payments", h.ingestWebhook)

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

type handler struct {
	logger  *slog.Logger
	escrow  EscrowService
	dispute DisputeService
	webhook WebhookService
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Probe(ctx); err != nil {
				deps[c.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[c.Name] = "up"
		}
		writeJSON(w, status, map[string]any{
			"status":       http.StatusText(status),
			"dependencies": deps,
		})
	}
}
