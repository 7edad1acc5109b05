package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"giftvault/internal/commission"
	"giftvault/internal/dispute"
	disputeservice "giftvault/internal/dispute/service"
	"giftvault/internal/escrow"
	escrowservice "giftvault/internal/escrow/service"
	"giftvault/internal/idempotency"
	"giftvault/internal/platform/memdb"
	"giftvault/internal/proofgate"
	"giftvault/internal/wallet"
	"giftvault/internal/webhook"
	webhookservice "giftvault/internal/webhook/service"
)

type RouterSuite struct {
	suite.Suite

	wallets *wallet.InMemoryStore
	server  *httptest.Server
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.wallets = wallet.NewInMemoryStore()

	comm, err := commission.LoadTiers(commission.DefaultTiers())
	s.Require().NoError(err)
	proof, err := proofgate.LoadRules(proofgate.DefaultRules())
	s.Require().NoError(err)

	logger := slog.New(slog.DiscardHandler)
	db := memdb.New()

	ledger, err := escrowservice.New(
		db, escrow.NewInMemoryStore(), s.wallets,
		idempotency.NewInMemoryStore(idempotency.DefaultTTL),
		comm, proof, logger,
	)
	s.Require().NoError(err)

	disputes, err := disputeservice.New(db, dispute.NewInMemoryStore(), ledger, logger)
	s.Require().NoError(err)

	webhooks, err := webhookservice.New(webhook.NewInMemoryStore(), ledger, logger)
	s.Require().NoError(err)

	router := NewRouter(Config{
		Logger:  logger,
		Escrow:  ledger,
		Dispute: disputes,
		Webhook: webhooks,
		Health: []HealthCheck{
			{Name: "store", Probe: func(context.Context) error { return nil }},
		},
	})
	s.server = httptest.NewServer(router)
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) post(path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(raw))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *RouterSuite) get(path string) (*http.Response, map[string]any) {
	resp, err := s.server.Client().Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *RouterSuite) createEscrow() string {
	s.wallets.Seed("alice", 50000)
	resp, body := s.post("/escrows", map[string]any{
		"senderId":      "alice",
		"recipientId":   "bob",
		"amount":        5000,
		"requestsProof": true,
		"giftMessage":   "happy birthday",
	}, nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	id, _ := body["escrowId"].(string)
	s.Require().NotEmpty(id)
	return id
}

func (s *RouterSuite) TestCreateEscrow() {
	s.Run("pending escrow", func() {
		id := s.createEscrow()

		resp, body := s.get("/escrows/" + id)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal("pending", body["status"])
		s.Equal("happy birthday", body["giftMessage"])
		entries, ok := body["entries"].([]any)
		s.Require().True(ok)
		s.Len(entries, 1)
	})

	s.Run("direct payment below threshold", func() {
		s.wallets.Seed("carol", 10000)
		resp, body := s.post("/escrows", map[string]any{
			"senderId":    "carol",
			"recipientId": "dave",
			"amount":      1500,
		}, nil)
		s.Equal(http.StatusCreated, resp.StatusCode)
		s.Equal(true, body["direct"])
		s.NotEmpty(body["transactionId"])
	})

	s.Run("validation error", func() {
		resp, body := s.post("/escrows", map[string]any{
			"senderId":    "alice",
			"recipientId": "alice",
			"amount":      100,
		}, nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
		s.Equal("validation_error", body["error"])
	})

	s.Run("insufficient balance", func() {
		resp, body := s.post("/escrows", map[string]any{
			"senderId":    "pauper",
			"recipientId": "bob",
			"amount":      2500,
		}, nil)
		s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
		s.Equal("insufficient_balance", body["error"])
	})

	s.Run("malformed body", func() {
		req, err := http.NewRequest(http.MethodPost, s.server.URL+"/escrows", bytes.NewReader([]byte("{")))
		s.Require().NoError(err)
		resp, err := s.server.Client().Do(req)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *RouterSuite) TestReleaseEscrow() {
	id := s.createEscrow()

	s.Run("missing idempotency key", func() {
		resp, _ := s.post("/escrows/"+id+"/release", map[string]any{}, nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("release succeeds", func() {
		resp, body := s.post("/escrows/"+id+"/release", map[string]any{},
			map[string]string{idempotencyKeyHeader: "key-1"})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal("released", body["status"])
		s.Equal(false, body["idempotent"])
	})

	s.Run("retry is idempotent", func() {
		resp, body := s.post("/escrows/"+id+"/release", map[string]any{},
			map[string]string{idempotencyKeyHeader: "key-1"})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal(true, body["idempotent"])
	})

	s.Run("refund after release conflicts", func() {
		resp, body := s.post("/escrows/"+id+"/refund", map[string]any{"reason": "too late"},
			map[string]string{idempotencyKeyHeader: "key-2"})
		s.Equal(http.StatusConflict, resp.StatusCode)
		s.Equal("invalid_state", body["error"])
	})

	s.Run("unknown escrow", func() {
		resp, _ := s.post("/escrows/missing/release", map[string]any{},
			map[string]string{idempotencyKeyHeader: "key-3"})
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})
}

func (s *RouterSuite) TestDisputeFlow() {
	id := s.createEscrow()

	resp, body := s.post("/escrows/"+id+"/disputes", map[string]any{
		"openedBy": "bob",
		"reason":   "item never arrived",
		"evidence": []string{"tracking.png"},
	}, nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	disputeID, _ := body["id"].(string)
	s.Require().NotEmpty(disputeID)
	s.Equal("open", body["status"])
	s.NotEmpty(body["responseDeadline"])
	s.NotEmpty(body["reviewDeadline"])

	resp, body = s.get("/escrows/" + id)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("disputed", body["status"])

	resp, body = s.post("/disputes/"+disputeID+"/resolve", map[string]any{
		"resolution": "release",
		"resolvedBy": "arbiter-1",
	}, map[string]string{idempotencyKeyHeader: "key-1"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	result, ok := body["result"].(map[string]any)
	s.Require().True(ok)
	s.Equal("released", result["status"])
	dv, ok := body["dispute"].(map[string]any)
	s.Require().True(ok)
	s.Equal("resolved", dv["status"])

	resp, _ = s.get("/disputes/" + disputeID)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestWebhookIngest() {
	id := s.createEscrow()

	in := map[string]any{
		"provider":     "stripe",
		"providerTxId": "tx-1",
		"eventType":    webhook.EventPaymentCaptured,
		"escrowId":     id,
	}
	resp, body := s.post("/webhooks/payments", in, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("released", body["action"])

	resp, body = s.post("/webhooks/payments", in, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, body["duplicate"])
}

func (s *RouterSuite) TestHealthz() {
	resp, body := s.get("/healthz")
	s.Equal(http.StatusOK, resp.StatusCode)
	deps, ok := body["dependencies"].(map[string]any)
	s.Require().True(ok)
	s.Equal("up", deps["store"])
}
