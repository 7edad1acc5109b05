// Command server runs the giftvault escrow and commission ledger.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"giftvault/internal/commission"
	"giftvault/internal/dispute"
	disputeservice "giftvault/internal/dispute/service"
	"giftvault/internal/escrow"
	escrowmetrics "giftvault/internal/escrow/metrics"
	escrowservice "giftvault/internal/escrow/service"
	"giftvault/internal/events"
	eventskafka "giftvault/internal/events/kafka"
	"giftvault/internal/idempotency"
	"giftvault/internal/platform/config"
	"giftvault/internal/platform/httpserver"
	"giftvault/internal/platform/logger"
	"giftvault/internal/platform/memdb"
	"giftvault/internal/platform/postgres"
	platformredis "giftvault/internal/platform/redis"
	"giftvault/internal/proofgate"
	httptransport "giftvault/internal/transport/http"
	"giftvault/internal/wallet"
	"giftvault/internal/webhook"
	webhookservice "giftvault/internal/webhook/service"
)

// txRunner is satisfied by both the postgres pool and the memory runner.
type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	comm, err := commission.LoadTiers(commission.DefaultTiers())
	if err != nil {
		return err
	}
	proof, err := proofgate.LoadRules(proofgate.DefaultRules())
	if err != nil {
		return err
	}

	var (
		runner       txRunner
		escrowStore  escrow.Store
		walletStore  wallet.Store
		disputeStore dispute.Store
		webhookStore webhook.Store
		health       []httptransport.HealthCheck
		pg           *postgres.DB
	)
	if cfg.DatabaseURL != "" {
		if err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return err
		}
		pg, err = postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		runner = pg
		escrowStore = escrow.NewPostgres(pg)
		walletStore = wallet.NewPostgres(pg)
		disputeStore = dispute.NewPostgres(pg)
		webhookStore = webhook.NewPostgres(pg)
		health = append(health, httptransport.HealthCheck{Name: "postgres", Probe: pg.Health})
		log.Info("postgres connected")
	} else {
		log.Warn("no database configured; ledger state is in-memory and volatile")
		runner = memdb.New()
		escrowStore = escrow.NewInMemoryStore()
		walletStore = wallet.NewInMemoryStore()
		disputeStore = dispute.NewInMemoryStore()
		webhookStore = webhook.NewInMemoryStore()
	}

	var idemStore idempotency.Store
	rds, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	switch {
	case rds != nil:
		defer rds.Close()
		idemStore = idempotency.NewRedis(rds.Client, cfg.IdempotencyTTL)
		health = append(health, httptransport.HealthCheck{Name: "redis", Probe: rds.Health})
		log.Info("redis connected; idempotency records expire natively")
	case pg != nil:
		idemStore = idempotency.NewPostgres(pg, cfg.IdempotencyTTL)
	default:
		idemStore = idempotency.NewInMemoryStore(cfg.IdempotencyTTL)
	}

	// Services publish into the buffer; the worker drains it to the sink so
	// event delivery stays off request paths.
	buffer := events.NewInMemoryPublisher(256)
	var sink events.Publisher = logSink{log: log}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := eventskafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer kp.Close()
		sink = kp
		log.Info("kafka publisher connected", "topic", cfg.Kafka.Topic)
	}
	worker := events.NewWorker(sink, buffer.Inbox(), log)
	go func() { _ = worker.Run(ctx) }()

	metrics := escrowmetrics.New()
	ledger, err := escrowservice.New(runner, escrowStore, walletStore, idemStore, comm, proof, log,
		escrowservice.WithPublisher(buffer),
		escrowservice.WithMetrics(metrics),
		escrowservice.WithCurrency(cfg.Currency),
		escrowservice.WithEscrowTTL(cfg.EscrowTTL),
	)
	if err != nil {
		return err
	}
	disputes, err := disputeservice.New(runner, disputeStore, ledger, log,
		disputeservice.WithPublisher(buffer),
	)
	if err != nil {
		return err
	}
	webhooks, err := webhookservice.New(webhookStore, ledger, log)
	if err != nil {
		return err
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.ExpirySweepSpec, func() {
		n, err := ledger.ExpireDue(context.Background(), time.Now(), 200)
		if err != nil {
			log.Error("expiry sweep failed", "error", err.Error())
			return
		}
		if n > 0 {
			log.Info("expiry sweep completed", "expired", n)
		}
	}); err != nil {
		return err
	}
	if err := schedulePurge(sched, cfg.PurgeSweepSpec, idemStore, log); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	router := httptransport.NewRouter(httptransport.Config{
		Logger:  log,
		Escrow:  ledger,
		Dispute: disputes,
		Webhook: webhooks,
		Health:  health,
	})
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("giftvault listening", "addr", cfg.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// schedulePurge wires retention cleanup for stores that do not expire records
// natively. Redis TTLs handle their own.
func schedulePurge(sched *cron.Cron, spec string, store idempotency.Store, log *slog.Logger) error {
	switch st := store.(type) {
	case *idempotency.InMemoryStore:
		_, err := sched.AddFunc(spec, func() {
			if n := st.Sweep(time.Now()); n > 0 {
				log.Info("idempotency purge completed", "purged", n)
			}
		})
		return err
	case *idempotency.PostgresStore:
		_, err := sched.AddFunc(spec, func() {
			n, err := st.Sweep(context.Background(), time.Now())
			if err != nil {
				log.Error("idempotency purge failed", "error", err.Error())
				return
			}
			if n > 0 {
				log.Info("idempotency purge completed", "purged", n)
			}
		})
		return err
	default:
		return nil
	}
}

// logSink is the event sink when no broker is configured.
type logSink struct {
	log *slog.Logger
}

func (s logSink) Publish(ctx context.Context, event events.Event) error {
	s.log.InfoContext(ctx, "ledger event",
		"type", event.Type,
		"escrow_id", event.EscrowID,
		"user_id", event.UserID,
	)
	return nil
}
