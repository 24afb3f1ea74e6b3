package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verity/internal/audit"
	auditmemory "verity/internal/audit/store/memory"
	auditpostgres "verity/internal/audit/store/postgres"
	"verity/internal/clients"
	"verity/internal/dispatch"
	"verity/internal/jwttoken"
	"verity/internal/kyc/handler"
	kycmetrics "verity/internal/kyc/metrics"
	"verity/internal/kyc/service"
	applicationstore "verity/internal/kyc/store/application"
	documentstore "verity/internal/kyc/store/document"
	facematchstore "verity/internal/kyc/store/facematch"
	"verity/internal/platform/config"
	"verity/internal/platform/httpserver"
	"verity/internal/platform/kafka/producer"
	"verity/internal/platform/logger"
	"verity/internal/platform/middleware"
)

// main wires the public API: stores, downstream clients, the audit writer,
// the task enqueuer, and the chi router. Business logic lives in the service
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var (
		applications service.ApplicationStore
		documents    service.DocumentStore
		faceMatches  service.FaceMatchStore
		auditStore   audit.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		applications = applicationstore.NewPostgres(db)
		documents = documentstore.NewPostgres(db)
		faceMatches = facematchstore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		applications = applicationstore.NewMemory()
		documents = documentstore.NewMemory()
		faceMatches = facematchstore.NewMemory()
		auditStore = auditmemory.New()
	}

	var clientSet *clients.Set
	if cfg.UseStubs {
		log.Warn("USE_STUBS set, downstream services are stubbed")
		clientSet = clients.NewStubs()
	} else {
		clientSet = clients.NewHTTP(cfg.Services, cfg.ClientTimeout,
			clients.WithLogger(log),
			clients.WithMetrics(clients.NewMetrics()),
		)
	}

	auditor, err := audit.NewWriter(auditStore, clientSet.Audit, audit.WithLogger(log))
	if err != nil {
		log.Error("failed to build audit writer", "error", err)
		os.Exit(1)
	}

	taskProducer, err := producer.New(cfg.Kafka.Brokers)
	if err != nil {
		log.Error("failed to connect kafka producer", "error", err)
		os.Exit(1)
	}
	defer taskProducer.Close()
	enqueuer := dispatch.NewEnqueuer(taskProducer, cfg.Kafka.ProcessTopic)

	svc, err := service.New(
		applications, documents, faceMatches,
		clientSet, auditor, cfg.ApproveThreshold,
		service.WithLogger(log),
		service.WithMetrics(kycmetrics.New()),
		service.WithTaskQueue(enqueuer),
	)
	if err != nil {
		log.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "verity")

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	handler.New(svc, log).Register(r, tokens)

	srv := httpserver.New(cfg.Addr, r)

	go func() {
		log.Info("starting verity api", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
