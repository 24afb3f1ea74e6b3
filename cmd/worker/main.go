package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"verity/internal/audit"
	auditmemory "verity/internal/audit/store/memory"
	auditpostgres "verity/internal/audit/store/postgres"
	"verity/internal/clients"
	"verity/internal/dispatch"
	kycmetrics "verity/internal/kyc/metrics"
	"verity/internal/kyc/service"
	applicationstore "verity/internal/kyc/store/application"
	documentstore "verity/internal/kyc/store/document"
	facematchstore "verity/internal/kyc/store/facematch"
	"verity/internal/notify"
	"verity/internal/platform/config"
	"verity/internal/platform/kafka/consumer"
	"verity/internal/platform/kafka/producer"
	"verity/internal/platform/logger"
	platformredis "verity/internal/platform/redis"
)

// main runs the pipeline worker: it consumes tasks from the process topic,
// drives the orchestrator, and dead-letters what cannot be processed.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		if err := db.PingContext(ctx); err != nil {
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

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(kycmetrics.New()),
	}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		svcOpts = append(svcOpts, service.WithNotifier(notify.New(redisClient, log)))
	} else {
		log.Warn("REDIS_URL not set, completion events disabled")
	}

	svc, err := service.New(
		applications, documents, faceMatches,
		clientSet, auditor, cfg.ApproveThreshold,
		svcOpts...,
	)
	if err != nil {
		log.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	if err := ensureTopics(ctx, cfg.Kafka); err != nil {
		log.Error("failed to ensure kafka topics", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producer.New(cfg.Kafka.Brokers)
	if err != nil {
		log.Error("failed to connect kafka producer", "error", err)
		os.Exit(1)
	}
	defer dlqProducer.Close()

	dispatcher := dispatch.New(svc, dlqProducer, cfg.Kafka.DeadLetterTopic,
		dispatch.WithLogger(log),
		dispatch.WithMetrics(dispatch.NewMetrics()),
	)

	cons, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		[]string{cfg.Kafka.ProcessTopic}, dispatcher, log)
	if err != nil {
		log.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}
	defer cons.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("worker consuming",
			"topic", cfg.Kafka.ProcessTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		return cons.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

// ensureTopics creates the process and dead-letter topics if absent, so a
// fresh environment works without manual topic administration.
func ensureTopics(ctx context.Context, cfg config.KafkaConfig) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers...))
	if err != nil {
		return err
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, 3, 1, nil, cfg.ProcessTopic, cfg.DeadLetterTopic)
	if err != nil {
		return err
	}
	for _, resp := range resps.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return resp.Err
		}
	}
	return nil
}
