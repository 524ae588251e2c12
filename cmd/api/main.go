package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/reactivities/internal/api"
	"example.com/reactivities/internal/auth"
	"example.com/reactivities/internal/chat"
	"example.com/reactivities/internal/config"
	"example.com/reactivities/internal/consumer"
	"example.com/reactivities/internal/domain"
	"example.com/reactivities/internal/outbox"
	"example.com/reactivities/internal/persistence/postgres"
	"example.com/reactivities/internal/persistence/sqlite"
	httptransport "example.com/reactivities/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo       domain.Repository
		dispatcher *outbox.Dispatcher
		producer   *outbox.KafkaProducer
		registry   *outbox.SchemaRegistryClient
	)
	if cfg.DatabaseDriver == config.DriverPostgres || cfg.CommentRelay == config.RelayKafka {
		producer = outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		registry = outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	}

	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		repo = postgres.NewRepository(pool)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		defer store.Close()
		repo = store
	}

	service := domain.NewService(repo, domain.WithPageSize(cfg.PageSize))

	var hubOpts []chat.Option
	if cfg.CommentRelay == config.RelayKafka {
		hubOpts = append(hubOpts, chat.WithPublisher(chat.NewKafkaPublisher(producer, registry, cfg.CommentTopic)))
	}
	hub := chat.NewHub(service, hubOpts...)
	go hub.Run(ctx)

	// Each replica reads the relay topics under its own group so every connected
	// client hears about every comment and change.
	var wg sync.WaitGroup
	var relayTopics []string
	if cfg.CommentRelay == config.RelayKafka {
		relayTopics = append(relayTopics, cfg.CommentTopic)
	}
	if cfg.DatabaseDriver == config.DriverPostgres {
		relayTopics = append(relayTopics, postgres.ActivityTopic, postgres.AttendanceTopic)
	}
	groupID := cfg.CommentGroupID + "-" + uuid.NewString()
	relay := consumer.NewRelayHandler(hub)
	for _, topic := range relayTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     groupID,
			Topic:       topic,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		})
		proc := consumer.NewProcessor(reader, relay)

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			log.Printf("relay consumer started (topic=%s, group=%s)", topic, groupID)
			if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("relay consumer stopped with error (topic=%s): %v", topic, err)
			}
		}(topic, reader)
	}

	mux := http.NewServeMux()
	handler := api.NewHandler(service, api.WithChat(chat.NewHandler(hub, cfg.CORSOrigin)))
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	accessLog := log.New(os.Stdout, "[http] ", log.LstdFlags)

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, httptransport.Chain(mux,
		httptransport.Logging(accessLog),
		httptransport.CORS(cfg.CORSOrigin),
		authMiddleware.Wrap,
	))

	log.Printf("reactivities api starting (driver=%s, relay=%s)", cfg.DatabaseDriver, cfg.CommentRelay)
	if err := httptransport.Run(ctx, server, serverCfg.ShutdownTimeout); err != nil {
		log.Printf("server error: %v", err)
	}

	stop()
	hub.Close()
	wg.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
